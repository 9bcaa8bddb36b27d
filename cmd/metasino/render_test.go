package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

func plainRenderer() *Renderer {
	return NewRenderer(&bytes.Buffer{}, true)
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	out := plainRenderer().Table(host.Snapshot{
		ID:               "t1",
		Initializer:      "alice",
		Players:          []table.AccountID{"alice", "bob", "charlie"},
		PlayerCount:      3,
		RequiredStartBet: 100,
		Pot:              300,
		State:            table.Playing,
	})

	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
	assert.Contains(t, out, "Table t1")
	assert.Contains(t, out, "playing")
	assert.Contains(t, out, "3/10  alice, bob, charlie")
	assert.Contains(t, out, "300")
}

func TestRenderTableWithoutPlayers(t *testing.T) {
	t.Parallel()

	out := plainRenderer().Table(host.Snapshot{ID: "t1", Initializer: "alice", RequiredStartBet: 5, Pot: 10})
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, "staging")
}

func TestRenderTables(t *testing.T) {
	t.Parallel()

	r := plainRenderer()
	assert.Equal(t, "No tables", r.Tables(nil))

	out := r.Tables([]host.Snapshot{
		{ID: "a", State: table.Staging, RequiredStartBet: 10, Pot: 20, PlayerCount: 2},
		{ID: "b", State: table.Playing, RequiredStartBet: 5, Pot: 15, PlayerCount: 3},
	})
	assert.Contains(t, out, "2 tables")
	assert.Contains(t, out, "a  staging  bet=10 pot=20 players=2/10")
	assert.Contains(t, out, "b  playing  bet=5 pot=15 players=3/10")
}

func TestRenderEvents(t *testing.T) {
	t.Parallel()

	r := plainRenderer()
	out := r.Events("t1", []store.Event{{
		Seq:        2,
		TableID:    "t1",
		Type:       host.EventTypePlayerRegistered,
		Time:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Attributes: map[string]string{"pot": "200", "account": "bob"},
	}})

	assert.Contains(t, out, "#2 2025-03-01 12:00:00 player_registered account=bob pot=200")
	assert.Contains(t, r.Events("t1", nil), "No events")
}
