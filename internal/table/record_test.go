package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRestore(t *testing.T) {
	t.Parallel()

	original := openTable(t, 50, bob, charlie)
	require.NoError(t, original.StartGame(bob))

	restored, err := Restore(original.Record())
	require.NoError(t, err)

	assert.Equal(t, original.Initializer(), restored.Initializer())
	assert.Equal(t, original.Players(), restored.Players())
	assert.Equal(t, original.AccumulatedPot(), restored.AccumulatedPot())
	assert.Equal(t, original.RequiredStartBet(), restored.RequiredStartBet())
	assert.Equal(t, Playing, restored.State())
}

func TestRecordIsDetached(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 50, bob)
	rec := tbl.Record()
	rec.Players[1] = eve

	assert.Equal(t, []AccountID{alice, bob}, tbl.Players())

	restored, err := Restore(rec)
	require.NoError(t, err)
	require.NoError(t, restored.RegisterPlayer(charlie, 50))
	assert.Equal(t, []AccountID{alice, eve}, rec.Players)
}

func TestRestoreTerminatedTable(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 50, bob)
	require.NoError(t, tbl.Terminate(eve))

	restored, err := Restore(tbl.Record())
	require.NoError(t, err)
	assert.Equal(t, 0, restored.PlayerCount())
	assert.Equal(t, Balance(100), restored.AccumulatedPot())
}

func TestRestoreRejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	tooMany := make([]AccountID, MaxPlayers+1)
	for i := range tooMany {
		tooMany[i] = AccountID(rune('a' + i))
	}

	tests := []struct {
		name   string
		record Record
	}{
		{"zero bet", Record{Initializer: alice, Players: []AccountID{alice}, RequiredStartBet: 0, Pot: 0}},
		{"unknown state", Record{Initializer: alice, Players: []AccountID{alice}, RequiredStartBet: 1, Pot: 1, State: State(7)}},
		{"duplicate players", Record{Initializer: alice, Players: []AccountID{alice, alice}, RequiredStartBet: 1, Pot: 2}},
		{"over capacity", Record{Initializer: alice, Players: tooMany, RequiredStartBet: 1, Pot: 11}},
		{"bet above maximum", Record{Initializer: alice, Players: []AccountID{alice}, RequiredStartBet: MaxStartBet + 1, Pot: MaxStartBet + 1}},
		{"negative pot", Record{Initializer: alice, Players: []AccountID{alice}, RequiredStartBet: 1, Pot: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.record)
			require.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestStateText(t *testing.T) {
	t.Parallel()

	for _, s := range []State{Staging, Playing, Ended} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var decoded State
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, s, decoded)
	}

	_, err := ParseState("finished")
	require.Error(t, err)
	assert.Equal(t, "unknown", State(42).String())
}
