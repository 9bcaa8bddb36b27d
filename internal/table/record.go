package table

import (
	"fmt"
	"slices"
)

// Record is the persisted form of a Table.
type Record struct {
	Initializer      AccountID
	Players          []AccountID
	RequiredStartBet Balance
	Pot              Balance
	State            State
}

// Record returns a snapshot of the table's fields.
func (t *Table) Record() Record {
	return Record{
		Initializer:      t.initializer,
		Players:          slices.Clone(t.players),
		RequiredStartBet: t.requiredStartBet,
		Pot:              t.pot,
		State:            t.state,
	}
}

// Restore rebuilds a table from a record previously produced by Record.
//
// The pot is not checked against the player count: a terminated table keeps
// its pot after the player list is cleared.
func Restore(r Record) (*Table, error) {
	if r.RequiredStartBet <= 0 || r.RequiredStartBet > MaxStartBet {
		return nil, fmt.Errorf("%w: required start bet %d", ErrInvalidRecord, r.RequiredStartBet)
	}
	if r.Pot < 0 {
		return nil, fmt.Errorf("%w: pot %d", ErrInvalidRecord, r.Pot)
	}
	if !r.State.valid() {
		return nil, fmt.Errorf("%w: state %d", ErrInvalidRecord, int(r.State))
	}
	if len(r.Players) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d players", ErrInvalidRecord, len(r.Players))
	}

	seen := make(map[AccountID]bool, len(r.Players))
	for _, p := range r.Players {
		if seen[p] {
			return nil, fmt.Errorf("%w: duplicate player %s", ErrInvalidRecord, p)
		}
		seen[p] = true
	}

	players := make([]AccountID, len(r.Players), MaxPlayers)
	copy(players, r.Players)

	return &Table{
		initializer:      r.Initializer,
		players:          players,
		requiredStartBet: r.RequiredStartBet,
		pot:              r.Pot,
		state:            r.State,
	}, nil
}
