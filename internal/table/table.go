package table

import (
	"fmt"
	"math"
	"slices"
)

const (
	// MaxPlayers is the seat capacity of a table, initializer included.
	MaxPlayers = 10
	// MinPlayers is the quorum required to start the game.
	MinPlayers = 3

	// MaxStartBet is the largest stake a table accepts, so that a full
	// table's pot fits in a Balance.
	MaxStartBet Balance = math.MaxInt64 / MaxPlayers
)

// AccountID identifies a caller.
type AccountID string

// Balance is a stake or pot amount.
type Balance int64

// Table holds the full state of a single betting table.
//
// A Table is not safe for concurrent use; the host serializes every
// operation against it.
type Table struct {
	initializer      AccountID
	players          []AccountID
	requiredStartBet Balance
	pot              Balance
	state            State
}

// Open creates a new table. The initiator is enrolled as the first player
// and their stake seeds the pot. A NewTableOpened event is sent to emitter
// when it is non-nil.
func Open(initiator AccountID, requiredStartBet Balance, emitter Emitter) (*Table, error) {
	if requiredStartBet <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBetAmount, requiredStartBet)
	}
	if requiredStartBet > MaxStartBet {
		return nil, fmt.Errorf("%w: got %d, maximum is %d", ErrInvalidBetAmount, requiredStartBet, MaxStartBet)
	}

	t := &Table{
		initializer:      initiator,
		players:          make([]AccountID, 0, MaxPlayers),
		requiredStartBet: requiredStartBet,
		pot:              requiredStartBet,
		state:            Staging,
	}
	t.players = append(t.players, initiator)

	if emitter != nil {
		emitter.Emit(NewTableOpened{
			Initiator:        initiator,
			RequiredStartBet: requiredStartBet,
		})
	}
	return t, nil
}

// RegisterPlayer adds caller to the table.
//
// Checks run in a fixed order and the first failure wins: the table must be
// staging, have a free seat, the stake must equal the required start bet
// exactly, and caller must not already be seated.
func (t *Table) RegisterPlayer(caller AccountID, startBet Balance) error {
	if err := t.guard(ErrTableNotAcceptingPlayers); err != nil {
		return err
	}
	if len(t.players) >= MaxPlayers {
		return fmt.Errorf("%w: %d of %d seats taken", ErrTableFull, len(t.players), MaxPlayers)
	}
	if startBet != t.requiredStartBet {
		return fmt.Errorf("%w: start bet must be exactly %d, got %d", ErrBetMismatch, t.requiredStartBet, startBet)
	}
	if slices.Contains(t.players, caller) {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, caller)
	}
	// A terminated table keeps its pot, so refilled seats can still run
	// it past the Balance range.
	if t.pot > math.MaxInt64-startBet {
		return fmt.Errorf("%w: pot of %d cannot take another %d", ErrTableFull, t.pot, startBet)
	}

	t.pot += startBet
	t.players = append(t.players, caller)
	return nil
}

// StartGame moves a staging table with at least MinPlayers players into
// Playing. Any caller may start the game.
func (t *Table) StartGame(caller AccountID) error {
	if err := t.guard(ErrTableNotAcceptingPlayers); err != nil {
		return err
	}
	if len(t.players) < MinPlayers {
		return fmt.Errorf("%w: minimum %d players required, have %d", ErrInsufficientPlayers, MinPlayers, len(t.players))
	}

	t.state = Playing
	return nil
}

// Terminate tears a staging table down by clearing its player list. The pot,
// required start bet and state are left as they are.
//
// Seated players are refused; any caller not in the player list may
// terminate.
func (t *Table) Terminate(caller AccountID) error {
	if err := t.guard(ErrTableNotTerminable); err != nil {
		return err
	}
	if slices.Contains(t.players, caller) {
		return fmt.Errorf("%w: %s is seated at the table", ErrNotAuthorized, caller)
	}

	t.players = t.players[:0]
	return nil
}

// guard rejects mutation once the table has left Staging, reporting kind.
func (t *Table) guard(kind error) error {
	switch t.state {
	case Playing:
		return fmt.Errorf("%w: game is ongoing", kind)
	case Ended:
		return fmt.Errorf("%w: game has already ended", kind)
	}
	return nil
}

// State returns the current table state.
func (t *Table) State() State { return t.state }

// PlayerCount returns the number of seated players.
func (t *Table) PlayerCount() int { return len(t.players) }

// AccumulatedPot returns the pot total.
func (t *Table) AccumulatedPot() Balance { return t.pot }

// RequiredStartBet returns the stake every player must match.
func (t *Table) RequiredStartBet() Balance { return t.requiredStartBet }

// Initializer returns the account that opened the table.
func (t *Table) Initializer() AccountID { return t.initializer }

// Players returns the seated players in registration order. The returned
// slice is a copy.
func (t *Table) Players() []AccountID {
	return slices.Clone(t.players)
}
