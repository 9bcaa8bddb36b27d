package table

import "errors"

// Every rejected operation returns one of these, wrapped with detail.
// Callers match with errors.Is. A failed operation never mutates the table.
var (
	ErrInvalidBetAmount         = errors.New("table: required start bet must be greater than 0")
	ErrTableNotAcceptingPlayers = errors.New("table: not accepting players")
	ErrTableFull                = errors.New("table: max players reached")
	ErrBetMismatch              = errors.New("table: start bet does not match required start bet")
	ErrDuplicateRegistration    = errors.New("table: player already registered")
	ErrInsufficientPlayers      = errors.New("table: not enough players to start the game")
	ErrNotAuthorized            = errors.New("table: caller may not terminate the table")
	ErrTableNotTerminable       = errors.New("table: table cannot be terminated")

	// ErrInvalidRecord is returned by Restore for state that no sequence of
	// operations could have produced.
	ErrInvalidRecord = errors.New("table: invalid record")
)
