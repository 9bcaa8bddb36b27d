package server

import (
	"errors"

	"github.com/lox/metasino/internal/auth"
	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

// Error codes sent in error messages.
const (
	CodeInvalidBetAmount         = "invalid_bet_amount"
	CodeTableNotAcceptingPlayers = "table_not_accepting_players"
	CodeTableFull                = "table_full"
	CodeBetMismatch              = "bet_mismatch"
	CodeDuplicateRegistration    = "duplicate_registration"
	CodeInsufficientPlayers      = "insufficient_players"
	CodeNotAuthorized            = "not_authorized"
	CodeTableNotTerminable       = "table_not_terminable"
	CodeNotFound                 = "not_found"
	CodeUnauthenticated          = "unauthenticated"
	CodeInvalidMessage           = "invalid_message"
	CodeUnknownMessageType       = "unknown_message_type"
	CodeAuthUnavailable          = "auth_unavailable"
	CodeInternal                 = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{table.ErrInvalidBetAmount, CodeInvalidBetAmount},
	{table.ErrTableNotAcceptingPlayers, CodeTableNotAcceptingPlayers},
	{table.ErrTableFull, CodeTableFull},
	{table.ErrBetMismatch, CodeBetMismatch},
	{table.ErrDuplicateRegistration, CodeDuplicateRegistration},
	{table.ErrInsufficientPlayers, CodeInsufficientPlayers},
	{table.ErrNotAuthorized, CodeNotAuthorized},
	{table.ErrTableNotTerminable, CodeTableNotTerminable},
	{store.ErrNotFound, CodeNotFound},
	{store.ErrInvalidID, CodeNotFound},
	{host.ErrMissingCaller, CodeUnauthenticated},
	{auth.ErrInvalidToken, CodeUnauthenticated},
	{auth.ErrUnavailable, CodeAuthUnavailable},
}

// ErrorCode classifies err into the code reported to clients.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
