package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("table x: %w", table.ErrTableFull), CodeTableFull},
		{fmt.Errorf("%w: game is ongoing", table.ErrTableNotAcceptingPlayers), CodeTableNotAcceptingPlayers},
		{fmt.Errorf("load table x: %w", store.ErrNotFound), CodeNotFound},
		{host.ErrMissingCaller, CodeUnauthenticated},
		{errors.New("disk on fire"), CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}
