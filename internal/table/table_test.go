package table

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice   AccountID = "alice"
	bob     AccountID = "bob"
	charlie AccountID = "charlie"
	django  AccountID = "django"
	eve     AccountID = "eve"
)

type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(e Event) { r.events = append(r.events, e) }

func openTable(t *testing.T, bet Balance, players ...AccountID) *Table {
	t.Helper()
	tbl, err := Open(alice, bet, nil)
	require.NoError(t, err)
	for _, p := range players {
		require.NoError(t, tbl.RegisterPlayer(p, bet))
	}
	return tbl
}

func TestOpen(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	tbl, err := Open(alice, 100, emitter)
	require.NoError(t, err)

	assert.Equal(t, Balance(100), tbl.RequiredStartBet())
	assert.Equal(t, alice, tbl.Initializer())
	assert.Equal(t, 1, tbl.PlayerCount())
	assert.Equal(t, Balance(100), tbl.AccumulatedPot())
	assert.Equal(t, Staging, tbl.State())
	assert.Equal(t, []AccountID{alice}, tbl.Players())

	require.Len(t, emitter.events, 1)
	assert.Equal(t, NewTableOpened{Initiator: alice, RequiredStartBet: 100}, emitter.events[0])
}

func TestOpenRejectsNonPositiveBet(t *testing.T) {
	t.Parallel()

	for _, bet := range []Balance{0, -1, -100} {
		t.Run(fmt.Sprint(bet), func(t *testing.T) {
			emitter := &recordingEmitter{}
			tbl, err := Open(alice, bet, emitter)
			require.ErrorIs(t, err, ErrInvalidBetAmount)
			assert.Nil(t, tbl)
			assert.Empty(t, emitter.events, "no event for a rejected table")
		})
	}
}

func TestOpenRejectsBetAboveMaximum(t *testing.T) {
	t.Parallel()

	for _, bet := range []Balance{MaxStartBet + 1, math.MaxInt64} {
		t.Run(fmt.Sprint(bet), func(t *testing.T) {
			emitter := &recordingEmitter{}
			tbl, err := Open(alice, bet, emitter)
			require.ErrorIs(t, err, ErrInvalidBetAmount)
			assert.Nil(t, tbl)
			assert.Empty(t, emitter.events)
		})
	}
}

func TestMaxStartBetFillsTable(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, MaxStartBet)
	for n := 2; n <= MaxPlayers; n++ {
		require.NoError(t, tbl.RegisterPlayer(AccountID(fmt.Sprintf("player-%d", n)), MaxStartBet))
	}

	assert.Equal(t, MaxPlayers, tbl.PlayerCount())
	assert.Equal(t, MaxStartBet*MaxPlayers, tbl.AccumulatedPot())
	assert.Positive(t, tbl.AccumulatedPot())
}

func TestRefilledTableCannotOverflowPot(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, MaxStartBet)
	for n := 2; n <= MaxPlayers; n++ {
		require.NoError(t, tbl.RegisterPlayer(AccountID(fmt.Sprintf("player-%d", n)), MaxStartBet))
	}
	require.NoError(t, tbl.Terminate(eve))
	pot := tbl.AccumulatedPot()

	err := tbl.RegisterPlayer(bob, MaxStartBet)
	require.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, pot, tbl.AccumulatedPot())
	assert.Equal(t, 0, tbl.PlayerCount())
}

func TestRegisterPlayer(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 100)
	require.NoError(t, tbl.RegisterPlayer(bob, 100))

	assert.Equal(t, 2, tbl.PlayerCount())
	assert.Equal(t, Balance(200), tbl.AccumulatedPot())
	assert.Equal(t, []AccountID{alice, bob}, tbl.Players())
	assert.Equal(t, Staging, tbl.State())
	assert.Equal(t, Balance(100), tbl.RequiredStartBet())
}

func TestRegisterSamePlayerFails(t *testing.T) {
	t.Parallel()

	t.Run("initializer", func(t *testing.T) {
		tbl := openTable(t, 100)
		err := tbl.RegisterPlayer(alice, 100)
		require.ErrorIs(t, err, ErrDuplicateRegistration)
		assert.Equal(t, 1, tbl.PlayerCount())
		assert.Equal(t, Balance(100), tbl.AccumulatedPot())
	})

	t.Run("joined player", func(t *testing.T) {
		tbl := openTable(t, 100, bob)
		err := tbl.RegisterPlayer(bob, 100)
		require.ErrorIs(t, err, ErrDuplicateRegistration)
		assert.Equal(t, 2, tbl.PlayerCount())
		assert.Equal(t, Balance(200), tbl.AccumulatedPot())
	})
}

func TestRegisterPlayerBetMismatch(t *testing.T) {
	t.Parallel()

	for _, bet := range []Balance{0, 1, 99, 101, 1000, -100} {
		t.Run(fmt.Sprint(bet), func(t *testing.T) {
			tbl := openTable(t, 100)
			err := tbl.RegisterPlayer(bob, bet)
			require.ErrorIs(t, err, ErrBetMismatch)
			assert.Equal(t, []AccountID{alice}, tbl.Players())
			assert.Equal(t, Balance(100), tbl.AccumulatedPot())
		})
	}
}

func TestPotTracksPlayerCount(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 25)
	for n := 2; n <= MaxPlayers; n++ {
		require.NoError(t, tbl.RegisterPlayer(AccountID(fmt.Sprintf("player-%d", n)), 25))
		assert.Equal(t, n, tbl.PlayerCount())
		assert.Equal(t, Balance(25*n), tbl.AccumulatedPot())
	}
}

func TestRegisterPlayerTableFull(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 100)
	for n := 2; n <= MaxPlayers; n++ {
		require.NoError(t, tbl.RegisterPlayer(AccountID(fmt.Sprintf("player-%d", n)), 100))
	}

	err := tbl.RegisterPlayer("player-11", 100)
	require.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, MaxPlayers, tbl.PlayerCount())
	assert.Equal(t, Balance(100*MaxPlayers), tbl.AccumulatedPot())
}

func TestRegisterPlayerCheckOrder(t *testing.T) {
	t.Parallel()

	full := func(t *testing.T) *Table {
		tbl := openTable(t, 100)
		for n := 2; n <= MaxPlayers; n++ {
			require.NoError(t, tbl.RegisterPlayer(AccountID(fmt.Sprintf("player-%d", n)), 100))
		}
		return tbl
	}

	tests := []struct {
		name   string
		table  func(t *testing.T) *Table
		caller AccountID
		bet    Balance
		want   error
	}{
		{
			name: "state guard before capacity",
			table: func(t *testing.T) *Table {
				tbl := full(t)
				require.NoError(t, tbl.StartGame(alice))
				return tbl
			},
			caller: alice,
			bet:    1,
			want:   ErrTableNotAcceptingPlayers,
		},
		{
			name:   "capacity before bet",
			table:  full,
			caller: alice,
			bet:    1,
			want:   ErrTableFull,
		},
		{
			name:   "bet before duplicate",
			table:  func(t *testing.T) *Table { return openTable(t, 100) },
			caller: alice,
			bet:    1,
			want:   ErrBetMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table(t).RegisterPlayer(tt.caller, tt.bet)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStartGame(t *testing.T) {
	t.Parallel()

	t.Run("fewer than minimum players", func(t *testing.T) {
		tbl := openTable(t, 100, bob)
		err := tbl.StartGame(bob)
		require.ErrorIs(t, err, ErrInsufficientPlayers)
		assert.Equal(t, Staging, tbl.State())
	})

	t.Run("minimum players", func(t *testing.T) {
		tbl := openTable(t, 100, bob, charlie)
		require.NoError(t, tbl.StartGame(alice))
		assert.Equal(t, Playing, tbl.State())
	})

	t.Run("any caller may start", func(t *testing.T) {
		tbl := openTable(t, 100, bob, charlie)
		require.NoError(t, tbl.StartGame(eve))
		assert.Equal(t, Playing, tbl.State())
	})
}

func TestPlayingTableRejectsMutation(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 100, bob, charlie)
	require.NoError(t, tbl.StartGame(alice))

	require.ErrorIs(t, tbl.RegisterPlayer(django, 100), ErrTableNotAcceptingPlayers)
	require.ErrorIs(t, tbl.StartGame(alice), ErrTableNotAcceptingPlayers)
	require.ErrorIs(t, tbl.Terminate(eve), ErrTableNotTerminable)

	assert.Equal(t, Playing, tbl.State())
	assert.Equal(t, []AccountID{alice, bob, charlie}, tbl.Players())
	assert.Equal(t, Balance(300), tbl.AccumulatedPot())
}

func TestEndedTableRejectsMutation(t *testing.T) {
	t.Parallel()

	tbl, err := Restore(Record{
		Initializer:      alice,
		Players:          []AccountID{alice, bob, charlie},
		RequiredStartBet: 100,
		Pot:              300,
		State:            Ended,
	})
	require.NoError(t, err)

	require.ErrorIs(t, tbl.RegisterPlayer(django, 100), ErrTableNotAcceptingPlayers)
	require.ErrorIs(t, tbl.StartGame(alice), ErrTableNotAcceptingPlayers)
	require.ErrorIs(t, tbl.Terminate(eve), ErrTableNotTerminable)
	assert.Equal(t, Ended, tbl.State())
}

func TestTerminate(t *testing.T) {
	t.Parallel()

	t.Run("seated player is refused", func(t *testing.T) {
		tbl := openTable(t, 100, bob)
		for _, caller := range []AccountID{alice, bob} {
			err := tbl.Terminate(caller)
			require.ErrorIs(t, err, ErrNotAuthorized)
		}
		assert.Equal(t, []AccountID{alice, bob}, tbl.Players())
	})

	t.Run("outsider clears the players", func(t *testing.T) {
		tbl := openTable(t, 100, bob)
		require.NoError(t, tbl.Terminate(eve))

		assert.Equal(t, 0, tbl.PlayerCount())
		assert.Empty(t, tbl.Players())
		assert.Equal(t, Balance(200), tbl.AccumulatedPot(), "pot is left untouched")
		assert.Equal(t, Balance(100), tbl.RequiredStartBet())
		assert.Equal(t, Staging, tbl.State())
	})
}

func TestPlayersReturnsCopy(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 100, bob)
	players := tbl.Players()
	players[0] = eve

	assert.Equal(t, []AccountID{alice, bob}, tbl.Players())
}

func TestRegistrationOrder(t *testing.T) {
	t.Parallel()

	tbl := openTable(t, 10, charlie, bob, eve, django)
	assert.Equal(t, []AccountID{alice, charlie, bob, eve, django}, tbl.Players())
}

func TestScenario(t *testing.T) {
	t.Parallel()

	tbl, err := Open(alice, 100, nil)
	require.NoError(t, err)
	require.NoError(t, tbl.RegisterPlayer(bob, 100))
	require.NoError(t, tbl.RegisterPlayer(charlie, 100))

	assert.Equal(t, 3, tbl.PlayerCount())
	assert.Equal(t, Balance(300), tbl.AccumulatedPot())
	assert.Equal(t, Staging, tbl.State())

	require.NoError(t, tbl.StartGame(alice))
	assert.Equal(t, Playing, tbl.State())

	err = tbl.RegisterPlayer(django, 100)
	require.ErrorIs(t, err, ErrTableNotAcceptingPlayers)
	assert.Contains(t, err.Error(), "game is ongoing")
}
