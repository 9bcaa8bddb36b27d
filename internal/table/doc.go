// Package table implements the registration state machine for a single
// betting table.
//
// A table is opened by an initiator who stakes the required start bet.
// Further players join by matching that bet exactly, up to MaxPlayers. Once
// MinPlayers are seated anyone may start the game, which closes
// registration.
//
// # Basic Usage
//
//	t, err := table.Open("alice", 100, nil)
//	if err != nil {
//	    return err
//	}
//	_ = t.RegisterPlayer("bob", 100)
//	_ = t.RegisterPlayer("carol", 100)
//	_ = t.StartGame("bob")
//	// t.State() == table.Playing, t.AccumulatedPot() == 300
//
// # Errors
//
// Operations either succeed completely or return one of the package's
// sentinel errors without touching any field. Use errors.Is to classify a
// failure.
//
// # Persistence
//
// The package holds no storage logic. Record captures a table's fields and
// Restore rebuilds a table from them; the host is responsible for keeping
// records between calls.
package table
