// Package store persists table records and their event logs between host
// invocations.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lox/metasino/internal/table"
)

var (
	// ErrNotFound is returned when no record exists for a table ID.
	ErrNotFound = errors.New("store: table not found")

	// ErrInvalidID is returned for IDs that cannot be used as storage keys.
	ErrInvalidID = errors.New("store: invalid table id")

	// ErrSequence is returned when committed events do not continue a
	// table's log.
	ErrSequence = errors.New("store: event sequence out of order")
)

// Event is the persisted form of an observation recorded against a table.
type Event struct {
	Seq        int64             `json:"seq"`
	TableID    string            `json:"tableId"`
	Type       string            `json:"type"`
	Time       time.Time         `json:"time"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Store is the durable storage used by the host.
type Store interface {
	// Load returns the record for id or ErrNotFound.
	Load(ctx context.Context, id string) (table.Record, error)
	// Commit creates or replaces the record for id and appends events to
	// its log. Either all of it is stored or none of it is.
	Commit(ctx context.Context, id string, rec table.Record, events ...Event) error
	// List returns all stored table IDs in ascending order.
	List(ctx context.Context) ([]string, error)
	// Events returns the log for id in append order.
	Events(ctx context.Context, id string) ([]Event, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open constructs the named backend. path is a directory for the file
// backend, a database file for sqlite, and ignored for memory.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(path)
	case BackendSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}

func checkID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// checkSequence verifies that events carry strictly increasing sequence
// numbers above last.
func checkSequence(last int64, events []Event) error {
	for _, ev := range events {
		if ev.Seq <= last {
			return fmt.Errorf("%w: seq %d after %d", ErrSequence, ev.Seq, last)
		}
		last = ev.Seq
	}
	return nil
}

func cloneRecord(rec table.Record) table.Record {
	out := rec
	out.Players = append([]table.AccountID(nil), rec.Players...)
	return out
}

func cloneEvent(ev Event) Event {
	out := ev
	if ev.Attributes != nil {
		out.Attributes = make(map[string]string, len(ev.Attributes))
		for k, v := range ev.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
