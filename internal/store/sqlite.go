package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lox/metasino/internal/table"
)

// SQLite stores tables and events in a sqlite database. Player lists and
// event attributes are kept as msgpack blobs.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema
// exists.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite backend requires a database path")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY between
	// our own goroutines.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			initializer TEXT NOT NULL,
			players BLOB NOT NULL,
			required_start_bet INTEGER NOT NULL,
			pot INTEGER NOT NULL,
			state TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create tables table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			table_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			time_ns INTEGER NOT NULL,
			attributes BLOB NOT NULL,
			PRIMARY KEY (table_id, seq),
			FOREIGN KEY (table_id) REFERENCES tables(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, id string) (table.Record, error) {
	var (
		initializer string
		players     []byte
		bet, pot    int64
		state       string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT initializer, players, required_start_bet, pot, state FROM tables WHERE id = ?`, id,
	).Scan(&initializer, &players, &bet, &pot, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return table.Record{}, ErrNotFound
	}
	if err != nil {
		return table.Record{}, fmt.Errorf("load table %s: %w", id, err)
	}

	decoded, err := decodePlayers(players)
	if err != nil {
		return table.Record{}, fmt.Errorf("load table %s: %w", id, err)
	}
	parsed, err := table.ParseState(state)
	if err != nil {
		return table.Record{}, fmt.Errorf("load table %s: %w", id, err)
	}

	return table.Record{
		Initializer:      table.AccountID(initializer),
		Players:          decoded,
		RequiredStartBet: table.Balance(bet),
		Pot:              table.Balance(pot),
		State:            parsed,
	}, nil
}

func (s *SQLite) Commit(ctx context.Context, id string, rec table.Record, events ...Event) error {
	if err := checkID(id); err != nil {
		return err
	}

	players, err := encodePlayers(rec.Players)
	if err != nil {
		return fmt.Errorf("commit table %s: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit table %s: %w", id, err)
	}
	defer tx.Rollback()

	var last int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE table_id = ?`, id,
	).Scan(&last)
	if err != nil {
		return fmt.Errorf("commit table %s: %w", id, err)
	}
	if err := checkSequence(last, events); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tables (id, initializer, players, required_start_bet, pot, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			initializer = excluded.initializer,
			players = excluded.players,
			required_start_bet = excluded.required_start_bet,
			pot = excluded.pot,
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP
	`, id, string(rec.Initializer), players, int64(rec.RequiredStartBet), int64(rec.Pot), rec.State.String())
	if err != nil {
		return fmt.Errorf("commit table %s: %w", id, err)
	}

	for _, ev := range events {
		attrs, err := encodeAttributes(ev.Attributes)
		if err != nil {
			return fmt.Errorf("commit table %s: %w", id, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (table_id, seq, type, time_ns, attributes) VALUES (?, ?, ?, ?, ?)`,
			id, ev.Seq, ev.Type, ev.Time.UnixNano(), attrs,
		)
		if err != nil {
			return fmt.Errorf("commit table %s: event %d: %w", id, ev.Seq, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tables ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Events(ctx context.Context, id string) ([]Event, error) {
	if err := tableExists(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, type, time_ns, attributes FROM events WHERE table_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", id, err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev     Event
			timeNs int64
			attrs  []byte
		)
		if err := rows.Scan(&ev.Seq, &ev.Type, &timeNs, &attrs); err != nil {
			return nil, fmt.Errorf("load events for %s: %w", id, err)
		}
		ev.TableID = id
		ev.Time = time.Unix(0, timeNs).UTC()
		if ev.Attributes, err = decodeAttributes(attrs); err != nil {
			return nil, fmt.Errorf("load events for %s: %w", id, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tables WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup table %s: %w", id, err)
	}
	return nil
}
