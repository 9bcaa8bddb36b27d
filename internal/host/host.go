// Package host is the execution environment around the table state
// machine. It resolves who is calling, keeps table state in a store between
// calls, and records and publishes the events each call produces.
package host

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
	"github.com/lox/metasino/internal/tableid"
)

// ErrMissingCaller is returned when an operation has no caller identity.
var ErrMissingCaller = errors.New("host: caller identity required")

// Host event types recorded alongside the table's own events.
const (
	EventTypePlayerRegistered = "player_registered"
	EventTypeGameStarted      = "game_started"
	EventTypeTableTerminated  = "table_terminated"
)

// Snapshot is a read-only view of a stored table.
type Snapshot struct {
	ID               string            `json:"id"`
	Initializer      table.AccountID   `json:"initializer"`
	Players          []table.AccountID `json:"players"`
	PlayerCount      int               `json:"playerCount"`
	RequiredStartBet table.Balance     `json:"requiredStartBet"`
	Pot              table.Balance     `json:"pot"`
	State            table.State       `json:"state"`
}

// Host runs table operations one at a time against a store.
type Host struct {
	store  store.Store
	logger *log.Logger
	clock  quartz.Clock
	newID  func() string

	// mu serializes every operation, so no two calls ever touch table
	// state concurrently.
	mu  sync.Mutex
	seq map[string]int64

	subMu   sync.RWMutex
	subs    map[int]chan store.Event
	nextSub int
}

// Option configures a Host.
type Option func(*Host)

// WithClock sets the clock used to timestamp events.
func WithClock(clock quartz.Clock) Option {
	return func(h *Host) { h.clock = clock }
}

// WithIDGenerator overrides how new table IDs are produced.
func WithIDGenerator(gen func() string) Option {
	return func(h *Host) { h.newID = gen }
}

// New constructs a Host backed by s.
func New(s store.Store, logger *log.Logger, opts ...Option) *Host {
	h := &Host{
		store:  s,
		logger: logger.WithPrefix("host"),
		clock:  quartz.NewReal(),
		newID:  tableid.Generate,
		seq:    make(map[string]int64),
		subs:   make(map[int]chan store.Event),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open creates a table on behalf of caller and returns it.
func (h *Host) Open(ctx context.Context, caller table.AccountID, requiredStartBet table.Balance) (Snapshot, error) {
	if caller == "" {
		return Snapshot{}, ErrMissingCaller
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var pending []table.Event
	t, err := table.Open(caller, requiredStartBet, table.EmitterFunc(func(e table.Event) {
		pending = append(pending, e)
	}))
	if err != nil {
		h.logger.Debug("Open rejected", "caller", caller, "bet", requiredStartBet, "error", err)
		return Snapshot{}, err
	}

	id := h.newID()
	events := make([]store.Event, 0, len(pending))
	for i, e := range pending {
		events = append(events, h.stamp(id, int64(i+1), e.EventType().String(), tableEventAttributes(e)))
	}
	if err := h.commit(ctx, id, t, events); err != nil {
		return Snapshot{}, err
	}

	h.logger.Info("Table opened", "table", id, "initiator", caller, "bet", requiredStartBet)
	return SnapshotOf(id, t), nil
}

// Register seats caller at table id with the given stake.
func (h *Host) Register(ctx context.Context, id string, caller table.AccountID, startBet table.Balance) (Snapshot, error) {
	return h.apply(ctx, id, caller, func(t *table.Table) (string, map[string]string, error) {
		if err := t.RegisterPlayer(caller, startBet); err != nil {
			return "", nil, err
		}
		return EventTypePlayerRegistered, map[string]string{
			"account":   string(caller),
			"start_bet": formatBalance(startBet),
			"pot":       formatBalance(t.AccumulatedPot()),
		}, nil
	})
}

// Start moves table id into play.
func (h *Host) Start(ctx context.Context, id string, caller table.AccountID) (Snapshot, error) {
	return h.apply(ctx, id, caller, func(t *table.Table) (string, map[string]string, error) {
		if err := t.StartGame(caller); err != nil {
			return "", nil, err
		}
		return EventTypeGameStarted, map[string]string{
			"caller":  string(caller),
			"players": strconv.Itoa(t.PlayerCount()),
			"pot":     formatBalance(t.AccumulatedPot()),
		}, nil
	})
}

// Terminate tears table id down.
func (h *Host) Terminate(ctx context.Context, id string, caller table.AccountID) (Snapshot, error) {
	return h.apply(ctx, id, caller, func(t *table.Table) (string, map[string]string, error) {
		if err := t.Terminate(caller); err != nil {
			return "", nil, err
		}
		return EventTypeTableTerminated, map[string]string{
			"caller": string(caller),
		}, nil
	})
}

// Table returns the current state of table id.
func (h *Host) Table(ctx context.Context, id string) (Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotOf(id, t), nil
}

// List returns every stored table in ID order.
func (h *Host) List(ctx context.Context) ([]Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids, err := h.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		t, err := h.load(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, SnapshotOf(id, t))
	}
	return out, nil
}

// Events returns the recorded event log of table id.
func (h *Host) Events(ctx context.Context, id string) ([]store.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	events, err := h.store.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", id, err)
	}
	return events, nil
}

type operation func(t *table.Table) (eventType string, attrs map[string]string, err error)

// apply loads table id, runs op and commits the result together with its
// event. When op or the commit fails the stored table is left untouched.
// The returned snapshot is the state op produced.
func (h *Host) apply(ctx context.Context, id string, caller table.AccountID, op operation) (Snapshot, error) {
	if caller == "" {
		return Snapshot{}, ErrMissingCaller
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	eventType, attrs, err := op(t)
	if err != nil {
		h.logger.Debug("Operation rejected", "table", id, "caller", caller, "error", err)
		return Snapshot{}, fmt.Errorf("table %s: %w", id, err)
	}

	seq, err := h.lastSeq(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	ev := h.stamp(id, seq+1, eventType, attrs)
	if err := h.commit(ctx, id, t, []store.Event{ev}); err != nil {
		return Snapshot{}, err
	}

	h.logger.Info("Table updated",
		"table", id,
		"event", eventType,
		"caller", caller,
		"state", t.State(),
		"players", t.PlayerCount(),
		"pot", t.AccumulatedPot())
	return SnapshotOf(id, t), nil
}

func (h *Host) load(ctx context.Context, id string) (*table.Table, error) {
	rec, err := h.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", id, err)
	}
	t, err := table.Restore(rec)
	if err != nil {
		return nil, fmt.Errorf("restore table %s: %w", id, err)
	}
	return t, nil
}

// lastSeq returns the sequence number of the newest event of table id.
// Callers hold h.mu.
func (h *Host) lastSeq(ctx context.Context, id string) (int64, error) {
	if seq, ok := h.seq[id]; ok {
		return seq, nil
	}
	existing, err := h.store.Events(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load events for %s: %w", id, err)
	}
	if n := len(existing); n > 0 {
		return existing[n-1].Seq, nil
	}
	return 0, nil
}

func (h *Host) stamp(id string, seq int64, eventType string, attrs map[string]string) store.Event {
	return store.Event{
		Seq:        seq,
		TableID:    id,
		Type:       eventType,
		Time:       h.clock.Now().UTC(),
		Attributes: attrs,
	}
}

// commit stores t and its new events in one step, then publishes the
// events. Nothing is published unless the store accepted all of it.
// Callers hold h.mu.
func (h *Host) commit(ctx context.Context, id string, t *table.Table, events []store.Event) error {
	if err := h.store.Commit(ctx, id, t.Record(), events...); err != nil {
		return fmt.Errorf("commit table %s: %w", id, err)
	}
	if n := len(events); n > 0 {
		h.seq[id] = events[n-1].Seq
	}
	for _, ev := range events {
		h.publish(ev)
	}
	return nil
}

// SnapshotOf builds the read-only view of t stored under id.
func SnapshotOf(id string, t *table.Table) Snapshot {
	return Snapshot{
		ID:               id,
		Initializer:      t.Initializer(),
		Players:          t.Players(),
		PlayerCount:      t.PlayerCount(),
		RequiredStartBet: t.RequiredStartBet(),
		Pot:              t.AccumulatedPot(),
		State:            t.State(),
	}
}

func tableEventAttributes(e table.Event) map[string]string {
	switch ev := e.(type) {
	case table.NewTableOpened:
		return map[string]string{
			"initiator":          string(ev.Initiator),
			"required_start_bet": formatBalance(ev.RequiredStartBet),
		}
	case table.MinimumPlayerReached:
		return map[string]string{
			"account_id": string(ev.AccountID),
		}
	}
	return nil
}

func formatBalance(b table.Balance) string {
	return strconv.FormatInt(int64(b), 10)
}
