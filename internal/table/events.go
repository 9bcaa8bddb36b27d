package table

// EventType represents a table event type with type safety
type EventType string

const (
	EventTypeNewTableOpened       EventType = "new_table_opened"
	EventTypeMinimumPlayerReached EventType = "minimum_player_reached"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is an observation emitted by the table for external consumers.
type Event interface {
	EventType() EventType
}

// Emitter receives events as operations produce them.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) { f(e) }

// NewTableOpened is emitted when a table is created.
type NewTableOpened struct {
	Initiator        AccountID
	RequiredStartBet Balance
}

func (NewTableOpened) EventType() EventType { return EventTypeNewTableOpened }

// MinimumPlayerReached is part of the event vocabulary consumers subscribe
// to, but no operation emits it.
type MinimumPlayerReached struct {
	AccountID AccountID
}

func (MinimumPlayerReached) EventType() EventType { return EventTypeMinimumPlayerReached }
