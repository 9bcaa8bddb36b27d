package table

import "fmt"

// State represents where a table is in its lifecycle. States only move
// forward.
type State int

const (
	Staging State = iota
	Playing
	// Ended is terminal. No operation currently produces it, but every
	// mutating operation rejects a table in this state.
	Ended
)

// String returns the string representation of a table state
func (s State) String() string {
	switch s {
	case Staging:
		return "staging"
	case Playing:
		return "playing"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("table: unknown state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState converts the output of State.String back into a State.
func ParseState(v string) (State, error) {
	switch v {
	case "staging":
		return Staging, nil
	case "playing":
		return Playing, nil
	case "ended":
		return Ended, nil
	}
	return 0, fmt.Errorf("table: unknown state %q", v)
}

func (s State) valid() bool {
	return s >= Staging && s <= Ended
}
