package store

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/tinylib/msgp/msgp"

	"github.com/lox/metasino/internal/table"
)

// Compact msgpack encodings for the list and map columns of the sqlite
// backend.

func encodePlayers(players []table.AccountID) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)

	if err := w.WriteArrayHeader(uint32(len(players))); err != nil {
		return nil, err
	}
	for _, p := range players {
		if err := w.WriteString(string(p)); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePlayers(data []byte) ([]table.AccountID, error) {
	r := msgp.NewReader(bytes.NewReader(data))

	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	if n > table.MaxPlayers {
		return nil, fmt.Errorf("decode players: %d entries exceeds table capacity", n)
	}

	players := make([]table.AccountID, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decode player %d: %w", i, err)
		}
		players = append(players, table.AccountID(s))
	}
	return players, nil
}

// encodeAttributes writes keys in sorted order so equal maps encode to
// equal bytes.
func encodeAttributes(attrs map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)

	if err := w.WriteMapHeader(uint32(len(keys))); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := w.WriteString(k); err != nil {
			return nil, err
		}
		if err := w.WriteString(attrs[k]); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAttributes(data []byte) (map[string]string, error) {
	r := msgp.NewReader(bytes.NewReader(data))

	n, err := r.ReadMapHeader()
	if err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	attrs := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decode attribute key: %w", err)
		}
		v, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decode attribute %s: %w", k, err)
		}
		attrs[k] = v
	}
	return attrs, nil
}
