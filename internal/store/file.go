package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lox/metasino/internal/table"
)

const fileExt = ".toml"

// File stores each table as a TOML document named <id>.toml inside a
// directory. Documents are replaced atomically, so a reader sees either the
// previous or the next version of a table and never a partial write.
type File struct {
	dir string
	mu  sync.Mutex
}

type fileDocument struct {
	Table  fileRecord  `toml:"table"`
	Events []fileEvent `toml:"events"`
}

type fileRecord struct {
	Initializer      string   `toml:"initializer"`
	Players          []string `toml:"players"`
	RequiredStartBet int64    `toml:"required_start_bet"`
	Pot              int64    `toml:"pot"`
	State            string   `toml:"state"`
}

type fileEvent struct {
	Seq        int64             `toml:"seq"`
	Type       string            `toml:"type"`
	Time       time.Time         `toml:"time"`
	Attributes map[string]string `toml:"attributes,omitempty"`
}

// NewFile opens a file store rooted at dir, creating the directory if
// needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("store: file backend requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Load(_ context.Context, id string) (table.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read(id)
	if err != nil {
		return table.Record{}, err
	}
	return doc.Table.record()
}

func (f *File) Commit(_ context.Context, id string, rec table.Record, events ...Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read(id)
	if errors.Is(err, ErrNotFound) {
		doc = &fileDocument{}
	} else if err != nil {
		return err
	}

	var last int64
	if n := len(doc.Events); n > 0 {
		last = doc.Events[n-1].Seq
	}
	if err := checkSequence(last, events); err != nil {
		return err
	}

	doc.Table = newFileRecord(rec)
	for _, ev := range events {
		doc.Events = append(doc.Events, fileEvent{
			Seq:        ev.Seq,
			Type:       ev.Type,
			Time:       ev.Time.UTC(),
			Attributes: ev.Attributes,
		})
	}
	return f.write(id, doc)
}

func (f *File) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *File) Events(_ context.Context, id string) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read(id)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(doc.Events))
	for _, fe := range doc.Events {
		events = append(events, Event{
			Seq:        fe.Seq,
			TableID:    id,
			Type:       fe.Type,
			Time:       fe.Time,
			Attributes: fe.Attributes,
		})
	}
	return events, nil
}

func (f *File) Close() error { return nil }

func (f *File) path(id string) string {
	return filepath.Join(f.dir, id+fileExt)
}

func (f *File) read(id string) (*fileDocument, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", id, err)
	}

	var doc fileDocument
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", id, err)
	}
	return &doc, nil
}

func (f *File) write(id string, doc *fileDocument) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode table %s: %w", id, err)
	}
	return writeFileAtomic(f.path(id), buf.Bytes(), 0o644)
}

func newFileRecord(rec table.Record) fileRecord {
	players := make([]string, len(rec.Players))
	for i, p := range rec.Players {
		players[i] = string(p)
	}
	return fileRecord{
		Initializer:      string(rec.Initializer),
		Players:          players,
		RequiredStartBet: int64(rec.RequiredStartBet),
		Pot:              int64(rec.Pot),
		State:            rec.State.String(),
	}
}

func (fr fileRecord) record() (table.Record, error) {
	state, err := table.ParseState(fr.State)
	if err != nil {
		return table.Record{}, err
	}
	players := make([]table.AccountID, len(fr.Players))
	for i, p := range fr.Players {
		players[i] = table.AccountID(p)
	}
	return table.Record{
		Initializer:      table.AccountID(fr.Initializer),
		Players:          players,
		RequiredStartBet: table.Balance(fr.RequiredStartBet),
		Pot:              table.Balance(fr.Pot),
		State:            state,
	}, nil
}

// writeFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over filename. The temporary file must live on the
// same filesystem for the rename to be atomic.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	committed = true
	return nil
}
