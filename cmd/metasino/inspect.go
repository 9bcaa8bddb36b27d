package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
	"github.com/lox/metasino/internal/tableid"
)

// InspectCmd reads tables straight from a store without a running server
type InspectCmd struct {
	Backend string `default:"file" enum:"file,sqlite" help:"Store backend (file or sqlite)"`
	Path    string `required:"" help:"Store directory (file) or database (sqlite)"`
	Table   string `arg:"" optional:"" help:"Table ID; lists every table when omitted"`
	NoColor bool   `help:"Disable colored output"`
}

func (c *InspectCmd) Run() error {
	st, err := store.Open(c.Backend, c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	out, err := inspect(context.Background(), st, c.Table, NewRenderer(os.Stdout, c.NoColor))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func inspect(ctx context.Context, st store.Store, id string, r *Renderer) (string, error) {
	if id != "" {
		if err := tableid.Validate(id); err != nil {
			return "", err
		}
		snap, err := loadSnapshot(ctx, st, id)
		if err != nil {
			return "", err
		}
		events, err := st.Events(ctx, id)
		if err != nil {
			return "", err
		}
		return r.Table(snap) + "\n\n" + r.Events(id, events), nil
	}

	ids, err := st.List(ctx)
	if err != nil {
		return "", err
	}
	snaps := make([]host.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := loadSnapshot(ctx, st, id)
		if err != nil {
			return "", err
		}
		snaps = append(snaps, snap)
	}
	return r.Tables(snaps), nil
}

func loadSnapshot(ctx context.Context, st store.Store, id string) (host.Snapshot, error) {
	rec, err := st.Load(ctx, id)
	if err != nil {
		return host.Snapshot{}, fmt.Errorf("load table %s: %w", id, err)
	}
	t, err := table.Restore(rec)
	if err != nil {
		return host.Snapshot{}, fmt.Errorf("table %s: %w", id, err)
	}
	return host.SnapshotOf(id, t), nil
}
