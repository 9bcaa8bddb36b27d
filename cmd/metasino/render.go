package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

// Renderer formats results for the terminal
type Renderer struct {
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	states  map[table.State]lipgloss.Style
	success lipgloss.Style
}

// NewRenderer builds styles for w. noColor forces plain ASCII output.
func NewRenderer(w io.Writer, noColor bool) *Renderer {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{
		header: r.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true),
		label: r.NewStyle().Foreground(lipgloss.Color("#626262")).Width(12),
		value: r.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#626262")),
		states: map[table.State]lipgloss.Style{
			table.Staging: r.NewStyle().Foreground(lipgloss.Color("#FFEAA7")).Bold(true),
			table.Playing: r.NewStyle().Foreground(lipgloss.Color("#96CEB4")).Bold(true),
			table.Ended:   r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		},
		success: r.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
	}
}

func (r *Renderer) state(s table.State) string {
	style, ok := r.states[s]
	if !ok {
		return s.String()
	}
	return style.Render(s.String())
}

// Table renders one table as a labelled block
func (r *Renderer) Table(s host.Snapshot) string {
	players := make([]string, len(s.Players))
	for i, p := range s.Players {
		players[i] = string(p)
	}
	playerList := strings.Join(players, ", ")
	if playerList == "" {
		playerList = r.muted.Render("(none)")
	}

	rows := []string{
		r.header.Render("Table " + s.ID),
		r.row("State", r.state(s.State)),
		r.row("Initializer", string(s.Initializer)),
		r.row("Start bet", fmt.Sprint(s.RequiredStartBet)),
		r.row("Pot", fmt.Sprint(s.Pot)),
		r.row("Players", fmt.Sprintf("%d/%d  %s", s.PlayerCount, table.MaxPlayers, playerList)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (r *Renderer) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, r.label.Render(label), r.value.Render(value))
}

// Tables renders a one-line summary per table
func (r *Renderer) Tables(tables []host.Snapshot) string {
	if len(tables) == 0 {
		return r.muted.Render("No tables")
	}

	lines := make([]string, 0, len(tables)+1)
	lines = append(lines, r.header.Render(fmt.Sprintf("%d tables", len(tables))))
	for _, s := range tables {
		lines = append(lines, fmt.Sprintf("%s  %s  bet=%d pot=%d players=%d/%d",
			s.ID, r.state(s.State), s.RequiredStartBet, s.Pot, s.PlayerCount, table.MaxPlayers))
	}
	return strings.Join(lines, "\n")
}

// Event renders a single event line
func (r *Renderer) Event(ev store.Event) string {
	keys := slices.Sorted(maps.Keys(ev.Attributes))
	attrs := make([]string, len(keys))
	for i, k := range keys {
		attrs[i] = k + "=" + ev.Attributes[k]
	}

	return fmt.Sprintf("%s %s %s %s",
		r.muted.Render(fmt.Sprintf("#%d", ev.Seq)),
		r.muted.Render(ev.Time.Format("2006-01-02 15:04:05")),
		r.success.Render(ev.Type),
		strings.Join(attrs, " "))
}

// Events renders an event log
func (r *Renderer) Events(tableID string, events []store.Event) string {
	lines := []string{r.header.Render("Events " + tableID)}
	if len(events) == 0 {
		lines = append(lines, r.muted.Render("No events"))
	}
	for _, ev := range events {
		lines = append(lines, r.Event(ev))
	}
	return strings.Join(lines, "\n")
}

// Success renders a confirmation line
func (r *Renderer) Success(msg string) string {
	return r.success.Render(msg)
}
