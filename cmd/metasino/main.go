package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version   kong.VersionFlag `short:"v" help:"Show version"`
	Serve     ServeCmd         `cmd:"" help:"Run the table server"`
	Open      OpenCmd          `cmd:"" help:"Open a new table"`
	Join      JoinCmd          `cmd:"" help:"Register at a table"`
	Start     StartCmd         `cmd:"" help:"Start the game at a table"`
	Terminate TerminateCmd     `cmd:"" help:"Terminate a table"`
	Show      ShowCmd          `cmd:"" help:"Show a table"`
	List      ListCmd          `cmd:"" help:"List all tables"`
	Events    EventsCmd        `cmd:"" help:"Show the event log of a table"`
	Watch     WatchCmd         `cmd:"" help:"Stream events of a table"`
	Inspect   InspectCmd       `cmd:"" help:"Read tables directly from a store"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("metasino"),
		kong.Description("Betting table registration server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
