package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Run     RunCmd           `cmd:"" default:"withargs" help:"Connect bots to a majiang server"`
	Replay  ReplayCmd        `cmd:"" help:"Feed a recorded transcript through a fresh session"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("mjaibot"),
		kong.Description("Plays on a majiang server with an mjai bot"),
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
