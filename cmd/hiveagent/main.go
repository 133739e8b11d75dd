package main

import (
	"log/slog"

	"git.home.luguber.info/inful/hiveagent/cmd/hiveagent/commands"
	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/version"
	"github.com/alecthomas/kong"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("hiveagent"),
		kong.Description("Hivemind node agent: periodic essence sync and local state lifecycle."),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
