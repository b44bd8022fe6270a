package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

type CLI struct {
	Globals

	Place   placeCmd   `cmd:"" help:"Place servers once and print both objectives."`
	Run     runCmd     `cmd:"" help:"Run the configured experiment grid and print the report."`
	Serve   serveCmd   `cmd:"" help:"Serve the HTTP control surface for experiment runs."`
	Watch   watchCmd   `cmd:"" help:"Stream progress events of a run from a server."`
	Cache   cacheCmd   `cmd:"" help:"Manage cached datasets."`
	Version versionCmd `cmd:"" help:"Print build information."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("edgeplace"),
		kong.Description("Edge server placement experiments"),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.ConfigureHelp(kong.HelpOptions{
			Tree: true,
		}),
		kong.UsageOnError(),
	)
	if err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		parser.FatalIfErrorf(err)
	}

	err = kctx.Run(&cli.Globals)
	parser.FatalIfErrorf(err)
}
