// Command carshowctl runs admin tasks against a show database without the
// server: exports, resets, rankings, placeholder cards and ledger replays.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "carshowctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "carshowctl",
		Usage:   "offline admin tool for the car show database",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "db", Usage: "SQLite database path, overrides config"},
			&cli.StringFlag{Name: "show", Aliases: []string{"s"}, Usage: "show slug (default: the active show)"},
			&cli.StringFlag{Name: "loglevel", Value: "warn", Usage: "log level: debug, info, warn, error"},
		},
		Commands: []*cli.Command{
			exportCommand(),
			resetCommand(),
			leaderboardCommand(),
			placeholdersCommand(),
			replayCommand(),
			votingCommand(),
		},
	}
}
