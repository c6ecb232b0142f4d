package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/config"
	"github.com/karmankarshows/carshow/internal/export"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
)

// env is the set of services a command works with.
type env struct {
	repo        *repository.Repository
	show        *repository.ShowRecord
	shows       *services.ShowService
	cars        *services.CarService
	ledger      *services.LedgerService
	leaderboard *services.LeaderboardService
}

func (e *env) Close() {
	e.repo.Close()
}

// openEnv loads config, opens the database and resolves the target show.
func openEnv(c *cli.Context) (*env, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if p := c.String("db"); p != "" {
		cfg.Database.Path = p
	}
	log := logger.NewWithOptions(logger.Options{Level: logger.ParseLevel(c.String("loglevel")), Output: os.Stderr})

	repo, err := repository.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	shows := services.NewShowService(log, repo)
	leaderboard := services.NewLeaderboardService(log, repo)
	e := &env{
		repo:        repo,
		shows:       shows,
		cars:        services.NewCarService(log, repo, cfg.Server.BaseURL),
		ledger:      services.NewLedgerService(log, repo, shows, leaderboard, m),
		leaderboard: leaderboard,
	}

	if slug := c.String("show"); slug != "" {
		e.show, err = shows.ShowBySlug(c.Context, slug)
	} else {
		e.show, err = shows.ActiveShow(c.Context)
	}
	if err != nil {
		repo.Close()
		return nil, err
	}
	return e, nil
}

// operatorSession stands in for an admin login: whoever can open the
// database file is already trusted with it.
func operatorSession() *auth.Session {
	now := time.Now()
	return &auth.Session{Token: "carshowctl", IssuedAt: now, LastSeen: now, ExpiresAt: now.Add(time.Hour)}
}

// withEnv wraps an action that needs an open database.
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(c, e)
	}
}

func writeOutput(c *cli.Context, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the vote ledger as csv, xlsx or a zip snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "csv", Usage: "csv, xlsx or zip"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default: named after the show)"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			var (
				data []byte
				name string
				err  error
			)
			switch format := c.String("format"); format {
			case "csv":
				data, err = e.ledger.ExportCSV(c.Context, e.show.ID)
				name = e.show.Slug + "-votes.csv"
			case "xlsx":
				data, err = e.ledger.ExportXLSX(c.Context, e.show.ID)
				name = e.show.Slug + "-votes.xlsx"
			case "zip":
				var snap *services.Snapshot
				snap, err = e.ledger.Snapshot(c.Context, e.show.ID)
				if snap != nil {
					data, name = snap.Data, snap.Filename
				}
			default:
				return fmt.Errorf("unknown format %q, want csv, xlsx or zip", format)
			}
			if err != nil {
				return err
			}
			if out := c.String("out"); out != "" {
				name = out
			}
			return writeOutput(c, name, data)
		}),
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "snapshot the show to a zip, then delete every vote",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: ".", Usage: "directory for the snapshot zip"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm the reset"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			if !c.Bool("yes") {
				return fmt.Errorf("refusing to reset %s without --yes", e.show.Slug)
			}
			snap, deleted, err := e.ledger.ResetWithSnapshot(c.Context, operatorSession(), e.show.ID)
			if snap != nil {
				if werr := writeOutput(c, filepath.Join(c.String("dir"), snap.Filename), snap.Data); werr != nil && err == nil {
					err = werr
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "deleted %d ledger entries from %s\n", deleted, e.show.Slug)
			return nil
		}),
	}
}

func leaderboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "leaderboard",
		Usage: "print standings per category and overall",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"},
			&cli.StringFlag{Name: "chart", Usage: "also write the overall ranking as a PNG to this file"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			board, err := e.leaderboard.Full(c.Context, e.show.ID)
			if err != nil {
				return err
			}
			if path := c.String("chart"); path != "" {
				png, err := e.leaderboard.Chart(c.Context, e.show.ID, e.show.Title)
				if err != nil {
					return err
				}
				if err := writeOutput(c, path, png); err != nil {
					return err
				}
			}
			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(board)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			for _, cat := range board.ByCategory {
				fmt.Fprintf(w, "%s\t\t\n", cat.Category.Name)
				if len(cat.Standings) == 0 {
					fmt.Fprintf(w, "\t(no votes)\t\n")
				}
				for i, s := range cat.Standings {
					fmt.Fprintf(w, "  %d.\t#%d\t%d\n", i+1, s.CarNumber, s.Votes)
				}
			}
			fmt.Fprintf(w, "Overall\t\t\n")
			for i, s := range board.Overall {
				fmt.Fprintf(w, "  %d.\t#%d\t%d\n", i+1, s.CarNumber, s.Votes)
			}
			fmt.Fprintf(w, "\n%d entries, %d votes, $%.2f\t\t\n", board.Stats.Entries, board.Stats.Votes, float64(board.Stats.AmountCents)/100)
			return w.Flush()
		}),
	}
}

func placeholdersCommand() *cli.Command {
	return &cli.Command{
		Name:  "placeholders",
		Usage: "create unclaimed car numbers for walk-up check-in",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start", Value: 1, Usage: "first car number"},
			&cli.IntFlag{Name: "count", Required: true, Usage: "how many numbers to create"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			created, err := e.cars.CreatePlaceholders(c.Context, operatorSession(), e.show.ID, c.Int("start"), c.Int("count"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "created %d placeholder cars in %s\n", created, e.show.Slug)
			return nil
		}),
	}
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "load a votes csv export back into the ledger",
		ArgsUsage: "<votes.csv>",
		Action: withEnv(func(c *cli.Context, e *env) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("replay needs a csv file")
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := export.ReadLedgerCSV(f)
			if err != nil {
				return err
			}
			res, err := e.ledger.Replay(c.Context, e.show.ID, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "inserted %d, duplicates %d, skipped %d\n", res.Inserted, res.Duplicates, len(res.Skipped))
			for _, s := range res.Skipped {
				fmt.Fprintf(c.App.Writer, "  skipped %s\n", s)
			}
			return nil
		}),
	}
}

func votingCommand() *cli.Command {
	set := func(open bool) cli.ActionFunc {
		return withEnv(func(c *cli.Context, e *env) error {
			rec, err := e.shows.SetVotingOpen(c.Context, operatorSession(), e.show.ID, open)
			if err != nil {
				return err
			}
			return printStatus(c.Context, c, e, rec.Slug)
		})
	}
	return &cli.Command{
		Name:  "voting",
		Usage: "show or change whether voting is open",
		Subcommands: []*cli.Command{
			{Name: "status", Usage: "print voting state", Action: withEnv(func(c *cli.Context, e *env) error {
				return printStatus(c.Context, c, e, e.show.Slug)
			})},
			{Name: "open", Usage: "open voting", Action: set(true)},
			{Name: "close", Usage: "close voting", Action: set(false)},
		},
	}
}

func printStatus(ctx context.Context, c *cli.Context, e *env, slug string) error {
	status, err := e.shows.Status(ctx, slug)
	if err != nil {
		return err
	}
	state := "closed"
	if status.Open {
		state = "open"
	}
	fmt.Fprintf(c.App.Writer, "%s: voting %s", slug, state)
	if status.EndsAt != nil {
		fmt.Fprintf(c.App.Writer, ", ends %s", status.EndsAt.Format(time.RFC3339))
	}
	fmt.Fprintln(c.App.Writer)
	return nil
}
