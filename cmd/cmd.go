// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// watchCommand runs the reconciliation loop
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Poll the configured playlists and text on new tracks from collaborators",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Your user id; tracks you add never trigger a text",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "phone-number",
				Aliases:  []string{"p"},
				Usage:    "Number to text, formatted +1XXXXXXXXXX",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "playlist",
				Usage: "Playlist name to watch (repeatable, replaces watch.playlists)",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Pause between cycles (overrides watch.interval)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Playlists fetched at once (overrides watch.concurrency)",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single cycle and exit",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Log messages instead of sending them",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "With --once, print the cycle record as JSON",
			},
		},
		Action: r.Watch,
	}
}

// authCommand runs the OAuth2 flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize access to your Spotify playlists and save the tokens",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Auth,
	}
}

// setupCommand creates the config file and the database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file if needed, initialize the database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// statusCommand prints the persisted registry
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the tracked playlists and recent cycles",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Show the tracks of one playlist",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, json, csv or markdown",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Shorthand for --format json",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
			&cli.IntFlag{
				Name:  "runs",
				Usage: "Number of recent cycles to include",
				Value: 5,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.Status,
	}
}

// resetCommand clears the persisted registry
func resetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Forget the saved registry so the next watch scans the account again",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Also delete the cycle history",
			},
		},
		Action: r.Reset,
	}
}
