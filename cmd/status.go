package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/plwatch/internal/formatter"
	"github.com/desertthunder/plwatch/internal/models"
	"github.com/desertthunder/plwatch/internal/repositories"
	"github.com/desertthunder/plwatch/internal/shared"
	"github.com/urfave/cli/v3"
)

// playlistExport is a snapshot with its tracks listed, used for JSON output.
type playlistExport struct {
	*models.PlaylistSnapshot
	Tracks []models.Track `json:"tracks"`
}

// openState loads the config for cmd and opens the state database.
func (r *Runner) openState(cmd *cli.Command) (*shared.Config, *sql.DB, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenStateDatabase(config.Database)
	if err != nil {
		return nil, nil, err
	}
	return config, db, nil
}

// Status prints the persisted registry, or the tracks of one playlist with --playlist.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	config, db, err := r.openState(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	format := cmd.String("format")
	if cmd.Bool("json") {
		format = "json"
	}

	registry := repositories.NewRegistryRepository(db)
	reg, _, err := registry.Load(ctx)
	if err != nil {
		return err
	}

	var data []byte
	if name := cmd.String("playlist"); name != "" {
		snap, ok := reg[name]
		if !ok {
			return fmt.Errorf("%w: %q is not tracked", shared.ErrPlaylistNotFound, name)
		}
		data, err = renderSnapshot(snap, format, cmd.Bool("pretty"))
	} else {
		var status formatter.Status
		status, err = r.buildStatus(ctx, db, config, reg, int(cmd.Int("runs")))
		if err != nil {
			return err
		}
		data, err = renderStatus(status, reg, format, cmd.Bool("pretty"))
	}
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(path, data); err != nil {
			return err
		}
		r.logger.Infof("status written to %v", path)
		return r.writePlain("✓ Wrote %s\n", path)
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) buildStatus(ctx context.Context, db *sql.DB, config *shared.Config, reg models.Registry, limit int) (formatter.Status, error) {
	status := formatter.Status{
		Playlists: formatter.Rows(reg),
		Missing:   reg.Missing(config.Watch.Playlists),
	}

	savedAt, ok, err := repositories.NewRegistryRepository(db).SavedAt(ctx)
	if err != nil {
		return status, err
	}
	if ok {
		status.SavedAt = &savedAt
	}

	if limit > 0 {
		runs, err := repositories.NewRunRepository(db).List(ctx, limit)
		if err != nil {
			return status, err
		}
		status.Runs = runs
	}
	return status, nil
}

func renderStatus(status formatter.Status, reg models.Registry, format string, pretty bool) ([]byte, error) {
	switch format {
	case "text", "":
		return formatter.StatusToText(status), nil
	case "json":
		data, err := formatter.ToJSON(status, pretty)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case "csv":
		return formatter.RegistryToCSV(reg)
	default:
		return nil, fmt.Errorf("%w: format %q is not available for the registry", shared.ErrInvalidArgument, format)
	}
}

func renderSnapshot(snap *models.PlaylistSnapshot, format string, pretty bool) ([]byte, error) {
	switch format {
	case "text", "markdown", "":
		return formatter.SnapshotToMarkdown(snap), nil
	case "json":
		data, err := formatter.ToJSON(playlistExport{PlaylistSnapshot: snap, Tracks: snap.Tracks.Sorted()}, pretty)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case "csv":
		return formatter.SnapshotToCSV(snap)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// Reset deletes the saved registry so the next watch re-initializes from the account's playlists.
func (r *Runner) Reset(ctx context.Context, cmd *cli.Command) error {
	_, db, err := r.openState(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewRegistryRepository(db).Reset(ctx); err != nil {
		return err
	}
	r.logger.Info("registry reset")

	if cmd.Bool("history") {
		n, err := repositories.NewRunRepository(db).Prune(ctx, 0)
		if err != nil {
			return err
		}
		r.logger.Infof("deleted %d cycle records", n)
	}

	return r.writePlain("✓ Registry cleared; the next watch will scan the account again\n")
}
