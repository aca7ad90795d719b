package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plwatch/internal/models"
)

// RegistryRepository stores the tracked playlist registry.
//
// Save rewrites every row in a single transaction so readers never see a partial registry.
type RegistryRepository struct {
	db *sql.DB
}

// NewRegistryRepository creates a new RegistryRepository with the given database connection
func NewRegistryRepository(db *sql.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// Load reads the saved registry. found is false when no registry has been saved yet.
func (r *RegistryRepository) Load(ctx context.Context) (models.Registry, bool, error) {
	if _, found, err := r.SavedAt(ctx); err != nil || !found {
		return nil, false, err
	}

	reg, err := r.loadPlaylists(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := r.loadTracks(ctx, reg); err != nil {
		return nil, false, err
	}
	return reg, true, nil
}

// SavedAt returns when the registry was last saved.
func (r *RegistryRepository) SavedAt(ctx context.Context) (time.Time, bool, error) {
	var savedAt time.Time
	err := r.db.QueryRowContext(ctx, `SELECT saved_at FROM registry_state WHERE id = 1`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read registry state: %w", err)
	}
	return savedAt, true, nil
}

func (r *RegistryRepository) loadPlaylists(ctx context.Context) (models.Registry, error) {
	query := `
		SELECT name, playlist_id, owner_id, version_marker, share_url
		FROM tracked_playlists
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked playlists: %w", err)
	}
	defer rows.Close()

	reg := models.Registry{}
	for rows.Next() {
		snap := &models.PlaylistSnapshot{Tracks: models.NewTrackSet()}
		if err := rows.Scan(&snap.Name, &snap.PlaylistID, &snap.OwnerID, &snap.VersionMarker, &snap.ShareURL); err != nil {
			return nil, fmt.Errorf("failed to scan tracked playlist: %w", err)
		}
		reg[snap.Name] = snap
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reg, nil
}

func (r *RegistryRepository) loadTracks(ctx context.Context, reg models.Registry) error {
	rows, err := r.db.QueryContext(ctx, `SELECT playlist_name, track_id, track_name, added_by FROM playlist_tracks`)
	if err != nil {
		return fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			track models.Track
		)
		if err := rows.Scan(&name, &track.ID, &track.Name, &track.AddedBy); err != nil {
			return fmt.Errorf("failed to scan playlist track: %w", err)
		}
		if snap, ok := reg[name]; ok {
			snap.Tracks.Add(track)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

// Save replaces the stored registry with reg.
func (r *RegistryRepository) Save(ctx context.Context, reg models.Registry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM playlist_tracks`, `DELETE FROM tracked_playlists`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear registry: %w", err)
		}
	}

	playlistStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracked_playlists (name, playlist_id, owner_id, version_marker, share_url)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare playlist insert: %w", err)
	}
	defer playlistStmt.Close()

	trackStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_name, track_id, track_name, added_by)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer trackStmt.Close()

	for _, name := range reg.Names() {
		snap := reg[name]
		if _, err := playlistStmt.ExecContext(ctx, name, snap.PlaylistID, snap.OwnerID, snap.VersionMarker, snap.ShareURL); err != nil {
			return fmt.Errorf("failed to insert playlist %s: %w", name, err)
		}

		for _, t := range snap.Tracks.Sorted() {
			if _, err := trackStmt.ExecContext(ctx, name, t.ID, t.Name, t.AddedBy); err != nil {
				return fmt.Errorf("failed to insert track %s of %s: %w", t.ID, name, err)
			}
		}
	}

	query := `
		INSERT INTO registry_state (id, saved_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at
	`
	if _, err := tx.ExecContext(ctx, query, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark registry saved: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registry: %w", err)
	}
	return nil
}

// Reset removes the stored registry so the next watch rescans the account.
func (r *RegistryRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM playlist_tracks`,
		`DELETE FROM tracked_playlists`,
		`DELETE FROM registry_state`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset registry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}
