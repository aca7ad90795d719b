package tasks

import (
	"context"

	"github.com/desertthunder/plwatch/internal/models"
	"github.com/desertthunder/plwatch/internal/services"
)

// FetchSnapshot reads a playlist's metadata and every page of its entries into a snapshot keyed by name.
func FetchSnapshot(ctx context.Context, src services.PlaylistSource, name string, ref services.PlaylistRef) (*models.PlaylistSnapshot, error) {
	detail, err := src.Playlist(ctx, ref)
	if err != nil {
		return nil, err
	}
	return completeSnapshot(ctx, src, name, detail)
}

// completeSnapshot pages through the remaining entries of detail.
func completeSnapshot(ctx context.Context, src services.PlaylistSource, name string, detail *services.PlaylistDetail) (*models.PlaylistSnapshot, error) {
	snap := snapshotHeader(name, detail)
	snap.Tracks = models.NewTrackSet(detail.Tracks.Tracks...)

	cursor := detail.Tracks.Next
	for cursor != "" {
		page, err := src.PlaylistTracks(ctx, detail.ID, cursor)
		if err != nil {
			return nil, err
		}
		for _, t := range page.Tracks {
			snap.Tracks.Add(t)
		}
		cursor = page.Next
	}
	return snap, nil
}

func snapshotHeader(name string, detail *services.PlaylistDetail) *models.PlaylistSnapshot {
	return &models.PlaylistSnapshot{
		Name:          name,
		PlaylistID:    detail.ID,
		OwnerID:       detail.OwnerID,
		VersionMarker: detail.VersionMarker,
		ShareURL:      detail.ShareURL,
	}
}
