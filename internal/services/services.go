// package services defines the external collaborators of the watcher and implements them
//
// Spotify (playlists + OAuth2 tokens), Twilio (text messages)
package services

import (
	"context"

	"github.com/desertthunder/plwatch/internal/models"
)

// PlaylistRef identifies a playlist well enough to re-fetch it.
type PlaylistRef struct {
	ID      string
	OwnerID string
}

// PlaylistSummary is a playlist as it appears in an account's listing.
type PlaylistSummary struct {
	PlaylistRef
	Name          string
	VersionMarker string
	ShareURL      string
}

// PlaylistPage is one page of an account's playlist listing.
//
// Next is an opaque continuation token; empty when the listing is exhausted.
type PlaylistPage struct {
	Playlists []PlaylistSummary
	Next      string
}

// TrackPage is one ordered page of a playlist's entries.
type TrackPage struct {
	Tracks []models.Track
	Next   string
}

// PlaylistDetail is a playlist's metadata plus the first page of its entries.
type PlaylistDetail struct {
	PlaylistSummary
	Tracks TrackPage
}

// PlaylistSource is the read side of a music service used to observe playlists.
type PlaylistSource interface {
	// UserPlaylists lists playlists of account starting at cursor ("" for the first page).
	UserPlaylists(ctx context.Context, account, cursor string) (*PlaylistPage, error)

	// Playlist fetches metadata and the first page of entries.
	Playlist(ctx context.Context, ref PlaylistRef) (*PlaylistDetail, error)

	// PlaylistTracks fetches a subsequent page of entries.
	PlaylistTracks(ctx context.Context, playlistID, cursor string) (*TrackPage, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Messenger delivers a text message and returns the provider's message id.
type Messenger interface {
	Send(ctx context.Context, recipient, body string) (string, error)
}
