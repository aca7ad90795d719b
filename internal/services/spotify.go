// Spotify implementation of [PlaylistSource]
//
// Requests go through [spotify.Client]; authentication uses an [oauth2.Config] built from the app credentials.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/desertthunder/plwatch/internal/models"
	"github.com/desertthunder/plwatch/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	defaultRedirectURI = "http://127.0.0.1:3000/callback"
	playlistPageSize   = 50
	trackPageSize      = 100
)

// SpotifyService implements [PlaylistSource] for the Spotify Web API.
//
// The service also acts as the auth collaborator: [SpotifyService.Token] returns a currently valid access token,
// refreshing it when expired.
type SpotifyService struct {
	config  *oauth2.Config
	baseURL string

	mu             sync.RWMutex
	source         oauth2.TokenSource
	client         *spotify.Client
	onTokenRefresh func(*oauth2.Token)
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL points the API client at another host. The URL must end with a slash.
func WithSpotifyBaseURL(url string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = url }
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(url string) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint.TokenURL = url }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				spotifyauth.ScopePlaylistReadPrivate,
				spotifyauth.ScopePlaylistReadCollaborative,
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 configuration for the callback handler.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to be called with every new token, including the first one used.
//
// Must be called before [SpotifyService.Authenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

// Authenticate installs a saved token. Expired tokens are refreshed on demand using the refresh token.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no saved token; run 'plwatch auth'", shared.ErrAuthUnavailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The token source outlives the caller's request scope.
	base := s.config.TokenSource(context.WithoutCancel(ctx), token)
	s.source = &refreshableTokenSource{source: base, callback: s.onTokenRefresh}

	httpClient := &http.Client{Transport: &oauth2.Transport{Source: s.source}}
	clientOpts := []spotify.ClientOption{}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(s.baseURL))
	}
	s.client = spotify.New(httpClient, clientOpts...)
	return nil
}

// Token returns a currently valid access token or an error wrapping [shared.ErrAuthUnavailable].
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	source := s.source
	s.mu.RUnlock()

	if source == nil {
		return nil, fmt.Errorf("%w: not authenticated", shared.ErrAuthUnavailable)
	}

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthUnavailable, err)
	}
	if !token.Valid() {
		return nil, fmt.Errorf("%w: token is not valid", shared.ErrAuthUnavailable)
	}
	return token, nil
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("%w: not authenticated", shared.ErrAuthUnavailable)
	}
	return s.client, nil
}

// UserPlaylists lists one page of the playlists owned or followed by account.
func (s *SpotifyService) UserPlaylists(ctx context.Context, account, cursor string) (*PlaylistPage, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	offset, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	page, err := client.GetPlaylistsForUser(ctx, account, spotify.Limit(playlistPageSize), spotify.Offset(offset))
	if err != nil {
		return nil, classifyError(fmt.Sprintf("list playlists for %s", account), err)
	}

	result := &PlaylistPage{Playlists: make([]PlaylistSummary, 0, len(page.Playlists))}
	for _, p := range page.Playlists {
		result.Playlists = append(result.Playlists, summarize(p))
	}
	if page.Next != "" {
		result.Next = strconv.Itoa(offset + len(page.Playlists))
	}
	return result, nil
}

// Playlist fetches a playlist's metadata and first page of entries.
//
// The owner is not needed by the current Web API; the playlist id alone resolves it.
func (s *SpotifyService) Playlist(ctx context.Context, ref PlaylistRef) (*PlaylistDetail, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	full, err := client.GetPlaylist(ctx, spotify.ID(ref.ID))
	if err != nil {
		return nil, classifyError(fmt.Sprintf("get playlist %s", ref.ID), err)
	}

	detail := &PlaylistDetail{
		PlaylistSummary: summarize(full.SimplePlaylist),
		Tracks:          convertTrackPage(&full.Tracks),
	}
	return detail, nil
}

// PlaylistTracks fetches the page of entries starting at cursor.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID, cursor string) (*TrackPage, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	offset, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	page, err := client.GetPlaylistTracks(ctx, spotify.ID(playlistID), spotify.Limit(trackPageSize), spotify.Offset(offset))
	if err != nil {
		return nil, classifyError(fmt.Sprintf("get tracks of %s", playlistID), err)
	}

	result := convertTrackPage(page)
	return &result, nil
}

func summarize(p spotify.SimplePlaylist) PlaylistSummary {
	return PlaylistSummary{
		PlaylistRef:   PlaylistRef{ID: string(p.ID), OwnerID: p.Owner.ID},
		Name:          p.Name,
		VersionMarker: p.SnapshotID,
		ShareURL:      p.ExternalURLs["spotify"],
	}
}

func convertTrackPage(page *spotify.PlaylistTrackPage) TrackPage {
	result := TrackPage{Tracks: make([]models.Track, 0, len(page.Tracks))}
	for _, item := range page.Tracks {
		id := string(item.Track.ID)
		if id == "" {
			// local files have no catalog id
			id = string(item.Track.URI)
		}
		result.Tracks = append(result.Tracks, models.Track{
			ID:      id,
			Name:    item.Track.Name,
			AddedBy: item.AddedBy.ID,
		})
	}
	if page.Next != "" {
		result.Next = strconv.Itoa(int(page.Offset) + len(page.Tracks))
	}
	return result
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: bad page cursor %q", shared.ErrInvalidArgument, cursor)
	}
	return offset, nil
}

// classifyError maps client errors onto the shared taxonomy.
func classifyError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %v", shared.ErrAuthUnavailable, op, err)
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %v", shared.ErrAuthUnavailable, op, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %v", shared.ErrPlaylistNotFound, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %v", shared.ErrTransientFetch, op, err)
}
