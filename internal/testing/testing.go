// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plwatch/internal/models"
	"github.com/desertthunder/plwatch/internal/services"
	"github.com/desertthunder/plwatch/internal/shared"
	"golang.org/x/oauth2"
)

// FakePlaylist is a playlist served by [FakeSource].
type FakePlaylist struct {
	Summary services.PlaylistSummary
	Tracks  []models.Track
}

// FakeSource is an in-memory [services.PlaylistSource].
//
// Listing holds the account's playlist pages in order; entries are served PageSize at a time (all at once when 0).
type FakeSource struct {
	mu        sync.Mutex
	Listing   [][]services.PlaylistSummary
	Playlists map[string]*FakePlaylist
	PageSize  int
	ListErr   error
	FetchErr  map[string]error
	calls     map[string]int
}

// NewFakeSource creates a source holding playlists, listed PerPage to a page.
func NewFakeSource(perPage int, playlists ...*FakePlaylist) *FakeSource {
	f := &FakeSource{Playlists: map[string]*FakePlaylist{}, FetchErr: map[string]error{}, calls: map[string]int{}}
	var page []services.PlaylistSummary
	for _, p := range playlists {
		f.Playlists[p.Summary.ID] = p
		page = append(page, p.Summary)
		if perPage > 0 && len(page) == perPage {
			f.Listing = append(f.Listing, page)
			page = nil
		}
	}
	if len(page) > 0 || len(f.Listing) == 0 {
		f.Listing = append(f.Listing, page)
	}
	return f
}

// NewFakePlaylist builds a playlist with a share URL derived from its id.
func NewFakePlaylist(id, name, marker string, tracks ...models.Track) *FakePlaylist {
	return &FakePlaylist{
		Summary: services.PlaylistSummary{
			PlaylistRef:   services.PlaylistRef{ID: id, OwnerID: "owner"},
			Name:          name,
			VersionMarker: marker,
			ShareURL:      "https://open.example/playlist/" + id,
		},
		Tracks: tracks,
	}
}

func (f *FakeSource) Name() string { return "fake" }

// SetTracks replaces a playlist's entries and version marker.
func (f *FakeSource) SetTracks(id, marker string, tracks ...models.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.Playlists[id]
	p.Summary.VersionMarker = marker
	p.Tracks = tracks
}

// SetFetchErr makes every fetch of playlist id fail with err; nil clears it.
func (f *FakeSource) SetFetchErr(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.FetchErr, id)
		return
	}
	f.FetchErr[id] = err
}

// Calls returns how often op was invoked. Ops are "list", "playlist:<id>" and "tracks:<id>".
func (f *FakeSource) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeSource) count(op string) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[op]++
}

func (f *FakeSource) UserPlaylists(ctx context.Context, account, cursor string) (*services.PlaylistPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("list")

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	idx := 0
	if cursor != "" {
		var err error
		if idx, err = strconv.Atoi(cursor); err != nil || idx >= len(f.Listing) {
			return nil, fmt.Errorf("%w: cursor %q", shared.ErrInvalidArgument, cursor)
		}
	}

	page := &services.PlaylistPage{Playlists: f.Listing[idx]}
	if idx+1 < len(f.Listing) {
		page.Next = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func (f *FakeSource) Playlist(ctx context.Context, ref services.PlaylistRef) (*services.PlaylistDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("playlist:" + ref.ID)

	if err := f.FetchErr[ref.ID]; err != nil {
		return nil, err
	}
	p, ok := f.Playlists[ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, ref.ID)
	}
	return &services.PlaylistDetail{PlaylistSummary: p.Summary, Tracks: f.page(p, 0)}, nil
}

func (f *FakeSource) PlaylistTracks(ctx context.Context, playlistID, cursor string) (*services.TrackPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("tracks:" + playlistID)

	if err := f.FetchErr[playlistID]; err != nil {
		return nil, err
	}
	p, ok := f.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor %q", shared.ErrInvalidArgument, cursor)
	}
	page := f.page(p, offset)
	return &page, nil
}

func (f *FakeSource) page(p *FakePlaylist, offset int) services.TrackPage {
	end := len(p.Tracks)
	if f.PageSize > 0 && offset+f.PageSize < end {
		end = offset + f.PageSize
	}

	page := services.TrackPage{Tracks: append([]models.Track(nil), p.Tracks[offset:end]...)}
	if end < len(p.Tracks) {
		page.Next = strconv.Itoa(end)
	}
	return page
}

// SentMessage is a message recorded by [FakeMessenger].
type SentMessage struct {
	Recipient string
	Body      string
}

// FakeMessenger records messages. Fail, when set, decides per message whether the send fails.
type FakeMessenger struct {
	mu   sync.Mutex
	Sent []SentMessage
	Fail func(recipient, body string) error
}

func (m *FakeMessenger) Send(ctx context.Context, recipient, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail != nil {
		if err := m.Fail(recipient, body); err != nil {
			return "", err
		}
	}
	m.Sent = append(m.Sent, SentMessage{Recipient: recipient, Body: body})
	return fmt.Sprintf("SM%03d", len(m.Sent)), nil
}

// Messages returns a copy of the messages sent so far.
func (m *FakeMessenger) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// FakeTokenSource returns a valid token until Err is set.
type FakeTokenSource struct {
	Err error
}

func (f *FakeTokenSource) Token() (*oauth2.Token, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &oauth2.Token{AccessToken: "test_token", Expiry: time.Now().Add(time.Hour)}, nil
}

// MemoryStore keeps the registry in memory and counts saves.
type MemoryStore struct {
	Registry models.Registry
	Saves    int
	LoadErr  error
	SaveErr  error
}

func (s *MemoryStore) Load(ctx context.Context) (models.Registry, bool, error) {
	if s.LoadErr != nil {
		return nil, false, s.LoadErr
	}
	if s.Registry == nil {
		return nil, false, nil
	}
	return s.Registry.Clone(), true, nil
}

func (s *MemoryStore) Save(ctx context.Context, reg models.Registry) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Saves++
	s.Registry = reg.Clone()
	return nil
}

// MemoryRuns records cycle summaries.
type MemoryRuns struct {
	Runs []models.SyncRun
	Err  error
}

func (m *MemoryRuns) Record(ctx context.Context, run *models.SyncRun) error {
	if m.Err != nil {
		return m.Err
	}
	m.Runs = append(m.Runs, *run)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
