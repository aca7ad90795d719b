package models

import (
	"cmp"
	"slices"
	"time"
)

// Track is a playlist entry. Two tracks are equal iff ID, Name and AddedBy all match.
type Track struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	AddedBy string `json:"added_by"`
}

// TrackSet is a set of tracks keyed by value.
type TrackSet map[Track]struct{}

// NewTrackSet builds a set from tracks, dropping duplicates.
func NewTrackSet(tracks ...Track) TrackSet {
	s := make(TrackSet, len(tracks))
	for _, t := range tracks {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts t into the set.
func (s TrackSet) Add(t Track) {
	s[t] = struct{}{}
}

// Contains reports whether t is a member.
func (s TrackSet) Contains(t Track) bool {
	_, ok := s[t]
	return ok
}

// Len returns the number of members.
func (s TrackSet) Len() int {
	return len(s)
}

// Equal reports whether both sets hold exactly the same tracks.
func (s TrackSet) Equal(o TrackSet) bool {
	if len(s) != len(o) {
		return false
	}
	for t := range s {
		if !o.Contains(t) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s TrackSet) Clone() TrackSet {
	c := make(TrackSet, len(s))
	for t := range s {
		c[t] = struct{}{}
	}
	return c
}

// Sorted returns the members ordered by ID, then Name, then AddedBy.
func (s TrackSet) Sorted() []Track {
	out := make([]Track, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	SortTracks(out)
	return out
}

// SortTracks orders tracks by ID, then Name, then AddedBy.
func SortTracks(tracks []Track) {
	slices.SortFunc(tracks, func(a, b Track) int {
		return cmp.Or(
			cmp.Compare(a.ID, b.ID),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.AddedBy, b.AddedBy),
		)
	})
}

// PlaylistSnapshot is the observed state of one playlist at one fetch.
type PlaylistSnapshot struct {
	Name          string   `json:"name"`
	PlaylistID    string   `json:"playlist_id"`
	OwnerID       string   `json:"owner_id"`
	VersionMarker string   `json:"version_marker"`
	ShareURL      string   `json:"share_url"`
	Tracks        TrackSet `json:"-"`
}

// Clone returns a deep copy of the snapshot.
func (p *PlaylistSnapshot) Clone() *PlaylistSnapshot {
	if p == nil {
		return nil
	}
	c := *p
	c.Tracks = p.Tracks.Clone()
	return &c
}

// Registry maps a tracked playlist's name to its latest snapshot.
type Registry map[string]*PlaylistSnapshot

// Names returns the tracked playlist names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of the registry.
func (r Registry) Clone() Registry {
	c := make(Registry, len(r))
	for name, snap := range r {
		c[name] = snap.Clone()
	}
	return c
}

// Missing returns the configured names that have no entry in the registry, in input order.
func (r Registry) Missing(names []string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := r[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// SyncRun summarizes one reconciliation cycle.
type SyncRun struct {
	ID         string    `json:"id"`
	Phase      string    `json:"phase"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	Changed    int       `json:"changed"`
	Notified   int       `json:"notified"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
