package tasks

import (
	"github.com/desertthunder/plwatch/internal/models"
	"github.com/desertthunder/plwatch/internal/shared"
)

// ChangeKind classifies the outcome of comparing two snapshots of a playlist.
type ChangeKind int

const (
	Unchanged     ChangeKind = iota // version markers are equal
	ReorderedOnly                   // marker moved but membership is identical
	Changed                         // at least one track added or removed
)

func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case ReorderedOnly:
		return "reordered"
	case Changed:
		return "changed"
	default:
		return ""
	}
}

// ChangeReport is the result of [Diff]. Added and Removed are sorted and only populated for [Changed].
type ChangeReport struct {
	Kind    ChangeKind
	Added   []models.Track
	Removed []models.Track
}

// Equality projects a track onto the fields that identify it for comparison.
type Equality func(models.Track) models.Track

// ExactMatch compares tracks by id, name and adder.
func ExactMatch(t models.Track) models.Track { return t }

// IDMatch compares tracks by id only.
func IDMatch(t models.Track) models.Track { return models.Track{ID: t.ID} }

// EqualityFor returns the projection for a configured match mode.
func EqualityFor(mode string) Equality {
	if mode == shared.MatchByID {
		return IDMatch
	}
	return ExactMatch
}

// Diff compares two snapshots of one playlist using exact track equality.
func Diff(old, new *models.PlaylistSnapshot) ChangeReport {
	return DiffWith(old, new, ExactMatch)
}

// DiffWith compares two snapshots of one playlist. Tracks are considered the same when their projections
// under key are equal.
//
// Equal version markers short-circuit to [Unchanged] without looking at the tracks.
func DiffWith(old, new *models.PlaylistSnapshot, key Equality) ChangeReport {
	if old.VersionMarker == new.VersionMarker {
		return ChangeReport{Kind: Unchanged}
	}
	if key == nil {
		key = ExactMatch
	}

	added := difference(new.Tracks, old.Tracks, key)
	removed := difference(old.Tracks, new.Tracks, key)
	if len(added) == 0 && len(removed) == 0 {
		return ChangeReport{Kind: ReorderedOnly}
	}

	models.SortTracks(added)
	models.SortTracks(removed)
	return ChangeReport{Kind: Changed, Added: added, Removed: removed}
}

// difference returns the members of a whose key is absent from b.
func difference(a, b models.TrackSet, key Equality) []models.Track {
	keys := make(map[models.Track]struct{}, len(b))
	for t := range b {
		keys[key(t)] = struct{}{}
	}

	var out []models.Track
	for t := range a {
		if _, ok := keys[key(t)]; !ok {
			out = append(out, t)
		}
	}
	return out
}
