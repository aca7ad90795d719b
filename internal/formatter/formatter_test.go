package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plwatch/internal/models"
	th "github.com/desertthunder/plwatch/internal/testing"
)

func testRegistry() models.Registry {
	return models.Registry{
		"Night": {
			Name: "Night", PlaylistID: "p2", OwnerID: "friend", VersionMarker: "x9",
			Tracks: models.NewTrackSet(),
		},
		"Day": {
			Name: "Day", PlaylistID: "p1", OwnerID: "owner", VersionMarker: "v1",
			ShareURL: "https://open.example/playlist/p1",
			Tracks: models.NewTrackSet(
				models.Track{ID: "2", Name: "Song, Two", AddedBy: "u2"},
				models.Track{ID: "1", Name: "Song One", AddedBy: "u1"},
			),
		},
	}
}

func TestFormatters(t *testing.T) {
	t.Run("Rows", func(t *testing.T) {
		rows := Rows(testRegistry())
		if len(rows) != 2 || rows[0].Name != "Day" || rows[0].TrackCount != 2 || rows[1].Name != "Night" {
			t.Errorf("unexpected rows %+v", rows)
		}
	})

	t.Run("RegistryToCSV", func(t *testing.T) {
		data, err := RegistryToCSV(testRegistry())
		if err != nil {
			t.Fatalf("RegistryToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if lines[0] != "Name,PlaylistID,Owner,VersionMarker,Tracks,ShareURL" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if len(lines) != 3 || !strings.HasPrefix(lines[1], "Day,p1,owner,v1,2,") {
			t.Errorf("unexpected CSV:\n%s", data)
		}
	})

	t.Run("SnapshotToCSV quotes fields", func(t *testing.T) {
		data, err := SnapshotToCSV(testRegistry()["Day"])
		if err != nil {
			t.Fatalf("SnapshotToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), `2,"Song, Two",u2`) {
			t.Errorf("expected quoted name, got:\n%s", data)
		}
	})

	t.Run("SnapshotToMarkdown", func(t *testing.T) {
		output := string(SnapshotToMarkdown(testRegistry()["Day"]))
		for _, want := range []string{"# Day", "**Tracks**: 2", "1. Song One (added by u1)", "https://open.example/playlist/p1"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in markdown:\n%s", want, output)
			}
		}
	})

	t.Run("StatusToText", func(t *testing.T) {
		savedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		s := Status{
			SavedAt:   &savedAt,
			Playlists: Rows(testRegistry()),
			Missing:   []string{"Weekend"},
			Runs:      []*models.SyncRun{{ID: "r1", Phase: "reconcile", StartedAt: savedAt, Checked: 2, Notified: 1}},
		}

		output := string(StatusToText(s))
		for _, want := range []string{"PLAYLIST", "Day", "Night", "Weekend", "reconcile"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output:\n%s", want, output)
			}
		}
	})

	t.Run("StatusToText without registry", func(t *testing.T) {
		output := string(StatusToText(Status{}))
		if !strings.Contains(output, "No saved registry") {
			t.Errorf("unexpected output %q", output)
		}
	})

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(Status{Playlists: Rows(testRegistry())}, true)
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}

		var decoded Status
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded.Playlists) != 2 || decoded.SavedAt != nil {
			t.Errorf("unexpected status %+v", decoded)
		}
	})

	t.Run("WriteExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "day.csv")
		if err := WriteExport(path, []byte("ID,Name,AddedBy\n")); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if got := th.MustReadFile(t, path); got != "ID,Name,AddedBy\n" {
			t.Errorf("unexpected file contents %q", got)
		}
	})

	t.Run("WriteExport to missing directory", func(t *testing.T) {
		if err := WriteExport(filepath.Join(t.TempDir(), "missing", "x.csv"), nil); err == nil {
			t.Error("expected error")
		}
	})
}
