// package formatter renders the persisted watcher state as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/plwatch/internal/models"
)

// PlaylistRow is the summary of one tracked playlist.
type PlaylistRow struct {
	Name          string `json:"name"`
	PlaylistID    string `json:"playlist_id"`
	OwnerID       string `json:"owner_id"`
	VersionMarker string `json:"version_marker"`
	TrackCount    int    `json:"track_count"`
	ShareURL      string `json:"share_url"`
}

// Status is the JSON document printed by the status command.
type Status struct {
	SavedAt   *time.Time        `json:"saved_at,omitempty"`
	Playlists []PlaylistRow     `json:"playlists"`
	Missing   []string          `json:"missing,omitempty"`
	Runs      []*models.SyncRun `json:"runs,omitempty"`
}

// Rows summarizes the registry in name order.
func Rows(reg models.Registry) []PlaylistRow {
	rows := make([]PlaylistRow, 0, len(reg))
	for _, name := range reg.Names() {
		snap := reg[name]
		rows = append(rows, PlaylistRow{
			Name:          name,
			PlaylistID:    snap.PlaylistID,
			OwnerID:       snap.OwnerID,
			VersionMarker: snap.VersionMarker,
			TrackCount:    snap.Tracks.Len(),
			ShareURL:      snap.ShareURL,
		})
	}
	return rows
}

// ToJSON marshals v, indented when pretty is set.
func ToJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// RegistryToCSV converts the registry to CSV with columns: Name, PlaylistID, Owner, VersionMarker, Tracks, ShareURL
func RegistryToCSV(reg models.Registry) ([]byte, error) {
	records := [][]string{{"Name", "PlaylistID", "Owner", "VersionMarker", "Tracks", "ShareURL"}}
	for _, row := range Rows(reg) {
		records = append(records, []string{
			row.Name,
			row.PlaylistID,
			row.OwnerID,
			row.VersionMarker,
			strconv.Itoa(row.TrackCount),
			row.ShareURL,
		})
	}
	return writeCSV(records)
}

// SnapshotToCSV converts one playlist's tracks to CSV with columns: ID, Name, AddedBy
func SnapshotToCSV(snap *models.PlaylistSnapshot) ([]byte, error) {
	records := [][]string{{"ID", "Name", "AddedBy"}}
	for _, t := range snap.Tracks.Sorted() {
		records = append(records, []string{t.ID, t.Name, t.AddedBy})
	}
	return writeCSV(records)
}

func writeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// SnapshotToMarkdown renders one playlist and its tracks grouped under a heading.
func SnapshotToMarkdown(snap *models.PlaylistSnapshot) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", snap.Name)
	if snap.ShareURL != "" {
		fmt.Fprintf(&buf, "**Link**: %s\n", snap.ShareURL)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", snap.Tracks.Len())
	fmt.Fprintf(&buf, "**Version**: `%s`\n\n", snap.VersionMarker)

	buf.WriteString("## Tracks\n\n")
	for i, t := range snap.Tracks.Sorted() {
		fmt.Fprintf(&buf, "%d. %s (added by %s)\n", i+1, t.Name, t.AddedBy)
	}
	return buf.Bytes()
}

// StatusToText renders the status as aligned plain-text tables.
func StatusToText(s Status) []byte {
	var buf bytes.Buffer

	if s.SavedAt == nil {
		buf.WriteString("No saved registry; the next watch will scan the account.\n")
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Registry saved %s\n\n", s.SavedAt.Local().Format(time.DateTime))

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYLIST\tTRACKS\tVERSION\tLINK")
	for _, row := range s.Playlists {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", row.Name, row.TrackCount, row.VersionMarker, row.ShareURL)
	}
	tw.Flush()

	if len(s.Missing) > 0 {
		buf.WriteString("\nConfigured but not tracked:\n")
		for _, name := range s.Missing {
			fmt.Fprintf(&buf, "  - %s\n", name)
		}
	}

	if len(s.Runs) > 0 {
		buf.WriteString("\nRecent cycles:\n")
		tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tPHASE\tCHECKED\tCHANGED\tNOTIFIED\tFAILED\tERROR")
		for _, run := range s.Runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				run.StartedAt.Local().Format(time.DateTime), run.Phase,
				run.Checked, run.Changed, run.Notified, run.Failed, run.Error)
		}
		tw.Flush()
	}
	return buf.Bytes()
}

// WriteExport writes data to path.
func WriteExport(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
