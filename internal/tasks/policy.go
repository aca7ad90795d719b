package tasks

import (
	"fmt"

	"github.com/desertthunder/plwatch/internal/models"
)

// messageTemplate renders adder, track, playlist and share URL, in that order.
const messageTemplate = "%s added \"%s\" to \"%s\"; have a listen: %s"

// PlaylistContext carries what a notification needs beyond the change report.
type PlaylistContext struct {
	Name      string
	ShareURL  string
	Recipient string
}

// Notification is one outbound text message about one added track.
type Notification struct {
	Recipient string
	Body      string
	Track     models.Track
	Playlist  string
}

// Decide turns a change report into notifications: one per track added by someone other than self.
//
// Removals and unchanged or reordered playlists produce nothing.
func Decide(report ChangeReport, self string, pc PlaylistContext) []Notification {
	if report.Kind != Changed {
		return nil
	}

	var out []Notification
	for _, t := range report.Added {
		if t.AddedBy == self {
			continue
		}
		out = append(out, Notification{
			Recipient: pc.Recipient,
			Body:      FormatMessage(t, pc),
			Track:     t,
			Playlist:  pc.Name,
		})
	}
	return out
}

// FormatMessage renders the alert text for a single added track.
func FormatMessage(t models.Track, pc PlaylistContext) string {
	return fmt.Sprintf(messageTemplate, t.AddedBy, t.Name, pc.Name, pc.ShareURL)
}
