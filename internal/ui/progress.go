package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/plwatch/internal/tasks"
)

// Progress renders a progress update as a single colored line.
func Progress(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.PhaseChanged, tasks.PhaseNotified, tasks.PhasePersisted:
		return styles.OK(u.Message)
	case tasks.PhaseFetchFailed, tasks.PhaseNotifyFailed:
		return styles.Err(u.Message)
	case tasks.PhaseReordered:
		return styles.Warn(u.Message)
	case tasks.PhaseUnchanged, tasks.PhaseSleeping, tasks.PhaseCheck:
		return styles.Muted(u.Message)
	case tasks.PhaseInitialize:
		return styles.Title(u.Message)
	default:
		return u.Message
	}
}

// Banner describes the watch about to start.
func Banner(account string, playlists []string, recipient string, interval time.Duration) string {
	var b strings.Builder
	b.WriteString(styles.Title("plwatch"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  account:   %s\n", account)
	fmt.Fprintf(&b, "  playlists: %s\n", strings.Join(playlists, ", "))
	fmt.Fprintf(&b, "  texting:   %s\n", recipient)
	fmt.Fprintf(&b, "  interval:  %s\n", interval)
	return b.String()
}
