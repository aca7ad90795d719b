package tasks

import (
	"fmt"
	"time"
)

// ProgressUpdate represents a progress event during a reconciliation cycle.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase    Phase  // Cycle phase
	Step     int    // Current playlist number within the cycle
	Total    int    // Total playlists in this cycle
	Playlist string // Playlist the update is about, if any
	Message  string // Human-readable message for display
	Data     any    // Optional phase-specific data ([ChangeReport], [Notification])
}

// Cycle phase enumeration
type Phase int

const (
	PhaseInitialize Phase = iota
	PhaseResolved
	PhaseCheck
	PhaseUnchanged
	PhaseReordered
	PhaseChanged
	PhaseNotified
	PhaseNotifyFailed
	PhaseFetchFailed
	PhasePersisted
	PhaseSleeping
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialize:
		return "initialize"
	case PhaseResolved:
		return "resolved"
	case PhaseCheck:
		return "check"
	case PhaseUnchanged:
		return "unchanged"
	case PhaseReordered:
		return "reordered"
	case PhaseChanged:
		return "changed"
	case PhaseNotified:
		return "notified"
	case PhaseNotifyFailed:
		return "notify_failed"
	case PhaseFetchFailed:
		return "fetch_failed"
	case PhasePersisted:
		return "persisted"
	case PhaseSleeping:
		return "sleeping"
	default:
		return ""
	}
}

func initializeUpdate(account string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseInitialize,
		Total:   total,
		Message: fmt.Sprintf("Scanning playlists of %s for %d tracked names...", account, total),
	}
}

func resolvedUpdate(step, total int, name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseResolved,
		Step:     step,
		Total:    total,
		Playlist: name,
		Message:  fmt.Sprintf("[%d/%d] Tracking %s (%d tracks)", step, total, name, tracks),
	}
}

func checkUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseCheck,
		Step:     step,
		Total:    total,
		Playlist: name,
		Message:  fmt.Sprintf("[%d/%d] Checking %s...", step, total, name),
	}
}

func outcomeUpdate(step, total int, name string, report ChangeReport) ProgressUpdate {
	u := ProgressUpdate{Step: step, Total: total, Playlist: name, Data: report}
	switch report.Kind {
	case Changed:
		u.Phase = PhaseChanged
		u.Message = fmt.Sprintf("[%d/%d] %s changed: +%d -%d", step, total, name, len(report.Added), len(report.Removed))
	case ReorderedOnly:
		u.Phase = PhaseReordered
		u.Message = fmt.Sprintf("[%d/%d] %s reordered", step, total, name)
	default:
		u.Phase = PhaseUnchanged
		u.Message = fmt.Sprintf("[%d/%d] %s unchanged", step, total, name)
	}
	return u
}

func notifiedUpdate(step, total int, n Notification) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseNotified,
		Step:     step,
		Total:    total,
		Playlist: n.Playlist,
		Message:  fmt.Sprintf("[%d/%d] ✓ texted %s about %q", step, total, n.Recipient, n.Track.Name),
		Data:     n,
	}
}

func notifyFailedUpdate(step, total int, n Notification, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseNotifyFailed,
		Step:     step,
		Total:    total,
		Playlist: n.Playlist,
		Message:  fmt.Sprintf("[%d/%d] ✗ text about %q failed: %v", step, total, n.Track.Name, err),
		Data:     n,
	}
}

func fetchFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseFetchFailed,
		Step:     step,
		Total:    total,
		Playlist: name,
		Message:  fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func persistedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhasePersisted,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Saved %d playlists", total),
	}
}

func sleepingUpdate(d time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseSleeping,
		Message: fmt.Sprintf("Next check in %s", d),
	}
}
