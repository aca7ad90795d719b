package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plwatch/internal/tasks"
)

func TestProgress(t *testing.T) {
	phases := []tasks.Phase{
		tasks.PhaseInitialize, tasks.PhaseResolved, tasks.PhaseCheck, tasks.PhaseUnchanged,
		tasks.PhaseReordered, tasks.PhaseChanged, tasks.PhaseNotified, tasks.PhaseNotifyFailed,
		tasks.PhaseFetchFailed, tasks.PhasePersisted, tasks.PhaseSleeping,
	}

	for _, phase := range phases {
		t.Run(phase.String(), func(t *testing.T) {
			line := Progress(tasks.ProgressUpdate{Phase: phase, Message: "Day changed"})
			if !strings.Contains(line, "Day changed") {
				t.Errorf("expected message in %q", line)
			}
		})
	}
}

func TestBanner(t *testing.T) {
	out := Banner("owner", []string{"Day", "Night"}, "+12345678901", time.Minute)
	for _, want := range []string{"owner", "Day, Night", "+12345678901", "1m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in banner:\n%s", want, out)
		}
	}
}
