package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/wsrun/internal/event"
)

func send(t *testing.T, m Model, e event.Event) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(EventMsg{Event: e})
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func TestModel_TracksPackageStatus(t *testing.T) {
	m := NewModel("build")
	m, _ = send(t, m, event.NewRunStartedEvent("build", event.ModeBatched, []string{"a", "b", "c"}, 2))

	if got := m.Counts()[StatusPending]; got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}

	m, _ = send(t, m, event.NewBatchStartedEvent(0, 2, []string{"a", "b"}))
	m, _ = send(t, m, event.NewPackageStartedEvent("a", 0))
	m, _ = send(t, m, event.NewPackageStartedEvent("b", 0))
	m, _ = send(t, m, event.NewPackageFinishedEvent("a", 0, 0, time.Second, nil, nil, nil))
	m, _ = send(t, m, event.NewPackageFinishedEvent("b", 0, 2, time.Second, nil, nil, errors.New("exit 2")))
	m, _ = send(t, m, event.NewPackageSkippedEvent("c", "bail"))

	counts := m.Counts()
	if counts[StatusSucceeded] != 1 || counts[StatusFailed] != 1 || counts[StatusSkipped] != 1 {
		t.Errorf("counts = %v", counts)
	}

	view := m.View()
	for _, want := range []string{"wsrun build", "batch 1/2", "exit 2", "1 succeeded, 1 failed", "1 skipped"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_QuitsWhenRunFinishes(t *testing.T) {
	m := NewModel("build")
	m, _ = send(t, m, event.NewRunStartedEvent("build", event.ModeParallel, []string{"a"}, 1))
	if m.Done() {
		t.Fatal("model should not be done before run.finished")
	}

	m, cmd := send(t, m, event.NewRunFinishedEvent("build", 1, 0, 0, 1500*time.Millisecond, nil))
	if !m.Done() {
		t.Error("model should be done after run.finished")
	}
	if cmd == nil {
		t.Fatal("run.finished should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("run.finished should quit the program")
	}
	if view := m.View(); !strings.Contains(view, "parallel") || !strings.Contains(view, "in 1.5s") {
		t.Errorf("View() = %q", view)
	}
}

func TestModel_IgnoresUnknownPackages(t *testing.T) {
	m := NewModel("build")
	m, _ = send(t, m, event.NewRunStartedEvent("build", event.ModeBatched, []string{"a"}, 1))
	m, _ = send(t, m, event.NewPackageStartedEvent("zzz", 0))

	if got := m.Counts(); got[StatusPending] != 1 || got[StatusRunning] != 0 {
		t.Errorf("counts = %v, want the unknown package ignored", got)
	}
}

func TestModel_UpdateDoesNotMutatePreviousModel(t *testing.T) {
	m := NewModel("build")
	m, _ = send(t, m, event.NewRunStartedEvent("build", event.ModeBatched, []string{"a"}, 1))
	before := m
	_, _ = send(t, m, event.NewPackageStartedEvent("a", 0))

	if got := before.Counts()[StatusPending]; got != 1 {
		t.Errorf("earlier model changed: pending = %d", got)
	}
}

func TestModel_TruncatesRowsToWidth(t *testing.T) {
	long := "@acme/" + strings.Repeat("x", 60)
	m := NewModel("build")
	m, _ = send(t, m, event.NewRunStartedEvent("build", event.ModeBatched, []string{long}, 1))

	next, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	m = next.(Model)

	for _, line := range strings.Split(m.View(), "\n") {
		if strings.Contains(line, "@acme/") {
			if !strings.HasSuffix(line, "...") {
				t.Errorf("row %q should be truncated", line)
			}
			return
		}
	}
	t.Error("package row not rendered")
}
