package event

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var got []string
	id := bus.Subscribe(TypePackageStarted, func(e Event) {
		got = append(got, e.(PackageStartedEvent).Package)
	})
	if id == "" {
		t.Fatal("Subscribe should return a non-empty ID")
	}

	bus.Publish(NewPackageStartedEvent("pkg-a", 0))
	bus.Publish(NewPackageSkippedEvent("pkg-b", "bail"))
	bus.Publish(NewPackageStartedEvent("pkg-c", 1))

	if len(got) != 2 || got[0] != "pkg-a" || got[1] != "pkg-c" {
		t.Errorf("handler saw %v, want [pkg-a pkg-c]", got)
	}
}

func TestBus_SpecificHandlersRunBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all") })
	bus.Subscribe(TypeRunStarted, func(e Event) { order = append(order, "specific-1") })
	bus.Subscribe(TypeRunStarted, func(e Event) { order = append(order, "specific-2") })

	bus.Publish(NewRunStartedEvent("build", ModeBatched, []string{"a"}, 1))

	want := []string{"specific-1", "specific-2", "all"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("dispatch order = %v, want %v", order, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := map[string]int{}
	id1 := bus.Subscribe(TypeBatchStarted, func(e Event) { calls["one"]++ })
	bus.Subscribe(TypeBatchStarted, func(e Event) { calls["two"]++ })

	if !bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return true when subscription exists")
	}
	if bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return false the second time")
	}

	bus.Publish(NewBatchStartedEvent(0, 1, []string{"a"}))

	if calls["one"] != 0 {
		t.Error("unsubscribed handler was called")
	}
	if calls["two"] != 1 {
		t.Error("remaining handler should still be called")
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TypeRunStarted, func(e Event) {})
	bus.Subscribe(TypeRunFinished, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	if got := bus.SubscriptionCount(); got != 3 {
		t.Fatalf("SubscriptionCount() = %d, want 3", got)
	}
	bus.Clear()
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after Clear = %d, want 0", got)
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	bus := NewBus()
	var logs bytes.Buffer
	bus.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	calls := 0
	bus.Subscribe(TypeRunStarted, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeRunStarted, func(e Event) {
		calls++
	})

	bus.Publish(NewRunStartedEvent("build", ModeBatched, nil, 0))

	if calls != 2 {
		t.Errorf("expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(logs.String(), "event handler panicked") {
		t.Errorf("panic was not logged: %q", logs.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypePackageFinished, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(NewPackageFinishedEvent("pkg", 0, 0, time.Millisecond, nil, nil, nil))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe(TypeRunStarted, func(e Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d after concurrent add/remove, want 0", got)
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus()

	ids := make(map[string]bool)
	for range 100 {
		id := bus.Subscribe(TypeRunStarted, func(e Event) {})
		if ids[id] {
			t.Errorf("duplicate subscription ID: %s", id)
		}
		ids[id] = true
	}
}

func TestEvents_TypesAndSuccess(t *testing.T) {
	failure := errors.New("exit status 1")

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"run started", NewRunStartedEvent("build", ModeParallel, []string{"a"}, 1), TypeRunStarted},
		{"run finished", NewRunFinishedEvent("build", 1, 0, 0, time.Second, nil), TypeRunFinished},
		{"batch started", NewBatchStartedEvent(0, 2, []string{"a"}), TypeBatchStarted},
		{"batch finished", NewBatchFinishedEvent(0, 0, time.Second), TypeBatchFinished},
		{"package started", NewPackageStartedEvent("a", 0), TypePackageStarted},
		{"package finished", NewPackageFinishedEvent("a", 0, 1, time.Second, nil, nil, failure), TypePackageFinished},
		{"package skipped", NewPackageSkippedEvent("a", "bail"), TypePackageSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.EventType(); got != tt.want {
				t.Errorf("EventType() = %q, want %q", got, tt.want)
			}
			if tt.event.Timestamp().IsZero() {
				t.Error("Timestamp() should be set")
			}
		})
	}

	if NewPackageFinishedEvent("a", 0, 1, 0, nil, nil, failure).Success() {
		t.Error("PackageFinishedEvent with Err should not report success")
	}
	if !NewRunFinishedEvent("build", 2, 0, 0, 0, nil).Success() {
		t.Error("RunFinishedEvent without Err should report success")
	}
}
