package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"mixtape/internal/logging"
)

func TestDebounceLoopCoalescesChanges(t *testing.T) {
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	var rebuilds atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- debounceLoop(ctx, events, errs, 20*time.Millisecond, logging.NewNop(), func(context.Context) {
			rebuilds.Add(1)
		})
	}()

	events <- fsnotify.Event{Name: "/music/notes.txt", Op: fsnotify.Write}
	for _, name := range []string{"/music/a.mp3", "/music/b.flac", "/music/a.mp3"} {
		events <- fsnotify.Event{Name: name, Op: fsnotify.Create}
	}
	errs <- errors.New("overflow")

	deadline := time.After(2 * time.Second)
	for rebuilds.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("rebuild never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(60 * time.Millisecond)
	if got := rebuilds.Load(); got != 1 {
		t.Fatalf("rebuilds = %d, want 1", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("loop returned %v", err)
	}
}

func TestDebounceLoopIgnoresNonAudio(t *testing.T) {
	events := make(chan fsnotify.Event, 2)
	events <- fsnotify.Event{Name: "/music/cover.jpg", Op: fsnotify.Create}
	events <- fsnotify.Event{Name: "/music/a.mp3", Op: fsnotify.Chmod}
	close(events)

	called := false
	err := debounceLoop(context.Background(), events, make(chan error), time.Millisecond, logging.NewNop(), func(context.Context) {
		called = true
	})
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if called {
		t.Fatal("irrelevant changes must not trigger a rebuild")
	}
}
