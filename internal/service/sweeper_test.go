package service

import (
	"context"
	"testing"
	"time"

	"github.com/innohealth/notify-engine/internal/repository"
)

func TestSweeperDispatchesAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryNotificationStore()
	dispatcher := &fakeDispatcher{}
	o := newTestOrchestrator(t, store, dispatcher)

	// Seed a due row without triggering create-time delivery.
	past := time.Now().UTC().Add(-2 * time.Hour)
	o.now = func() time.Time { return past }
	future := past.Add(time.Minute)
	input := validInput()
	input.ScheduledFor = &future
	if _, err := o.Create(context.Background(), input); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	o.now = func() time.Time { return time.Now().UTC() }

	sweeper, err := NewSweeper(o, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Start(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if dispatcher.requestCount() > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never dispatched the due notification")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, repository.NewMemoryNotificationStore(), &fakeDispatcher{})

	sweeper, err := NewSweeper(o, 0, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	if sweeper.interval != defaultSweepInterval {
		t.Fatalf("interval = %v, want %v", sweeper.interval, defaultSweepInterval)
	}
}
