package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

func TestAwait_SpacesSameProvider(t *testing.T) {
	const interval = 50 * time.Millisecond
	l := New(map[models.ProviderID]time.Duration{"a": interval})
	ctx := context.Background()

	var mu sync.Mutex
	var starts []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Await(ctx, "a"); err != nil {
				t.Errorf("Await: %v", err)
				return
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(starts) != 4 {
		t.Fatalf("starts = %d", len(starts))
	}
	first, last := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	// Four dispatches need at least three full intervals between first and last.
	if span := last.Sub(first); span < 3*interval-5*time.Millisecond {
		t.Errorf("span = %v, want >= %v", span, 3*interval)
	}
}

func TestAwait_ProvidersIndependent(t *testing.T) {
	l := New(map[models.ProviderID]time.Duration{"slow": time.Hour, "fast": time.Hour})
	ctx := context.Background()

	// Consume the burst token of "slow" so the next call would wait an hour.
	if err := l.Await(ctx, "slow"); err != nil {
		t.Fatalf("Await: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Await(ctx, "fast") }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Await(fast): %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("fast provider blocked by slow provider")
	}
}

func TestAwait_CancellationReturnsPromptly(t *testing.T) {
	l := New(map[models.ProviderID]time.Duration{"a": time.Hour})
	if err := l.Await(context.Background(), "a"); err != nil {
		t.Fatalf("Await: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Await(ctx, "a") }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after cancellation")
	}
}

func TestAwait_UnlimitedProvider(t *testing.T) {
	l := New(map[models.ProviderID]time.Duration{"zero": 0})
	for i := 0; i < 100; i++ {
		if err := l.Await(context.Background(), "zero"); err != nil {
			t.Fatalf("Await: %v", err)
		}
	}
	if err := l.Await(context.Background(), "unknown"); err != nil {
		t.Errorf("unknown provider: %v", err)
	}
}

func TestFromCatalog(t *testing.T) {
	l := FromCatalog(catalog.Default())
	if got := l.Interval(models.ProviderMeteostat); got != 100*time.Millisecond {
		t.Errorf("Interval = %v, want 100ms", got)
	}
}
