package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Pause: time.Millisecond, Multiplier: 1}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(3), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls, retries int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error) { retries = attempt }

	err := Do(context.Background(), p, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("overpass: connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("expected OnRetry for attempt 2 last, got %d", retries)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(3), func(_ context.Context) error {
		calls++
		return &StatusError{Service: "nominatim", StatusCode: 503}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorStops(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(3), func(_ context.Context) error {
		calls++
		return Permanent(errors.New("decode response"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ClientStatusStops(t *testing.T) {
	var calls int
	_ = Do(context.Background(), fastPolicy(3), func(_ context.Context) error {
		calls++
		return &StatusError{Service: "nominatim", StatusCode: 400}
	})
	if calls != 1 {
		t.Errorf("expected 1 call for a 400, got %d", calls)
	}
}

func TestDo_ContextCanceledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, Pause: time.Hour}

	var calls int
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, func(_ context.Context) error {
			calls++
			return errors.New("flaky")
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastPolicy(3), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("timeout")
		}
		return "Baguio", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "Baguio" {
		t.Errorf("expected Baguio, got %q", v)
	}
}

func TestDoVal_ZeroValueOnFailure(t *testing.T) {
	v, err := DoVal(context.Background(), fastPolicy(2), func(_ context.Context) (int, error) {
		return 7, errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if v != 0 {
		t.Errorf("expected zero value, got %d", v)
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Pause: 100 * time.Millisecond, MaxPause: 250 * time.Millisecond, Multiplier: 2}.withDefaults()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}

	fixed := DefaultPolicy().withDefaults()
	if fixed.delay(1) != time.Second || fixed.delay(2) != time.Second {
		t.Errorf("default policy should pause a fixed second")
	}
}

func TestPolicy_JitterBounds(t *testing.T) {
	p := Policy{Pause: 100 * time.Millisecond, Jitter: 0.5}.withDefaults()
	for i := 0; i < 100; i++ {
		d := p.delay(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", d)
		}
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(5, 250)
	if p.Attempts != 5 || p.Pause != 250*time.Millisecond {
		t.Errorf("unexpected policy %+v", p)
	}
	d := FromConfig(0, -1)
	if d.Attempts != 3 || d.Pause != time.Second {
		t.Errorf("expected defaults, got %+v", d)
	}
}
