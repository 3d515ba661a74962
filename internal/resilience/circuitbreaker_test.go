package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errBoom })
		if !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected errBoom, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after %d consecutive failures, got %s", 3, cb.State())
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while circuit is open, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenTrialRecloses(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	if err := cb.Execute(func() error { return errBoom }); err == nil {
		t.Fatal("expected failure")
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open trial call should have been allowed, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after a successful half-open trial, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.Execute(func() error { return errBoom })
	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected the trial call itself to run and fail, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected re-opened after a failed half-open trial, got %s", cb.State())
	}
}

func TestCircuitBreaker_OnStateChangeFires(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(1, time.Minute)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	cb.Execute(func() error { return errBoom })
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("expected one closed->open transition, got %v", transitions)
	}
}
