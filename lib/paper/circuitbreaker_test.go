package paper

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 5)

	for i := 0; i < 2; i++ {
		if !cb.Allow() {
			t.Fatalf("expected breaker to stay closed before threshold")
		}
		cb.RecordFailure()
	}
	if !cb.Allow() {
		t.Fatalf("expected breaker closed with 2 failures against threshold 3")
	}
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatalf("expected breaker to open at threshold")
	}
}

func TestCircuitBreakerClosesAfterOpenWindow(t *testing.T) {
	cb := NewCircuitBreaker(1, 5)
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatalf("expected breaker open immediately after single failure at threshold 1")
	}
	cb.openUntil = time.Now().Add(-time.Second)
	if !cb.Allow() {
		t.Fatalf("expected breaker to allow requests after the open window elapses")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, 5)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if !cb.Allow() {
		t.Fatalf("expected breaker closed: success should reset the failure count")
	}
}

func TestNewCircuitBreakerAppliesFloors(t *testing.T) {
	cb := NewCircuitBreaker(0, 0)
	if cb.threshold != 1 {
		t.Fatalf("expected threshold floor of 1, got %d", cb.threshold)
	}
	if cb.openSeconds != 5 {
		t.Fatalf("expected openSeconds floor of 5, got %d", cb.openSeconds)
	}
}
