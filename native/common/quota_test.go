package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckQuotaLimit(t *testing.T) {
	q := Quota{MaxPerEpoch: 3, EpochSeconds: 3600}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Count != 3 {
		t.Fatalf("unexpected count: %d", next.Count)
	}

	denied, err := CheckQuota(q, 1, next, 1)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.Count != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaOverflow(t *testing.T) {
	q := Quota{}
	prev := QuotaNow{EpochID: 7, Count: math.MaxUint32}
	if _, err := CheckQuota(q, 7, prev, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestQuotaEpoch(t *testing.T) {
	q := Quota{MaxPerEpoch: 1, EpochSeconds: 60}
	if !q.Enabled() {
		t.Fatalf("quota should be enabled")
	}
	if got := q.Epoch(125); got != 2 {
		t.Fatalf("unexpected epoch: %d", got)
	}
	if (Quota{}).Enabled() {
		t.Fatalf("zero quota should be disabled")
	}
	if got := (Quota{}).Epoch(125); got != 0 {
		t.Fatalf("unexpected epoch for disabled quota: %d", got)
	}
}
