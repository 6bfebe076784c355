package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrQuotaCounterOverflow = errors.New("quota counter overflow")
)

// QuotaNow captures an address's usage counter for the current epoch.
type QuotaNow struct {
	Count   uint32
	EpochID uint64
}

// Quota bounds how many times an address may use a rate-limited operation per
// epoch. A zero MaxPerEpoch disables the limit.
type Quota struct {
	MaxPerEpoch  uint32
	EpochSeconds uint32
}

// Enabled reports whether the quota enforces a limit.
func (q Quota) Enabled() bool {
	return q.MaxPerEpoch > 0 && q.EpochSeconds > 0
}

// Epoch returns the epoch index containing the unix timestamp now.
func (q Quota) Epoch(now int64) uint64 {
	if q.EpochSeconds == 0 || now <= 0 {
		return 0
	}
	return uint64(now) / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether add more uses fit within the quota. The returned
// QuotaNow reflects the updated counter when the quota is not exceeded; on
// denial the previous counter is returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, add uint32) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}
	if add > 0 {
		if next.Count > math.MaxUint32-add {
			return prev, ErrQuotaCounterOverflow
		}
		next.Count += add
	}
	if q.MaxPerEpoch > 0 && next.Count > q.MaxPerEpoch {
		return prev, ErrQuotaExceeded
	}
	return next, nil
}
