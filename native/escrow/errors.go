package escrow

import (
	"errors"

	"escrowchain/native/common"
	"escrowchain/native/confidential"
)

// Every error returned by the engine wraps one of these kinds. They are
// terminal for the call: the operation is aborted and nothing is retried.
var (
	ErrInvalidParty         = errors.New("escrow: invalid party")
	ErrInvalidAmount        = errors.New("escrow: invalid amount")
	ErrInvalidDuration      = errors.New("escrow: invalid duration")
	ErrNotFound             = errors.New("escrow: not found")
	ErrAlreadyResolved      = errors.New("escrow: already resolved")
	ErrAlreadyDisputed      = errors.New("escrow: already disputed")
	ErrNotParticipant       = errors.New("escrow: caller is not a participant")
	ErrTooEarlyForDispute   = errors.New("escrow: too early for dispute")
	ErrInvalidCommitment    = errors.New("escrow: invalid commitment")
	ErrRevealWindowExpired  = errors.New("escrow: reveal window expired")
	ErrAlreadyVoted         = errors.New("escrow: already voted")
	ErrInsufficientStake    = errors.New("escrow: insufficient dispute stake")
	ErrPrivacyUnavailable   = errors.New("escrow: privacy mode unavailable")
	ErrModeMismatch         = errors.New("escrow: privacy mode mismatch")
	ErrRefundLocked         = errors.New("escrow: refund not yet permitted")
	ErrCommitmentPending    = errors.New("escrow: dispute commitment pending")
	ErrNoCommitment         = errors.New("escrow: no dispute commitment")
	ErrCommitmentNotExpired = errors.New("escrow: dispute commitment not expired")
	ErrNoEligibleArbitrator = errors.New("escrow: no eligible arbitrator")
	ErrDisputeQuota         = errors.New("escrow: dispute quota exceeded")

	// ErrReentrantCall aliases the shared guard error so callers can match it
	// from this package.
	ErrReentrantCall = common.ErrReentrantCall
)

var kindNames = map[error]string{
	ErrInvalidParty:         "InvalidParty",
	ErrInvalidAmount:        "InvalidAmount",
	ErrInvalidDuration:      "InvalidDuration",
	ErrNotFound:             "NotFound",
	ErrAlreadyResolved:      "AlreadyResolved",
	ErrAlreadyDisputed:      "AlreadyDisputed",
	ErrNotParticipant:       "NotParticipant",
	ErrTooEarlyForDispute:   "TooEarlyForDispute",
	ErrInvalidCommitment:    "InvalidCommitment",
	ErrRevealWindowExpired:  "RevealWindowExpired",
	ErrAlreadyVoted:         "AlreadyVoted",
	ErrInsufficientStake:    "InsufficientStake",
	ErrPrivacyUnavailable:   "PrivacyUnavailable",
	ErrModeMismatch:         "ModeMismatch",
	ErrRefundLocked:         "RefundLocked",
	ErrCommitmentPending:    "CommitmentPending",
	ErrNoCommitment:         "NoCommitment",
	ErrCommitmentNotExpired: "CommitmentNotExpired",
	ErrNoEligibleArbitrator: "NoEligibleArbitrator",
	ErrDisputeQuota:         "DisputeQuotaExceeded",
	ErrReentrantCall:        "ReentrantCall",
	common.ErrModulePaused:  "ModulePaused",
}

// Kind returns the stable name of the error kind wrapped by err, or the empty
// string when err is not an engine error.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, confidential.ErrUnknownHandle) {
		return "UnknownHandle"
	}
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return ""
}
