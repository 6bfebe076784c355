package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"escrowchain/core/types"
	"escrowchain/native/confidential"
	"escrowchain/native/fees"
)

const (
	EventTypeEscrowCreated    = "escrow.created"
	EventTypeEscrowReleased   = "escrow.released"
	EventTypeEscrowRefunded   = "escrow.refunded"
	EventTypeEscrowResolved   = "escrow.resolved"
	EventTypeDisputeCommitted = "escrow.dispute.committed"
	EventTypeEscrowDisputed   = "escrow.disputed"
	EventTypeVoteCast         = "escrow.vote"
	EventTypeFeeCollected     = "escrow.fee.collected"
	EventTypeStakeSettled     = "escrow.dispute.stake"
)

// Stake dispositions reported by NewStakeSettledEvent.
const (
	StakeReturned  = "returned"
	StakeForfeited = "forfeited"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowCreated, e)
	if e == nil {
		return evt
	}
	evt.Attributes["expiry"] = strconv.FormatInt(e.Expiry, 10)
	evt.Attributes["createdAt"] = strconv.FormatInt(e.CreatedAt, 10)
	putValue(evt, e, "amount", e.Amount, e.AmountHandle)
	putValue(evt, e, "fee", e.Fee, e.FeeHandle)
	return evt
}

// NewReleasedEvent returns the payload for a release of the principal to the
// seller. Private escrows carry the amount handle instead of the amount.
func NewReleasedEvent(e *Escrow, recipient [20]byte, amount *big.Int, handle confidential.Handle) *types.Event {
	return newPayoutEvent(EventTypeEscrowReleased, e, recipient, amount, handle)
}

// NewRefundedEvent returns the payload for a refund of the principal to the
// buyer.
func NewRefundedEvent(e *Escrow, recipient [20]byte, amount *big.Int, handle confidential.Handle) *types.Event {
	return newPayoutEvent(EventTypeEscrowRefunded, e, recipient, amount, handle)
}

// NewResolvedEvent marks the terminal transition of an escrow.
func NewResolvedEvent(e *Escrow) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowResolved, e)
	if e != nil {
		evt.Attributes["outcome"] = e.Outcome.String()
	}
	return evt
}

// NewDisputeCommittedEvent announces a commitment without revealing who it
// targets beyond the escrow itself.
func NewDisputeCommittedEvent(e *Escrow, c *DisputeCommitment) *types.Event {
	evt := newEscrowEvent(EventTypeDisputeCommitted, e)
	if c == nil {
		return evt
	}
	evt.Attributes["commitment"] = hex.EncodeToString(c.Commitment[:])
	evt.Attributes["disputer"] = hex.EncodeToString(c.Disputer[:])
	evt.Attributes["revealDeadline"] = strconv.FormatInt(c.RevealDeadline, 10)
	putValue(evt, e, "stake", c.Stake, c.StakeHandle)
	return evt
}

// NewDisputedEvent returns the payload emitted when a commitment is revealed
// and an arbitrator assigned.
func NewDisputedEvent(e *Escrow, c *DisputeCommitment) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowDisputed, e)
	if e == nil {
		return evt
	}
	evt.Attributes["arbitrator"] = hex.EncodeToString(e.Arbitrator[:])
	if c != nil {
		evt.Attributes["disputer"] = hex.EncodeToString(c.Disputer[:])
	}
	return evt
}

// NewVoteEvent records a single vote.
func NewVoteEvent(e *Escrow, voter [20]byte, forRelease bool) *types.Event {
	evt := newEscrowEvent(EventTypeVoteCast, e)
	evt.Attributes["voter"] = hex.EncodeToString(voter[:])
	choice := "refund"
	if forRelease {
		choice = "release"
	}
	evt.Attributes["choice"] = choice
	if e != nil {
		evt.Attributes["releaseVotes"] = strconv.FormatUint(uint64(e.ReleaseVotes), 10)
		evt.Attributes["refundVotes"] = strconv.FormatUint(uint64(e.RefundVotes), 10)
	}
	return evt
}

// NewFeeCollectedEvent reports the settlement fee and, for plaintext escrows,
// how it was split.
func NewFeeCollectedEvent(e *Escrow, fee *big.Int, handle confidential.Handle, payouts []fees.Payout) *types.Event {
	evt := newEscrowEvent(EventTypeFeeCollected, e)
	putValue(evt, e, "fee", fee, handle)
	if e != nil && e.PrivacyMode {
		return evt
	}
	for _, p := range payouts {
		evt.Attributes["payout."+p.Name] = hex.EncodeToString(p.Recipient[:]) + ":" + p.Amount.String()
	}
	return evt
}

// NewStakeSettledEvent reports whether a dispute stake went back to the
// disputer or was forfeited to the fee recipients.
func NewStakeSettledEvent(e *Escrow, c *DisputeCommitment, stake *big.Int, disposition string) *types.Event {
	evt := newEscrowEvent(EventTypeStakeSettled, e)
	evt.Attributes["disposition"] = disposition
	if c == nil {
		return evt
	}
	evt.Attributes["disputer"] = hex.EncodeToString(c.Disputer[:])
	putValue(evt, e, "stake", stake, c.StakeHandle)
	return evt
}

func newPayoutEvent(eventType string, e *Escrow, recipient [20]byte, amount *big.Int, handle confidential.Handle) *types.Event {
	evt := newEscrowEvent(eventType, e)
	evt.Attributes["recipient"] = hex.EncodeToString(recipient[:])
	putValue(evt, e, "amount", amount, handle)
	return evt
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(e.ID[:])
	attrs["buyer"] = hex.EncodeToString(e.Buyer[:])
	attrs["seller"] = hex.EncodeToString(e.Seller[:])
	attrs["private"] = strconv.FormatBool(e.PrivacyMode)
	return &types.Event{Type: eventType, Attributes: attrs}
}

// putValue writes a value attribute. Private escrows never expose plaintext:
// the handle is written under key+"Handle" instead.
func putValue(evt *types.Event, e *Escrow, key string, plain *big.Int, handle confidential.Handle) {
	if e != nil && e.PrivacyMode {
		if !handle.IsZero() {
			evt.Attributes[key+"Handle"] = handle.String()
		}
		return
	}
	if plain == nil {
		plain = big.NewInt(0)
	}
	evt.Attributes[key] = plain.String()
}
