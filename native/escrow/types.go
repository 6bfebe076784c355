package escrow

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"escrowchain/native/common"
	"escrowchain/native/confidential"
	"escrowchain/native/fees"
)

// ModuleName identifies the escrow module for pause checks and logging.
const ModuleName = "escrow"

// Status is the lifecycle state derived from an escrow's flags.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusDisputed
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Outcome records which party received the principal.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeReleased
	OutcomeRefunded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReleased:
		return "released"
	case OutcomeRefunded:
		return "refunded"
	default:
		return "none"
	}
}

// Escrow is the record held for one buyer/seller agreement. Exactly one of
// Amount and AmountHandle is meaningful, selected by PrivacyMode. Amount, Fee
// and their handles track value still held in custody and are zeroed when the
// escrow resolves.
type Escrow struct {
	ID           [32]byte
	Buyer        [20]byte
	Seller       [20]byte
	Arbitrator   [20]byte
	Amount       *big.Int
	Fee          *big.Int
	AmountHandle confidential.Handle
	FeeHandle    confidential.Handle
	// StakeHandle is the required dispute stake of a private escrow, committed
	// at creation so disputes never need the plaintext principal.
	StakeHandle  confidential.Handle
	Expiry       int64
	CreatedAt    int64
	ReleaseVotes uint8
	RefundVotes  uint8
	Disputed     bool
	Resolved     bool
	PrivacyMode  bool
	Outcome      Outcome
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	}
	if e.Fee != nil {
		clone.Fee = new(big.Int).Set(e.Fee)
	}
	return &clone
}

// Status derives the lifecycle state.
func (e *Escrow) Status() Status {
	switch {
	case e.Resolved:
		return StatusResolved
	case e.Disputed:
		return StatusDisputed
	default:
		return StatusActive
	}
}

// IsParty reports whether addr is the buyer or the seller.
func (e *Escrow) IsParty(addr [20]byte) bool {
	return addr == e.Buyer || addr == e.Seller
}

// CanVote reports whether addr is an eligible voter: either party, or the
// assigned arbitrator once the escrow is disputed.
func (e *Escrow) CanVote(addr [20]byte) bool {
	if e.IsParty(addr) {
		return true
	}
	return e.Disputed && e.Arbitrator != ([20]byte{}) && addr == e.Arbitrator
}

// DisputeCommitment is the outstanding commit-reveal record of an escrow.
type DisputeCommitment struct {
	EscrowID       [32]byte
	Commitment     [32]byte
	Disputer       [20]byte
	CommittedAt    int64
	RevealDeadline int64
	Revealed       bool
	Stake          *big.Int
	StakeHandle    confidential.Handle
}

// Clone returns a deep copy of the commitment.
func (c *DisputeCommitment) Clone() *DisputeCommitment {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Stake != nil {
		clone.Stake = new(big.Int).Set(c.Stake)
	}
	return &clone
}

// Expired reports whether the reveal window has closed at now. A reveal must
// land strictly before the deadline.
func (c *DisputeCommitment) Expired(now int64) bool {
	return now >= c.RevealDeadline
}

// Params are the runtime knobs of the escrow engine.
type Params struct {
	MinDuration     time.Duration
	MaxDuration     time.Duration
	ArbitratorDelay time.Duration
	RevealWindow    time.Duration
	DisputeStakeBps uint32
	FeeBps          uint32
	DisputeQuota    common.Quota
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MinDuration:     time.Hour,
		MaxDuration:     90 * 24 * time.Hour,
		ArbitratorDelay: time.Hour,
		RevealWindow:    time.Hour,
		DisputeStakeBps: 100,
		FeeBps:          50,
		DisputeQuota:    common.Quota{MaxPerEpoch: 5, EpochSeconds: 86_400},
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.MinDuration <= 0 {
		return fmt.Errorf("escrow: min duration must be positive")
	}
	if p.MaxDuration < p.MinDuration {
		return fmt.Errorf("escrow: max duration %s below min duration %s", p.MaxDuration, p.MinDuration)
	}
	if p.ArbitratorDelay < 0 {
		return fmt.Errorf("escrow: arbitrator delay must not be negative")
	}
	if p.RevealWindow <= 0 {
		return fmt.Errorf("escrow: reveal window must be positive")
	}
	if p.DisputeStakeBps > fees.BasisPoints {
		return fmt.Errorf("escrow: dispute stake bps out of range: %d", p.DisputeStakeBps)
	}
	if p.FeeBps > fees.BasisPoints {
		return fmt.Errorf("escrow: fee bps out of range: %d", p.FeeBps)
	}
	return nil
}

// DeriveID returns the identifier of the escrow created by buyer for seller
// as the seq-th escrow overall.
func DeriveID(buyer, seller [20]byte, seq uint64) [32]byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], seq)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte("escrow/id"), buyer[:], seller[:], n[:]))
	return id
}

// ComputeCommitment returns the dispute commitment binding the escrow, the
// disputer's secret nonce and the disputer's identity.
func ComputeCommitment(id [32]byte, nonce [32]byte, disputer [20]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(id[:], nonce[:], disputer[:]))
	return out
}
