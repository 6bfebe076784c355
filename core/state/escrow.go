package state

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"escrowchain/native/common"
	"escrowchain/native/confidential"
	"escrowchain/native/escrow"
)

var escrowSeqKey = []byte("escrow/seq")

func escrowRecordKey(id [32]byte) []byte {
	return []byte("escrow/record/" + hex.EncodeToString(id[:]))
}

func disputeCommitmentKey(id [32]byte) []byte {
	return []byte("escrow/commitment/" + hex.EncodeToString(id[:]))
}

func escrowVoteKey(id [32]byte, voter [20]byte) []byte {
	return []byte("escrow/vote/" + hex.EncodeToString(id[:]) + "/" + hex.EncodeToString(voter[:]))
}

func disputeQuotaKey(addr [20]byte) []byte {
	return []byte("escrow/quota/" + hex.EncodeToString(addr[:]))
}

// storedEscrow is the RLP layout of escrow.Escrow. RLP has no signed
// integers, so timestamps are stored unsigned.
type storedEscrow struct {
	ID           [32]byte
	Buyer        [20]byte
	Seller       [20]byte
	Arbitrator   [20]byte
	Amount       *big.Int
	Fee          *big.Int
	AmountHandle [32]byte
	FeeHandle    [32]byte
	StakeHandle  [32]byte
	Expiry       uint64
	CreatedAt    uint64
	ReleaseVotes uint8
	RefundVotes  uint8
	Disputed     bool
	Resolved     bool
	PrivacyMode  bool
	Outcome      uint8
}

type storedCommitment struct {
	EscrowID       [32]byte
	Commitment     [32]byte
	Disputer       [20]byte
	CommittedAt    uint64
	RevealDeadline uint64
	Revealed       bool
	Stake          *big.Int
	StakeHandle    [32]byte
}

type storedQuota struct {
	Count   uint32
	EpochID uint64
}

func toUnsigned(field string, v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("state: negative %s %d", field, v)
	}
	return uint64(v), nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// EscrowNextSequence increments and returns the escrow sequence counter.
func (m *Manager) EscrowNextSequence() (uint64, error) {
	var seq uint64
	if _, err := m.KVGet(escrowSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := m.KVPut(escrowSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// EscrowPut stores the escrow record.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	if e == nil {
		return fmt.Errorf("state: nil escrow")
	}
	expiry, err := toUnsigned("expiry", e.Expiry)
	if err != nil {
		return err
	}
	created, err := toUnsigned("createdAt", e.CreatedAt)
	if err != nil {
		return err
	}
	record := &storedEscrow{
		ID:           e.ID,
		Buyer:        e.Buyer,
		Seller:       e.Seller,
		Arbitrator:   e.Arbitrator,
		Amount:       nonNil(e.Amount),
		Fee:          nonNil(e.Fee),
		AmountHandle: e.AmountHandle,
		FeeHandle:    e.FeeHandle,
		StakeHandle:  e.StakeHandle,
		Expiry:       expiry,
		CreatedAt:    created,
		ReleaseVotes: e.ReleaseVotes,
		RefundVotes:  e.RefundVotes,
		Disputed:     e.Disputed,
		Resolved:     e.Resolved,
		PrivacyMode:  e.PrivacyMode,
		Outcome:      uint8(e.Outcome),
	}
	return m.KVPut(escrowRecordKey(e.ID), record)
}

// EscrowGet loads the escrow record for id.
func (m *Manager) EscrowGet(id [32]byte) (*escrow.Escrow, bool, error) {
	var record storedEscrow
	ok, err := m.KVGet(escrowRecordKey(id), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &escrow.Escrow{
		ID:           record.ID,
		Buyer:        record.Buyer,
		Seller:       record.Seller,
		Arbitrator:   record.Arbitrator,
		Amount:       nonNil(record.Amount),
		Fee:          nonNil(record.Fee),
		AmountHandle: confidential.Handle(record.AmountHandle),
		FeeHandle:    confidential.Handle(record.FeeHandle),
		StakeHandle:  confidential.Handle(record.StakeHandle),
		Expiry:       int64(record.Expiry),
		CreatedAt:    int64(record.CreatedAt),
		ReleaseVotes: record.ReleaseVotes,
		RefundVotes:  record.RefundVotes,
		Disputed:     record.Disputed,
		Resolved:     record.Resolved,
		PrivacyMode:  record.PrivacyMode,
		Outcome:      escrow.Outcome(record.Outcome),
	}, true, nil
}

// DisputeCommitmentPut stores the outstanding commitment of an escrow.
func (m *Manager) DisputeCommitmentPut(c *escrow.DisputeCommitment) error {
	if c == nil {
		return fmt.Errorf("state: nil commitment")
	}
	committed, err := toUnsigned("committedAt", c.CommittedAt)
	if err != nil {
		return err
	}
	deadline, err := toUnsigned("revealDeadline", c.RevealDeadline)
	if err != nil {
		return err
	}
	return m.KVPut(disputeCommitmentKey(c.EscrowID), &storedCommitment{
		EscrowID:       c.EscrowID,
		Commitment:     c.Commitment,
		Disputer:       c.Disputer,
		CommittedAt:    committed,
		RevealDeadline: deadline,
		Revealed:       c.Revealed,
		Stake:          nonNil(c.Stake),
		StakeHandle:    c.StakeHandle,
	})
}

// DisputeCommitmentGet loads the commitment of an escrow.
func (m *Manager) DisputeCommitmentGet(id [32]byte) (*escrow.DisputeCommitment, bool, error) {
	var record storedCommitment
	ok, err := m.KVGet(disputeCommitmentKey(id), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &escrow.DisputeCommitment{
		EscrowID:       record.EscrowID,
		Commitment:     record.Commitment,
		Disputer:       record.Disputer,
		CommittedAt:    int64(record.CommittedAt),
		RevealDeadline: int64(record.RevealDeadline),
		Revealed:       record.Revealed,
		Stake:          nonNil(record.Stake),
		StakeHandle:    confidential.Handle(record.StakeHandle),
	}, true, nil
}

// DisputeCommitmentDelete removes the commitment of an escrow.
func (m *Manager) DisputeCommitmentDelete(id [32]byte) error {
	return m.KVDelete(disputeCommitmentKey(id))
}

// EscrowVotePut marks voter as having voted on id.
func (m *Manager) EscrowVotePut(id [32]byte, voter [20]byte) error {
	return m.KVPut(escrowVoteKey(id, voter), true)
}

// EscrowHasVoted reports whether voter already voted on id.
func (m *Manager) EscrowHasVoted(id [32]byte, voter [20]byte) (bool, error) {
	var voted bool
	ok, err := m.KVGet(escrowVoteKey(id, voter), &voted)
	if err != nil {
		return false, err
	}
	return ok && voted, nil
}

// DisputeQuotaGet returns the dispute counter of addr.
func (m *Manager) DisputeQuotaGet(addr [20]byte) (common.QuotaNow, error) {
	var record storedQuota
	if _, err := m.KVGet(disputeQuotaKey(addr), &record); err != nil {
		return common.QuotaNow{}, err
	}
	return common.QuotaNow{Count: record.Count, EpochID: record.EpochID}, nil
}

// DisputeQuotaPut stores the dispute counter of addr.
func (m *Manager) DisputeQuotaPut(addr [20]byte, q common.QuotaNow) error {
	return m.KVPut(disputeQuotaKey(addr), &storedQuota{Count: q.Count, EpochID: q.EpochID})
}
