package state

import (
	"math/big"
	"testing"

	"escrowchain/native/common"
	"escrowchain/native/confidential"
	"escrowchain/native/escrow"
	"escrowchain/storage"
)

func TestEscrowRecordRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	seq, err := mgr.EscrowNextSequence()
	if err != nil || seq != 1 {
		t.Fatalf("first sequence: %d %v", seq, err)
	}
	if seq, _ = mgr.EscrowNextSequence(); seq != 2 {
		t.Fatalf("expected sequence 2, got %d", seq)
	}

	original := &escrow.Escrow{
		ID:           [32]byte{0x01},
		Buyer:        [20]byte{0x02},
		Seller:       [20]byte{0x03},
		Arbitrator:   [20]byte{0x04},
		Amount:       big.NewInt(1000),
		Fee:          big.NewInt(5),
		StakeHandle:  confidential.Handle{0x09},
		Expiry:       1_700_086_400,
		CreatedAt:    1_700_000_000,
		ReleaseVotes: 1,
		Disputed:     true,
		Outcome:      escrow.OutcomeNone,
	}
	if err := mgr.EscrowPut(original); err != nil {
		t.Fatalf("put escrow: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	loaded, ok, err := NewManager(db).EscrowGet(original.ID)
	if err != nil || !ok {
		t.Fatalf("get escrow: %v %v", ok, err)
	}
	if loaded.Amount.Cmp(original.Amount) != 0 || loaded.Expiry != original.Expiry ||
		loaded.Arbitrator != original.Arbitrator || !loaded.Disputed || loaded.ReleaseVotes != 1 ||
		loaded.StakeHandle != original.StakeHandle {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	if _, ok, _ := mgr.EscrowGet([32]byte{0xFF}); ok {
		t.Fatalf("unexpected record for unknown id")
	}
	bad := original.Clone()
	bad.Expiry = -1
	if err := mgr.EscrowPut(bad); err == nil {
		t.Fatalf("expected negative timestamp rejection")
	}
}

func TestCommitmentVotesAndQuota(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	id := [32]byte{0x01}
	voter := [20]byte{0x02}

	c := &escrow.DisputeCommitment{EscrowID: id, Commitment: [32]byte{0xAA}, Disputer: voter, CommittedAt: 10, RevealDeadline: 20, Stake: big.NewInt(3)}
	if err := mgr.DisputeCommitmentPut(c); err != nil {
		t.Fatalf("put commitment: %v", err)
	}
	got, ok, err := mgr.DisputeCommitmentGet(id)
	if err != nil || !ok || got.Commitment != c.Commitment || got.Stake.Int64() != 3 || got.RevealDeadline != 20 {
		t.Fatalf("commitment round trip: %+v %v %v", got, ok, err)
	}
	if err := mgr.DisputeCommitmentDelete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := mgr.DisputeCommitmentGet(id); ok {
		t.Fatalf("commitment not deleted")
	}

	if voted, _ := mgr.EscrowHasVoted(id, voter); voted {
		t.Fatalf("unexpected vote")
	}
	if err := mgr.EscrowVotePut(id, voter); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if voted, _ := mgr.EscrowHasVoted(id, voter); !voted {
		t.Fatalf("vote not recorded")
	}

	if err := mgr.DisputeQuotaPut(voter, common.QuotaNow{Count: 2, EpochID: 7}); err != nil {
		t.Fatalf("quota put: %v", err)
	}
	q, err := mgr.DisputeQuotaGet(voter)
	if err != nil || q.Count != 2 || q.EpochID != 7 {
		t.Fatalf("quota round trip: %+v %v", q, err)
	}
}
