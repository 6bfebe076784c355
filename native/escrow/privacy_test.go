package escrow

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"escrowchain/native/confidential"
)

func (h *harness) handle(t *testing.T, value int64) confidential.Handle {
	t.Helper()
	handle, err := h.private.Commit(big.NewInt(value))
	if err != nil {
		t.Fatalf("commit value: %v", err)
	}
	return handle
}

func TestPrivateEscrowLifecycle(t *testing.T) {
	h := newHarness(t)
	amount := h.handle(t, 1000)

	esc, err := h.engine.CreatePrivateEscrow(buyer, seller, amount, 24*time.Hour)
	if err != nil {
		t.Fatalf("create private: %v", err)
	}
	if !esc.PrivacyMode || esc.AmountHandle != amount || esc.Amount.Sign() != 0 {
		t.Fatalf("unexpected private escrow: %+v", esc)
	}
	expectBalance(t, h.ledger, buyer, 10_000-1005)

	got, err := h.engine.AmountHandle(esc.ID)
	if err != nil || got != amount {
		t.Fatalf("amount handle: %v %v", got, err)
	}
	_, err = h.engine.Amount(esc.ID)
	expectErr(t, err, ErrModeMismatch)

	if err := h.engine.ReleaseFunds(esc.ID, buyer); err != nil {
		t.Fatalf("release: %v", err)
	}
	expectBalance(t, h.ledger, seller, 11_000)
	expectBalance(t, h.ledger, treasury, 3)
	if h.ledger.custody.Sign() != 0 {
		t.Fatalf("custody not drained: %s", h.ledger.custody)
	}

	for _, evt := range h.emitter.typesEvents() {
		for key, value := range evt.Attributes {
			if key == "amount" || key == "fee" || key == "stake" || strings.HasPrefix(key, "payout.") {
				t.Fatalf("%s leaks plaintext %s=%s", evt.Type, key, value)
			}
		}
	}
	released := h.emitter.ofType(EventTypeEscrowReleased)
	if len(released) != 1 || released[0].Attributes["amountHandle"] != amount.String() {
		t.Fatalf("released event must carry the handle: %+v", released)
	}
}

func TestPrivateDispute(t *testing.T) {
	h := newHarness(t)
	esc, err := h.engine.CreatePrivateEscrow(buyer, seller, h.handle(t, 1000), 24*time.Hour)
	if err != nil {
		t.Fatalf("create private: %v", err)
	}
	nonce := [32]byte{0x33}
	commitment := ComputeCommitment(esc.ID, nonce, buyer)
	h.advance(time.Hour)

	_, err = h.engine.CommitDispute(esc.ID, buyer, commitment, big.NewInt(10))
	expectErr(t, err, ErrModeMismatch)
	_, err = h.engine.CommitPrivateDispute(esc.ID, buyer, commitment, h.handle(t, 9))
	expectErr(t, err, ErrInsufficientStake)
	_, err = h.engine.CommitPrivateDispute(esc.ID, buyer, commitment, confidential.Handle{})
	expectErr(t, err, ErrInsufficientStake)

	if _, err := h.engine.CommitPrivateDispute(esc.ID, buyer, commitment, h.handle(t, 10)); err != nil {
		t.Fatalf("commit private dispute: %v", err)
	}
	expectBalance(t, h.ledger, buyer, 10_000-1005-10)
	if _, err := h.engine.RevealDispute(esc.ID, buyer, nonce); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if err := h.engine.Vote(esc.ID, arbitrator, false); err != nil {
		t.Fatalf("arbitrator vote: %v", err)
	}
	if err := h.engine.Vote(esc.ID, buyer, false); err != nil {
		t.Fatalf("buyer vote: %v", err)
	}
	expectBalance(t, h.ledger, buyer, 10_000-5)
}

func TestPrivateEscrowValidations(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.CreatePrivateEscrow(buyer, seller, confidential.Handle{}, 24*time.Hour)
	expectErr(t, err, ErrInvalidAmount)
	_, err = h.engine.CreatePrivateEscrow(buyer, seller, confidential.Handle{0x01}, 24*time.Hour)
	expectErr(t, err, ErrInvalidAmount)
	_, err = h.engine.CreatePrivateEscrow(buyer, seller, h.handle(t, 0), 24*time.Hour)
	expectErr(t, err, ErrInvalidAmount)
	_, err = h.engine.CreatePrivateEscrow(buyer, buyer, h.handle(t, 10), 24*time.Hour)
	expectErr(t, err, ErrInvalidParty)

	plain := h.create(t, 100, 24*time.Hour)
	_, err = h.engine.AmountHandle(plain.ID)
	expectErr(t, err, ErrModeMismatch)
}

func TestPrivacyUnavailable(t *testing.T) {
	h := newHarness(t)
	amount := h.handle(t, 1000)
	h.engine.SetConfidential(nil)
	_, err := h.engine.CreatePrivateEscrow(buyer, seller, amount, 24*time.Hour)
	expectErr(t, err, ErrPrivacyUnavailable)
	if Kind(err) != "PrivacyUnavailable" {
		t.Fatalf("unexpected kind %q", Kind(err))
	}
}
