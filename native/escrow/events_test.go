package escrow

import (
	"encoding/hex"
	"math/big"
	"testing"

	"escrowchain/native/confidential"
	"escrowchain/native/fees"
)

func TestEventPayloads(t *testing.T) {
	esc := &Escrow{
		ID:     [32]byte{0x01},
		Buyer:  newTestAddress(0x10),
		Seller: newTestAddress(0x20),
		Amount: big.NewInt(500),
		Fee:    big.NewInt(2),
		Expiry: 1_700_000_500,
	}
	evt := NewCreatedEvent(esc)
	if evt.Type != EventTypeEscrowCreated {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["id"] != hex.EncodeToString(esc.ID[:]) {
		t.Fatalf("id mismatch")
	}
	if evt.Attributes["amount"] != "500" || evt.Attributes["fee"] != "2" {
		t.Fatalf("unexpected amounts: %+v", evt.Attributes)
	}
	if evt.Attributes["private"] != "false" {
		t.Fatalf("expected plaintext marker")
	}

	payouts := []fees.Payout{{Name: "treasury", Recipient: newTestAddress(0x30), Amount: big.NewInt(2)}}
	collected := NewFeeCollectedEvent(esc, big.NewInt(2), confidential.Handle{}, payouts)
	if collected.Attributes["payout.treasury"] != hex.EncodeToString(payouts[0].Recipient[:])+":2" {
		t.Fatalf("unexpected payout attribute: %+v", collected.Attributes)
	}

	vote := NewVoteEvent(esc, esc.Buyer, false)
	if vote.Attributes["choice"] != "refund" {
		t.Fatalf("unexpected choice %q", vote.Attributes["choice"])
	}
}

func TestPrivateEventsCarryHandles(t *testing.T) {
	handle := confidential.Handle{0xAB}
	esc := &Escrow{ID: [32]byte{0x02}, PrivacyMode: true, AmountHandle: handle, Amount: big.NewInt(0)}
	evt := NewReleasedEvent(esc, esc.Seller, big.NewInt(900), handle)
	if _, ok := evt.Attributes["amount"]; ok {
		t.Fatalf("private release must not expose the amount")
	}
	if evt.Attributes["amountHandle"] != handle.String() {
		t.Fatalf("expected amount handle, got %+v", evt.Attributes)
	}
	if NewResolvedEvent(nil).Type != EventTypeEscrowResolved {
		t.Fatalf("nil escrow must still produce a typed event")
	}
}
