package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"escrowchain/crypto"
	"escrowchain/native/confidential"
	"escrowchain/native/escrow"
)

type createEscrowRequest struct {
	Seller          string `json:"seller"`
	Amount          string `json:"amount"`
	DurationSeconds int64  `json:"durationSeconds"`
}

type createPrivateEscrowRequest struct {
	Seller          string `json:"seller"`
	AmountHandle    string `json:"amountHandle"`
	DurationSeconds int64  `json:"durationSeconds"`
}

type commitDisputeRequest struct {
	Commitment string `json:"commitment"`
	Stake      string `json:"stake"`
}

type commitPrivateDisputeRequest struct {
	Commitment  string `json:"commitment"`
	StakeHandle string `json:"stakeHandle"`
}

type revealDisputeRequest struct {
	Nonce string `json:"nonce"`
}

type voteRequest struct {
	ForRelease *bool `json:"forRelease"`
}

type confidentialCommitRequest struct {
	Value string `json:"value"`
}

type confidentialCommitResult struct {
	Handle string `json:"handle"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type escrowJSON struct {
	ID            string `json:"id"`
	Buyer         string `json:"buyer"`
	Seller        string `json:"seller"`
	Arbitrator    string `json:"arbitrator,omitempty"`
	Private       bool   `json:"private"`
	Amount        string `json:"amount,omitempty"`
	Fee           string `json:"fee,omitempty"`
	AmountHandle  string `json:"amountHandle,omitempty"`
	FeeHandle     string `json:"feeHandle,omitempty"`
	RequiredStake string `json:"requiredStake,omitempty"`
	Expiry        int64  `json:"expiry"`
	CreatedAt     int64  `json:"createdAt"`
	Status        string `json:"status"`
	Outcome       string `json:"outcome,omitempty"`
	ReleaseVotes  uint8  `json:"releaseVotes"`
	RefundVotes   uint8  `json:"refundVotes"`
}

type commitmentJSON struct {
	EscrowID       string `json:"escrowId"`
	Commitment     string `json:"commitment"`
	Disputer       string `json:"disputer"`
	CommittedAt    int64  `json:"committedAt"`
	RevealDeadline int64  `json:"revealDeadline"`
	Revealed       bool   `json:"revealed"`
	Stake          string `json:"stake,omitempty"`
	StakeHandle    string `json:"stakeHandle,omitempty"`
}

func formatEscrow(esc *escrow.Escrow, requiredStake *big.Int) escrowJSON {
	out := escrowJSON{
		ID:           encodeHash(esc.ID),
		Buyer:        crypto.Address(esc.Buyer).String(),
		Seller:       crypto.Address(esc.Seller).String(),
		Private:      esc.PrivacyMode,
		Expiry:       esc.Expiry,
		CreatedAt:    esc.CreatedAt,
		Status:       esc.Status().String(),
		ReleaseVotes: esc.ReleaseVotes,
		RefundVotes:  esc.RefundVotes,
	}
	if esc.Arbitrator != ([20]byte{}) {
		out.Arbitrator = crypto.Address(esc.Arbitrator).String()
	}
	if esc.Resolved {
		out.Outcome = esc.Outcome.String()
	}
	if esc.PrivacyMode {
		if !esc.AmountHandle.IsZero() {
			out.AmountHandle = esc.AmountHandle.String()
		}
		if !esc.FeeHandle.IsZero() {
			out.FeeHandle = esc.FeeHandle.String()
		}
		return out
	}
	if esc.Amount != nil {
		out.Amount = esc.Amount.String()
	}
	if esc.Fee != nil {
		out.Fee = esc.Fee.String()
	}
	if requiredStake != nil && !esc.Resolved {
		out.RequiredStake = requiredStake.String()
	}
	return out
}

func formatCommitment(c *escrow.DisputeCommitment, private bool) commitmentJSON {
	out := commitmentJSON{
		EscrowID:       encodeHash(c.EscrowID),
		Commitment:     encodeHash(c.Commitment),
		Disputer:       crypto.Address(c.Disputer).String(),
		CommittedAt:    c.CommittedAt,
		RevealDeadline: c.RevealDeadline,
		Revealed:       c.Revealed,
	}
	if private {
		out.StakeHandle = c.StakeHandle.String()
	} else if c.Stake != nil {
		out.Stake = c.Stake.String()
	}
	return out
}

func encodeHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

// parseHash32 decodes a 32 byte hex value with optional 0x prefix.
func parseHash32(field, raw string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	if len(trimmed) != 64 {
		return out, fmt.Errorf("%s must be 32 bytes of hex", field)
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("%s: %w", field, err)
	}
	copy(out[:], decoded)
	return out, nil
}

func parseHandle(field, raw string) (confidential.Handle, error) {
	h, err := parseHash32(field, raw)
	return confidential.Handle(h), err
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	return amount, nil
}

type healthJSON struct {
	Status string   `json:"status"`
	Paused []string `json:"paused"`
}
