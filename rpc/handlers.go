package rpc

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"escrowchain/crypto"
	"escrowchain/native/escrow"
)

const maxBodyBytes = 1 << 16

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func mustCaller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized", "caller unknown")
		return [20]byte{}, false
	}
	return caller, true
}

func escrowIDParam(w http.ResponseWriter, r *http.Request) ([32]byte, bool) {
	id, err := parseHash32("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return id, false
	}
	return id, true
}

func addressParam(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return addr, false
	}
	return addr, true
}

func durationOf(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// respondEscrow writes the current view of id.
func (s *Server) respondEscrow(w http.ResponseWriter, r *http.Request, status int, id [32]byte) {
	var view escrowJSON
	err := s.host.Query(func(e *escrow.Engine) error {
		esc, err := e.Escrow(id)
		if err != nil {
			return err
		}
		var stake *big.Int
		if !esc.PrivacyMode && esc.Amount != nil {
			stake = e.RequiredStake(esc.Amount)
		}
		view = formatEscrow(esc, stake)
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, status, view)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req createEscrowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seller, err := crypto.ParseAddress(req.Seller)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	var id [32]byte
	err = s.host.Execute(r.Context(), "create", func(e *escrow.Engine) error {
		esc, err := e.CreateEscrow(caller, seller, amount, durationOf(req.DurationSeconds))
		if err != nil {
			return err
		}
		id = esc.ID
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.respondEscrow(w, r, http.StatusCreated, id)
}

func (s *Server) handleCreatePrivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	var req createPrivateEscrowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seller, err := crypto.ParseAddress(req.Seller)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	handle, err := parseHandle("amountHandle", req.AmountHandle)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	var id [32]byte
	err = s.host.Execute(r.Context(), "create_private", func(e *escrow.Engine) error {
		esc, err := e.CreatePrivateEscrow(caller, seller, handle, durationOf(req.DurationSeconds))
		if err != nil {
			return err
		}
		id = esc.ID
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.respondEscrow(w, r, http.StatusCreated, id)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := escrowIDParam(w, r)
	if !ok {
		return
	}
	s.respondEscrow(w, r, http.StatusOK, id)
}

// handleAction runs a caller-scoped engine call and answers with the
// updated escrow.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, operation string, fn func(e *escrow.Engine, id [32]byte, caller [20]byte) error) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	id, ok := escrowIDParam(w, r)
	if !ok {
		return
	}
	err := s.host.Execute(r.Context(), operation, func(e *escrow.Engine) error {
		return fn(e, id, caller)
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.respondEscrow(w, r, http.StatusOK, id)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, "release", func(e *escrow.Engine, id [32]byte, caller [20]byte) error {
		return e.ReleaseFunds(id, caller)
	})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, "refund", func(e *escrow.Engine, id [32]byte, caller [20]byte) error {
		return e.RefundBuyer(id, caller)
	})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ForRelease == nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "forRelease required")
		return
	}
	s.handleAction(w, r, "vote", func(e *escrow.Engine, id [32]byte, caller [20]byte) error {
		return e.Vote(id, caller, *req.ForRelease)
	})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req revealDisputeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	nonce, err := parseHash32("nonce", req.Nonce)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	s.handleAction(w, r, "reveal", func(e *escrow.Engine, id [32]byte, caller [20]byte) error {
		_, err := e.RevealDispute(id, caller, nonce)
		return err
	})
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, "expire_commitment", func(e *escrow.Engine, id [32]byte, _ [20]byte) error {
		return e.ExpireCommitment(id)
	})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitDisputeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	commitment, err := parseHash32("commitment", req.Commitment)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	stake, err := parseAmount("stake", req.Stake)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	s.respondCommitment(w, r, "commit", func(e *escrow.Engine, id [32]byte, caller [20]byte) error {
		_, err := e.CommitDispute(id, caller, commitment, stake)
		return err
	})
}

func (s *Server) handleCommitPrivate(w http.ResponseWriter, r *http.Request) {
	var req commitPrivateDisputeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	commitment, err := parseHash32("commitment", req.Commitment)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	stake, err := parseHandle("stakeHandle", req.StakeHandle)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	s.respondCommitment(w, r, "commit_private", func(e *escrow.Engine, id [32]byte, caller [20]byte) error {
		_, err := e.CommitPrivateDispute(id, caller, commitment, stake)
		return err
	})
}

// respondCommitment runs a commit call and answers with the stored record.
func (s *Server) respondCommitment(w http.ResponseWriter, r *http.Request, operation string, fn func(e *escrow.Engine, id [32]byte, caller [20]byte) error) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	id, ok := escrowIDParam(w, r)
	if !ok {
		return
	}
	if err := s.host.Execute(r.Context(), operation, func(e *escrow.Engine) error {
		return fn(e, id, caller)
	}); err != nil {
		writeFailure(w, r, err)
		return
	}
	s.writeCommitment(w, r, http.StatusCreated, id)
}

func (s *Server) handleGetCommitment(w http.ResponseWriter, r *http.Request) {
	id, ok := escrowIDParam(w, r)
	if !ok {
		return
	}
	s.writeCommitment(w, r, http.StatusOK, id)
}

func (s *Server) writeCommitment(w http.ResponseWriter, r *http.Request, status int, id [32]byte) {
	var view commitmentJSON
	err := s.host.Query(func(e *escrow.Engine) error {
		esc, err := e.Escrow(id)
		if err != nil {
			return err
		}
		c, ok, err := e.Commitment(id)
		if err != nil {
			return err
		}
		if !ok {
			return escrow.ErrNoCommitment
		}
		view = formatCommitment(c, esc.PrivacyMode)
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, status, view)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := escrowIDParam(w, r)
	if !ok {
		return
	}
	if s.index == nil {
		writeError(w, r, http.StatusServiceUnavailable, "IndexerDisabled", "event index not configured")
		return
	}
	evts, err := s.index.EventsFor(hex.EncodeToString(id[:]))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": evts})
}

func (s *Server) handleAccountEscrows(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	if s.index == nil {
		writeError(w, r, http.StatusServiceUnavailable, "IndexerDisabled", "event index not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
			return
		}
		limit = parsed
	}
	records, err := s.index.EscrowsFor(hex.EncodeToString(addr[:]), limit)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"escrows": records})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	balance, err := s.host.Balance(addr)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResult{Address: addr.String(), Balance: balance.String()})
}

func (s *Server) handleArbitrators(w http.ResponseWriter, r *http.Request) {
	pool, err := s.host.Arbitrators()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	out := make([]string, 0, len(pool))
	for _, addr := range pool {
		out = append(out, crypto.Address(addr).String())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"arbitrators": out})
}

func (s *Server) handleConfidentialCommit(w http.ResponseWriter, r *http.Request) {
	var req confidentialCommitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	handle, err := s.host.CommitConfidential(r.Context(), value)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, confidentialCommitResult{Handle: handle.String()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	paused := s.host.Paused()
	if len(paused) > 0 {
		status = "paused"
	}
	writeJSON(w, http.StatusOK, healthJSON{Status: status, Paused: paused})
}
