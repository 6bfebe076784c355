package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"escrowchain/core/state"
	"escrowchain/native/escrow"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

var kindStatus = map[string]int{
	"InvalidParty":         http.StatusBadRequest,
	"InvalidAmount":        http.StatusBadRequest,
	"InvalidDuration":      http.StatusBadRequest,
	"InvalidCommitment":    http.StatusBadRequest,
	"InsufficientStake":    http.StatusBadRequest,
	"ModeMismatch":         http.StatusBadRequest,
	"UnknownHandle":        http.StatusBadRequest,
	"NotFound":             http.StatusNotFound,
	"NoCommitment":         http.StatusNotFound,
	"NotParticipant":       http.StatusForbidden,
	"AlreadyResolved":      http.StatusConflict,
	"AlreadyDisputed":      http.StatusConflict,
	"AlreadyVoted":         http.StatusConflict,
	"TooEarlyForDispute":   http.StatusConflict,
	"RevealWindowExpired":  http.StatusConflict,
	"RefundLocked":         http.StatusConflict,
	"CommitmentPending":    http.StatusConflict,
	"CommitmentNotExpired": http.StatusConflict,
	"NoEligibleArbitrator": http.StatusConflict,
	"DisputeQuotaExceeded": http.StatusTooManyRequests,
	"PrivacyUnavailable":   http.StatusNotImplemented,
	"ModulePaused":         http.StatusServiceUnavailable,
	"ReentrantCall":        http.StatusInternalServerError,
}

// classify maps an engine or ledger error to an HTTP status and stable code.
func classify(err error) (int, string) {
	if kind := escrow.Kind(err); kind != "" {
		if status, ok := kindStatus[kind]; ok {
			return status, kind
		}
		return http.StatusBadRequest, kind
	}
	if errors.Is(err, state.ErrInsufficientBalance) {
		return http.StatusBadRequest, "InsufficientBalance"
	}
	return http.StatusInternalServerError, "Internal"
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message, RequestID: requestID(r.Context())}})
}

// writeFailure reports err, hiding internal details from the client.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger(r).Error("request failed", "error", err)
		message = "internal error"
	}
	writeError(w, r, status, code, message)
}
