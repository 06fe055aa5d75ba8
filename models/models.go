package models

import (
	"time"

	"github.com/cyl19970726/Code3/core/bounty"
)

// CreateBountyRequest is the body of POST /api/bounties.
type CreateBountyRequest struct {
	TaskID   string `json:"task_id"`
	TaskURL  string `json:"task_url"`
	TaskHash string `json:"task_hash"`
	Amount   string `json:"amount"`
}

// AcceptBountyRequest names the worker the sponsor assigns.
type AcceptBountyRequest struct {
	Worker string `json:"worker"`
}

// SubmitBountyRequest carries the worker's deliverable location.
type SubmitBountyRequest struct {
	SubmissionURL string `json:"submission_url"`
}

// FundRequest is the body of the development faucet.
type FundRequest struct {
	Amount string `json:"amount"`
}

// TransitionResponse is returned by every lifecycle operation.
type TransitionResponse struct {
	TxID   string        `json:"tx_id"`
	Bounty bounty.Bounty `json:"bounty"`
	Event  bounty.Event  `json:"event"`
}

// NewTransitionResponse flattens a receipt for transport.
func NewTransitionResponse(rec bounty.Receipt) TransitionResponse {
	return TransitionResponse{TxID: rec.TxID.String(), Bounty: rec.Bounty, Event: rec.Event}
}

// BountyList is a page of bounties.
type BountyList struct {
	Bounties  []bounty.Bounty `json:"bounties"`
	BountyIDs []uint64        `json:"bounty_ids"`
	Count     int             `json:"count"`
	Total     int             `json:"total"`
	Offset    int             `json:"offset"`
	Limit     int             `json:"limit"`
}

// TaskHashLookup answers the idempotency query.
type TaskHashLookup struct {
	BountyID *uint64 `json:"bounty_id"`
	Found    bool    `json:"found"`
}

// VaultInfo describes a bounty's custody account.
type VaultInfo struct {
	BountyID uint64         `json:"bounty_id"`
	Address  bounty.Address `json:"address"`
	Balance  uint64         `json:"balance,string"`
	Amount   uint64         `json:"amount,string"`
	Status   bounty.Status  `json:"status"`
}

// BalanceResponse reports an account balance.
type BalanceResponse struct {
	Address bounty.Address `json:"address"`
	Balance uint64         `json:"balance,string"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Store         string `json:"store"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *ErrorResponse         `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response. kind is the stable error code,
// message the human-readable detail.
func NewErrorResponse(kind, message string, code int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     kind,
			Message:   message,
			Code:      code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponseWithHint creates an error response with a remedy hint.
func NewErrorResponseWithHint(kind, message string, code int, hint string) *APIResponse {
	resp := NewErrorResponse(kind, message, code)
	resp.Error.Hint = hint
	return resp
}

// NewSuccessResponseWithMeta creates a success response with metadata
func NewSuccessResponseWithMeta(data interface{}, meta map[string]interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}
