package bounty

import "errors"

// Code identifies a failure kind across transports.
type Code string

const (
	CodeInvalidBountyStatus   Code = "InvalidBountyStatus"
	CodeUnauthorizedSponsor   Code = "UnauthorizedSponsor"
	CodeUnauthorizedWorker    Code = "UnauthorizedWorker"
	CodeBountyAlreadyAccepted Code = "BountyAlreadyAccepted"
	CodeWorkNotSubmitted      Code = "WorkNotSubmitted"
	CodeWorkNotConfirmed      Code = "WorkNotConfirmed"
	CodeInvalidAmount         Code = "InvalidAmount"
	CodeTaskIDTooLong         Code = "TaskIdTooLong"
	CodeTaskURLTooLong        Code = "TaskUrlTooLong"
	CodeSubmissionURLTooLong  Code = "SubmissionUrlTooLong"
	CodeArithmeticOverflow    Code = "ArithmeticOverflow"
	CodeUnauthorizedAuthority Code = "UnauthorizedAuthority"

	CodeNotInitialized     Code = "NotInitialized"
	CodeAlreadyInitialized Code = "AlreadyInitialized"
	CodeBountyNotFound     Code = "BountyNotFound"
	CodeInsufficientFunds  Code = "InsufficientFunds"
	CodeAccountExists      Code = "AccountExists"
	CodeVaultLocked        Code = "VaultLocked"
	CodeBalanceOverflow    Code = "BalanceOverflow"
	CodeInvalidRecord      Code = "InvalidRecord"

	// CodeInternal is reported for errors that carry no code.
	CodeInternal Code = "Internal"
)

// Error is a coded failure. Values are compared by identity, so wrap them with %w.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }

// Lifecycle failures.
var (
	ErrInvalidBountyStatus  = newError(CodeInvalidBountyStatus, "invalid bounty status for this operation")
	ErrUnauthorizedSponsor  = newError(CodeUnauthorizedSponsor, "only the sponsor can perform this action")
	ErrUnauthorizedWorker   = newError(CodeUnauthorizedWorker, "only the worker can perform this action")
	ErrInvalidAmount        = newError(CodeInvalidAmount, "bounty amount must be greater than zero")
	ErrTaskIDTooLong        = newError(CodeTaskIDTooLong, "task id exceeds maximum length")
	ErrTaskURLTooLong       = newError(CodeTaskURLTooLong, "task url exceeds maximum length")
	ErrSubmissionURLTooLong = newError(CodeSubmissionURLTooLong, "submission url exceeds maximum length")
	ErrArithmeticOverflow   = newError(CodeArithmeticOverflow, "arithmetic overflow occurred")
)

// Reserved codes. No transition returns them; the checks they name are folded
// into ErrInvalidBountyStatus and the unauthorized errors.
var (
	ErrBountyAlreadyAccepted = newError(CodeBountyAlreadyAccepted, "bounty has already been accepted by another worker")
	ErrWorkNotSubmitted      = newError(CodeWorkNotSubmitted, "worker has not submitted work yet")
	ErrWorkNotConfirmed      = newError(CodeWorkNotConfirmed, "work has not been confirmed by sponsor")
	ErrUnauthorizedAuthority = newError(CodeUnauthorizedAuthority, "unauthorized authority")
)

// Substrate failures, returned by Tx implementations.
var (
	ErrNotInitialized     = newError(CodeNotInitialized, "registry not initialized")
	ErrAlreadyInitialized = newError(CodeAlreadyInitialized, "registry already initialized")
	ErrBountyNotFound     = newError(CodeBountyNotFound, "bounty not found")
	ErrInsufficientFunds  = newError(CodeInsufficientFunds, "insufficient funds")
	ErrAccountExists      = newError(CodeAccountExists, "account already exists")
	ErrVaultLocked        = newError(CodeVaultLocked, "vault funds can only move through a bounty transition")
	ErrBalanceOverflow    = newError(CodeBalanceOverflow, "balance overflow")
	ErrInvalidRecord      = newError(CodeInvalidRecord, "invalid bounty record encoding")
)

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
