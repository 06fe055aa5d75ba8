package services

import (
	"errors"
	"net/http"

	"github.com/cyl19970726/Code3/core/bounty"
	storebounty "github.com/cyl19970726/Code3/storage/bounty"
)

// CodeInvalidArgument is reported for malformed requests rejected before the engine.
const CodeInvalidArgument bounty.Code = "InvalidArgument"

// InvalidArgument wraps a request validation failure.
type InvalidArgument struct {
	Field string
	Err   error
}

func (e *InvalidArgument) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *InvalidArgument) Unwrap() error { return e.Err }

// Invalid builds an InvalidArgument for field.
func Invalid(field string, err error) error {
	return &InvalidArgument{Field: field, Err: err}
}

// ErrorCode returns the stable code for err.
func ErrorCode(err error) bounty.Code {
	var inv *InvalidArgument
	switch {
	case errors.As(err, &inv),
		errors.Is(err, storebounty.ErrInvalidPageArg),
		errors.Is(err, storebounty.ErrInvalidAmount),
		errors.Is(err, storebounty.ErrFundVault):
		return CodeInvalidArgument
	}
	return bounty.CodeOf(err)
}

// StatusForError maps err to an HTTP status and its code.
func StatusForError(err error) (int, bounty.Code) {
	code := ErrorCode(err)
	switch code {
	case CodeInvalidArgument,
		bounty.CodeInvalidAmount,
		bounty.CodeTaskIDTooLong,
		bounty.CodeTaskURLTooLong,
		bounty.CodeSubmissionURLTooLong:
		return http.StatusBadRequest, code
	case bounty.CodeUnauthorizedSponsor,
		bounty.CodeUnauthorizedWorker,
		bounty.CodeUnauthorizedAuthority,
		bounty.CodeVaultLocked:
		return http.StatusForbidden, code
	case bounty.CodeBountyNotFound:
		return http.StatusNotFound, code
	case bounty.CodeInvalidBountyStatus,
		bounty.CodeBountyAlreadyAccepted,
		bounty.CodeWorkNotSubmitted,
		bounty.CodeWorkNotConfirmed,
		bounty.CodeAlreadyInitialized,
		bounty.CodeNotInitialized,
		bounty.CodeAccountExists,
		bounty.CodeArithmeticOverflow:
		return http.StatusConflict, code
	case bounty.CodeInsufficientFunds, bounty.CodeBalanceOverflow:
		return http.StatusUnprocessableEntity, code
	default:
		return http.StatusInternalServerError, code
	}
}

// Hint returns a short remedy for a failure code, or "".
func Hint(code bounty.Code) string {
	switch code {
	case bounty.CodeInvalidBountyStatus:
		return "Fetch the bounty and wait until it reaches the status this operation requires"
	case bounty.CodeUnauthorizedSponsor:
		return "Sign the request with the sponsor's key"
	case bounty.CodeUnauthorizedWorker:
		return "Sign the request with the assigned worker's key"
	case bounty.CodeInsufficientFunds:
		return "Fund the sponsor account before creating the bounty"
	case bounty.CodeNotInitialized:
		return "Run `bountyd init` to create the registry"
	case bounty.CodeTaskIDTooLong, bounty.CodeTaskURLTooLong, bounty.CodeSubmissionURLTooLong:
		return "task_id is capped at 200 bytes, task_url and submission_url at 500"
	}
	return ""
}
