package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cyl19970726/Code3/services"
)

// ToolError represents a structured error from tool execution
type ToolError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Tool       string                 `json:"tool,omitempty"`
	Field      string                 `json:"field,omitempty"`
	FieldValue interface{}            `json:"field_value,omitempty"`
	Hint       string                 `json:"hint,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HttpStatus int                    `json:"http_status,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validation error codes
const (
	ErrCodeMissingRequired = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidValue    = "INVALID_FIELD_VALUE"
)

// NewMissingFieldError creates an error for missing required field
func NewMissingFieldError(tool, field string) *ToolError {
	return &ToolError{
		Code:       ErrCodeMissingRequired,
		Message:    fmt.Sprintf("Field '%s' is required", field),
		Tool:       tool,
		Field:      field,
		HttpStatus: 400,
		Hint:       fmt.Sprintf("Add '%s' to your request parameters", field),
	}
}

// NewInvalidFieldError creates an error for a field that failed to parse.
func NewInvalidFieldError(tool, field string, value interface{}, expected string) *ToolError {
	return &ToolError{
		Code:       ErrCodeInvalidValue,
		Message:    fmt.Sprintf("Field '%s' must be %s", field, expected),
		Tool:       tool,
		Field:      field,
		FieldValue: value,
		HttpStatus: 400,
	}
}

// FromError converts a service error into a ToolError carrying its domain code.
func FromError(tool string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	status, code := services.StatusForError(err)
	te = &ToolError{
		Code:       string(code),
		Message:    err.Error(),
		Tool:       tool,
		Hint:       services.Hint(code),
		HttpStatus: status,
	}
	var inv *services.InvalidArgument
	if errors.As(err, &inv) {
		te.Field = inv.Field
	}
	return te
}

// errorResult renders err as an IsError tool result with a JSON body.
func errorResult(tool string, err error) *mcp.CallToolResult {
	te := FromError(tool, err)
	body, mErr := json.Marshal(te)
	if mErr != nil {
		return mcp.NewToolResultError(te.Error())
	}
	return mcp.NewToolResultError(string(body))
}

// jsonResult renders v as indented JSON text.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
