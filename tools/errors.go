package tools

import (
	"errors"
	"fmt"

	"github.com/slighter12/quip-mcp-go/mcp/jsonrpc"
)

// Failure kinds surfaced by the dispatcher.
const (
	KindInvalidArguments = "invalid_arguments"
	KindUnknownTool      = "unknown_tool"
	KindDelegateFailure  = "delegate_failure"
)

// ToolError marks a failed tool call. Its message is shown to the caller
// verbatim; Kind only drives logging and JSON-RPC code selection.
type ToolError struct {
	Kind    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e == nil {
		return "tool error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("tool error: %s", e.Kind)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Code maps the kind onto the matching JSON-RPC error code.
func (e *ToolError) Code() jsonrpc.ErrorCode {
	switch e.Kind {
	case KindInvalidArguments:
		return jsonrpc.ErrInvalidParams
	case KindUnknownTool:
		return jsonrpc.ErrMethodNotFound
	case KindDelegateFailure:
		return jsonrpc.ErrServerError
	default:
		return jsonrpc.ErrInternalError
	}
}

func newInvalidArgumentsError(message string) *ToolError {
	return &ToolError{Kind: KindInvalidArguments, Message: message}
}

func newUnknownToolError(name string) *ToolError {
	return &ToolError{Kind: KindUnknownTool, Message: fmt.Sprintf("Unknown tool: %s", name)}
}

// NewDelegateError wraps a failure reported by the delegate. The message is
// kept exactly as the delegate produced it.
func NewDelegateError(message string, err error) *ToolError {
	return &ToolError{Kind: KindDelegateFailure, Message: message, Err: err}
}

// AsToolError extracts a *ToolError from err.
func AsToolError(err error) (*ToolError, bool) {
	return errors.AsType[*ToolError](err)
}

// KindOf returns the failure kind of err, or "" if it is not a *ToolError.
func KindOf(err error) string {
	if toolErr, ok := AsToolError(err); ok {
		return toolErr.Kind
	}
	return ""
}

// CodeOf returns the JSON-RPC code for err, or ErrInternalError if it is not
// a *ToolError.
func CodeOf(err error) jsonrpc.ErrorCode {
	if toolErr, ok := AsToolError(err); ok {
		return toolErr.Code()
	}
	return jsonrpc.ErrInternalError
}
