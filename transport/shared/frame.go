package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/slighter12/quip-mcp-go/mcp"
	"github.com/slighter12/quip-mcp-go/mcp/jsonrpc"
)

// Frame is one parsed JSON-RPC message. Exactly one of Request, Response or
// ClientReply is set.
type Frame struct {
	// Request is a valid request or notification to handle.
	Request *jsonrpc.Request
	// Response is a prebuilt error reply for a malformed frame.
	Response *jsonrpc.Response
	// ClientReply marks a well-formed response sent by the client, which is
	// accepted and otherwise ignored.
	ClientReply bool
}

// ParseFrame validates one JSON-RPC message. Batches are rejected. An error is
// returned only for a blank frame.
func ParseFrame(frame []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return Frame{}, fmt.Errorf("empty message")
	}
	if trimmed[0] == '[' {
		return invalidRequest(nil), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Frame{Response: jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil)}, nil
	}

	id, hasID, validID := parseID(envelope)
	if !validID {
		return invalidRequest(nil), nil
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return invalidRequest(id), nil
	}
	req.ID = id

	if req.Method == "" {
		_, hasResult := envelope["result"]
		_, hasErr := envelope["error"]
		if !hasResult && !hasErr {
			return invalidRequest(id), nil
		}
		if req.JSONRPC != jsonrpc.Version || !hasID || (hasResult && hasErr) {
			return invalidRequest(nil), nil
		}
		return Frame{ClientReply: true}, nil
	}

	if req.JSONRPC != jsonrpc.Version {
		return invalidRequest(id), nil
	}
	if rawParams, ok := envelope["params"]; ok && !isObject(rawParams) {
		return invalidRequest(id), nil
	}
	if req.Method == mcp.MethodInitialize && req.IsNotification() {
		return invalidRequest(nil), nil
	}

	return Frame{Request: &req}, nil
}

func invalidRequest(id any) Frame {
	return Frame{Response: jsonrpc.NewErrorResponse(id, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}
}

// parseID reports the decoded id, whether the member was present, and whether
// it is a string or integer.
func parseID(envelope map[string]json.RawMessage) (any, bool, bool) {
	rawID, exists := envelope["id"]
	if !exists {
		return nil, false, true
	}
	trimmed := bytes.TrimSpace(rawID)
	if len(trimmed) == 0 {
		return nil, true, false
	}

	var id any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&id); err != nil {
		return nil, true, false
	}
	switch v := id.(type) {
	case string:
		return v, true, true
	case json.Number:
		if !isJSONInteger(v.String()) {
			return nil, true, false
		}
		return v, true, true
	default:
		return nil, true, false
	}
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONInteger(value string) bool {
	if value == "" || strings.ContainsAny(value, ".eE") {
		return false
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	if strings.HasPrefix(value, "-") {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}
