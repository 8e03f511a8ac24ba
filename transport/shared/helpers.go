package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/mcp"
	"github.com/slighter12/quip-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/quip-mcp-go/tools"
)

const pageSize = 50

// SupportedProtocolVersions lists the MCP revisions a client may negotiate.
var SupportedProtocolVersions = []string{
	"2024-11-05",
	"2025-03-26",
	"2025-06-18",
	mcp.ProtocolVersion,
}

const serverInstructions = "Read and edit Quip documents by thread ID. Edit tools take markdown content."

// Handler answers MCP requests for every transport. It is safe for
// concurrent use.
type Handler struct {
	info       mcp.Implementation
	dispatcher *tools.Dispatcher
}

// NewHandler creates a handler advertising info in the initialize reply.
func NewHandler(info mcp.Implementation, dispatcher *tools.Dispatcher) *Handler {
	return &Handler{info: info, dispatcher: dispatcher}
}

// Handle answers one request. It returns nil for notifications.
func (h *Handler) Handle(ctx context.Context, req jsonrpc.Request) *jsonrpc.Response {
	logger.DebugContext(ctx, "Handling message", "method", req.Method, "id", req.ID)

	switch req.Method {
	case mcp.MethodInitialize:
		return h.BuildInitializeResponse(req)
	case mcp.MethodInitialized, mcp.MethodInitializedLegacy:
		if !req.IsNotification() {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)
		}
		return nil
	case mcp.MethodNotificationsCancelled:
		return nil
	case mcp.MethodPing:
		return BuildPingResponse(req)
	case mcp.MethodToolsList:
		return BuildToolsListResponse(req, h.dispatcher.Tools())
	case mcp.MethodToolsCall:
		if req.IsNotification() {
			return nil
		}
		return BuildToolCallResponse(ctx, req, h.dispatcher)
	default:
		if req.IsNotification() {
			return nil
		}
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrMethodNotFound, "Method not found", map[string]any{
			"method": req.Method,
		})
	}
}

// BuildInitializeResponse answers the handshake with the negotiated version.
func (h *Handler) BuildInitializeResponse(req jsonrpc.Request) *jsonrpc.Response {
	params := mcp.ParseInitializeParams(req.Params)
	logger.Info("Client initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"requested_protocol", params.ProtocolVersion,
	)
	return jsonrpc.NewResponse(req.ID, mcp.InitializeResult{
		ProtocolVersion: NegotiateProtocolVersion(params.ProtocolVersion),
		Capabilities:    ServerCapabilities(),
		ServerInfo:      h.info,
		Instructions:    serverInstructions,
	})
}

// NegotiateProtocolVersion echoes a supported requested version and otherwise
// falls back to the newest one.
func NegotiateProtocolVersion(requested string) string {
	if IsSupportedProtocolVersion(requested) {
		return requested
	}
	return mcp.ProtocolVersion
}

func IsSupportedProtocolVersion(version string) bool {
	return version != "" && slices.Contains(SupportedProtocolVersions, version)
}

func ServerCapabilities() map[string]any {
	return map[string]any{
		"tools": map[string]any{"listChanged": false},
	}
}

func BuildPingResponse(req jsonrpc.Request) *jsonrpc.Response {
	return jsonrpc.NewResponse(req.ID, map[string]any{})
}

// BuildToolsListResponse pages through tools in catalog order.
func BuildToolsListResponse(req jsonrpc.Request, all []mcp.Tool) *jsonrpc.Response {
	start, err := ParseCursor(req.Params, len(all))
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrInvalidParams, err.Error(), nil)
	}
	end := min(start+pageSize, len(all))

	result := mcp.ListToolsResult{Tools: all[start:end]}
	if end < len(all) {
		result.NextCursor = strconv.Itoa(end)
	}
	return jsonrpc.NewResponse(req.ID, result)
}

// BuildToolCallResponse runs a tools/call. Only a malformed payload becomes a
// JSON-RPC error; every tool outcome, failures included, is a result.
func BuildToolCallResponse(ctx context.Context, req jsonrpc.Request, dispatcher *tools.Dispatcher) *jsonrpc.Response {
	params, err := parseToolCallParams(req.Params)
	if err != nil {
		logger.WarnContext(ctx, "Invalid tool call payload", "id", req.ID, "error", err)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrInvalidParams, "Invalid tool call payload", nil)
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrInvalidParams, "Tool name is required", nil)
	}

	result := dispatcher.Dispatch(ctx, name, params.Arguments)
	return jsonrpc.NewResponse(req.ID, result)
}

func parseToolCallParams(raw json.RawMessage) (mcp.ToolCallParams, error) {
	var params mcp.ToolCallParams
	if len(bytes.TrimSpace(raw)) == 0 {
		return params, fmt.Errorf("missing params")
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&params); err != nil {
		return params, err
	}
	return params, nil
}

// ParseCursor decodes the tools/list cursor into a start offset.
func ParseCursor(paramsRaw json.RawMessage, total int) (int, error) {
	if len(paramsRaw) == 0 {
		return 0, nil
	}

	var params struct {
		Cursor string `json:"cursor"`
	}
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return 0, fmt.Errorf("invalid params payload")
	}
	if strings.TrimSpace(params.Cursor) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(params.Cursor)
	if err != nil || offset < 0 || offset > total {
		return 0, fmt.Errorf("invalid cursor value")
	}
	return offset, nil
}
