package mcp

import "encoding/json"

// Tool represents a tool definition
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema represents the JSON schema for tool input
type InputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// Property describes one named string argument of a tool.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ToolCallParams is the params object of a tools/call request.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the envelope returned for every tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// NewTextResult builds a successful single-text result.
func NewTextResult(text string) CallToolResult {
	return CallToolResult{Content: []Content{{Type: ContentTypeText, Text: text}}}
}

// NewErrorResult builds a failed single-text result.
func NewErrorResult(text string) CallToolResult {
	return CallToolResult{Content: []Content{{Type: ContentTypeText, Text: text}}, IsError: true}
}

// Text returns the text of the first content block, or "" when there is none.
func (r CallToolResult) Text() string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

// InitializeParams carries the client side of the handshake.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// Implementation names a client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is returned from initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// ListToolsResult is returned from tools/list.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ParseInitializeParams decodes initialize params, tolerating an empty payload.
func ParseInitializeParams(raw json.RawMessage) InitializeParams {
	var params InitializeParams
	if len(raw) == 0 {
		return params
	}
	_ = json.Unmarshal(raw, &params)
	return params
}
