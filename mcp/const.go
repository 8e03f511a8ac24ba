package mcp

// Protocol version
const (
	ProtocolVersion = "2025-11-25"
)

// ContentTypeText is the only content type this server produces.
const ContentTypeText = "text"

// Standard MCP method names handled by the transports.
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "notifications/initialized"
	MethodInitializedLegacy      = "initialized"
	MethodPing                   = "ping"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodNotificationsCancelled = "notifications/cancelled"
)
