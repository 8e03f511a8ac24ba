package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slighter12/quip-mcp-go/config"
	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/mcp"
	"github.com/slighter12/quip-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/quip-mcp-go/transport/shared"
)

// Edit tools carry whole documents, so the limit is generous.
const maxJSONRPCBodyBytes = 8 << 20

const (
	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "Mcp-Protocol-Version"
	mcpEndpoint           = "/mcp"
)

func RegisterRoutes(e *echo.Echo, s *Server) {
	e.GET("/", s.handleHTTPInfo)
	e.POST(mcpEndpoint, s.handleStreamableHTTPPost)
	e.GET(mcpEndpoint, s.handleStreamableHTTPGet)
	e.DELETE(mcpEndpoint, s.handleStreamableHTTPDelete)
}

func (s *Server) handleHTTPInfo(c echo.Context) error {
	logger.Debug("HTTP info requested", "remote_addr", c.RealIP())
	return c.JSON(http.StatusOK, map[string]any{
		"name":                     s.config.Name,
		"version":                  s.config.Version,
		"description":              s.config.Description,
		"protocolVersion":          mcp.ProtocolVersion,
		"streamable_http_endpoint": mcpEndpoint,
		"streamable_http_url":      s.config.TransportURL(config.TransportStreamableHTTP),
		"sessions":                 s.sessionManager.Count(),
	})
}

func (s *Server) handleStreamableHTTPPost(c echo.Context) error {
	limitedBody := http.MaxBytesReader(c.Response(), c.Request().Body, maxJSONRPCBodyBytes)
	defer limitedBody.Close()

	body, err := io.ReadAll(limitedBody)
	if err != nil {
		if _, ok := errors.AsType[*http.MaxBytesError](err); ok {
			logger.Warn("Request body too large", "limit_bytes", maxJSONRPCBodyBytes, "remote_addr", c.RealIP())
			return c.JSON(http.StatusRequestEntityTooLarge, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Request body too large", nil))
		}
		logger.Error("Failed to read request body", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil))
	}

	frame, err := shared.ParseFrame(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil))
	}
	if frame.Response != nil {
		return c.JSON(http.StatusBadRequest, frame.Response)
	}

	requestedVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if requestedVersion != "" && !shared.IsSupportedProtocolVersion(requestedVersion) {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unsupported MCP-Protocol-Version header", nil))
	}

	if frame.Request != nil && frame.Request.Method == mcp.MethodInitialize {
		return s.handleInitialize(c, *frame.Request)
	}

	if status, message := s.checkSession(c, requestedVersion); status != http.StatusOK {
		return c.JSON(status, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, message, nil))
	}
	if frame.ClientReply || frame.Request.IsNotification() {
		if frame.Request != nil {
			s.handler.Handle(c.Request().Context(), *frame.Request)
		}
		return c.NoContent(http.StatusAccepted)
	}

	logger.Debug("Streamable HTTP request received", "method", frame.Request.Method, "id", frame.Request.ID)
	resp := s.handler.Handle(c.Request().Context(), *frame.Request)
	if resp == nil {
		return c.NoContent(http.StatusAccepted)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInitialize(c echo.Context, req jsonrpc.Request) error {
	resp := s.handler.Handle(c.Request().Context(), req)

	negotiated := mcp.ProtocolVersion
	if result, ok := resp.Result.(mcp.InitializeResult); ok {
		negotiated = result.ProtocolVersion
	}
	sessionID := s.sessionManager.CreateSession(negotiated)
	logger.Debug("Created MCP session", "session_id", sessionID, "protocol_version", negotiated)

	c.Response().Header().Set(headerSessionID, sessionID)
	return c.JSON(http.StatusOK, resp)
}

// checkSession validates the session and protocol headers of a
// non-initialize request.
func (s *Server) checkSession(c echo.Context, requestedVersion string) (int, string) {
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return http.StatusBadRequest, "Missing MCP-Session-Id header"
	}
	session, ok := s.sessionManager.TouchSession(sessionID)
	if !ok {
		return http.StatusNotFound, "Unknown MCP session"
	}
	if requestedVersion != "" && requestedVersion != session.ProtocolVersion {
		return http.StatusBadRequest, "Invalid MCP-Protocol-Version header"
	}
	c.Response().Header().Set(headerSessionID, sessionID)
	return http.StatusOK, ""
}

// handleStreamableHTTPGet rejects stream requests: the server never sends
// unsolicited messages.
func (s *Server) handleStreamableHTTPGet(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderAllow, strings.Join([]string{http.MethodPost, http.MethodDelete}, ", "))
	return c.NoContent(http.StatusMethodNotAllowed)
}

func (s *Server) handleStreamableHTTPDelete(c echo.Context) error {
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header", nil))
	}
	if !s.sessionManager.RemoveSession(sessionID) {
		return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil))
	}
	logger.Debug("Closed MCP session", "session_id", sessionID)
	return c.NoContent(http.StatusNoContent)
}
