package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/slighter12/quip-mcp-go/config"
	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/transport/shared"
)

const (
	sessionCleanupInterval = 5 * time.Minute
	sessionIdleTimeout     = 30 * time.Minute
)

// Server serves MCP over streamable HTTP on a single /mcp endpoint.
type Server struct {
	handler        *shared.Handler
	sessionManager *SessionManager
	config         *config.Config
	echo           *echo.Echo
}

func NewServer(cfg *config.Config, handler *shared.Handler) *Server {
	s := &Server{
		handler:        handler,
		sessionManager: NewSessionManager(),
		config:         cfg,
		echo:           echo.New(),
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	// stdout may carry the stdio transport.
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger.SetOutput(os.Stderr)
	s.echo.Debug = s.config.Server.Debug

	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_addr", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("HTTP request failed", append(args, "error", v.Error)...)
				return nil
			}
			logger.Debug("HTTP request", args...)
			return nil
		},
	}))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, headerSessionID, headerProtocolVersion},
		ExposeHeaders: []string{headerSessionID},
	}))
	if token := s.config.Server.AuthToken; token != "" {
		s.echo.Use(bearerAuth(token))
	}
	RegisterRoutes(s.echo, s)
}

// bearerAuth requires "Authorization: Bearer <token>" on every route except
// the info endpoint.
func bearerAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Method == http.MethodOptions || c.Path() == "/"
		},
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			logger.Warn("Rejected unauthenticated request", "remote_addr", c.RealIP(), "error", err)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		},
	})
}

// Start listens on the configured address and blocks until Shutdown is
// called or the listener fails. Idle sessions are pruned until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.runSessionCleanup(ctx)

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	logger.Info("Streamable HTTP server starting to listen", "address", addr, "auth", s.config.Server.AuthToken != "")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Streamable HTTP server shutting down")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) runSessionCleanup(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessionManager.CleanupSessions(sessionIdleTimeout); removed > 0 {
				logger.Debug("Removed idle MCP sessions", "count", removed)
			}
		}
	}
}
