package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/slighter12/quip-mcp-go/config"
	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/mcp"
	"github.com/slighter12/quip-mcp-go/tools"
	"github.com/slighter12/quip-mcp-go/transport/shared"
)

func TestMain(m *testing.M) {
	logger.SetDefault(logger.New(slog.LevelError, logger.FormatText, os.Stderr))
	os.Exit(m.Run())
}

type echoDelegate struct{}

func (echoDelegate) Read(_ context.Context, threadID string) (string, error) {
	return "document " + threadID, nil
}

func (echoDelegate) Append(_ context.Context, _, contentPath string) (string, error) {
	data, err := os.ReadFile(contentPath)
	return "appended " + string(data), err
}

func (echoDelegate) Prepend(context.Context, string, string) (string, error) { return "", nil }

func (echoDelegate) Replace(context.Context, string, string) (string, error) { return "", nil }

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.NewConfig()
	if mutate != nil {
		mutate(cfg)
	}
	dispatcher := tools.NewDispatcher(tools.NewCatalog(""), echoDelegate{}, tools.WithTempDir(t.TempDir()))
	handler := shared.NewHandler(mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, dispatcher)
	return NewServer(cfg, handler)
}

func post(t *testing.T, server *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func initialize(t *testing.T, server *Server) string {
	t.Helper()
	rec := post(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("initialize: status %d body %s", rec.Code, rec.Body.String())
	}
	sessionID := rec.Header().Get(headerSessionID)
	if sessionID == "" {
		t.Fatal("initialize should return a session id")
	}
	return sessionID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestInfoEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["name"] != "quip-document-server" || body["streamable_http_endpoint"] != "/mcp" {
		t.Fatalf("unexpected info %v", body)
	}
	if body["streamable_http_url"] != "http://localhost:9080/mcp" {
		t.Fatalf("unexpected advertised url %v", body["streamable_http_url"])
	}
}

func TestSessionLifecycle(t *testing.T) {
	server := newTestServer(t, nil)
	sessionID := initialize(t, server)
	headers := map[string]string{headerSessionID: sessionID, headerProtocolVersion: "2025-06-18"}

	rec := post(t, server, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, headers)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("initialized: status %d", rec.Code)
	}

	rec = post(t, server, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("tools/list: status %d body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody(t, rec)["result"].(map[string]any)
	if toolsList := result["tools"].([]any); len(toolsList) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(toolsList))
	}

	rec = post(t, server, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"append_content","arguments":{"threadId":"T1","content":"hello"}}}`, headers)
	result = decodeBody(t, rec)["result"].(map[string]any)
	text := result["content"].([]any)[0].(map[string]any)["text"]
	if result["isError"] != false || text != "appended hello" {
		t.Fatalf("unexpected tools/call result %v", result)
	}

	del := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	del.Header.Set(headerSessionID, sessionID)
	delRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(delRec, del)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", delRec.Code)
	}

	rec = post(t, server, `{"jsonrpc":"2.0","id":4,"method":"ping"}`, headers)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestPostRequiresSession(t *testing.T) {
	server := newTestServer(t, nil)

	rec := post(t, server, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session, got %d", rec.Code)
	}

	rec = post(t, server, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, map[string]string{headerSessionID: "unknown"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestPostProtocolVersionMismatch(t *testing.T) {
	server := newTestServer(t, nil)
	sessionID := initialize(t, server)

	rec := post(t, server, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, map[string]string{
		headerSessionID:       sessionID,
		headerProtocolVersion: mcp.ProtocolVersion,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched version, got %d", rec.Code)
	}

	rec = post(t, server, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, map[string]string{
		headerSessionID:       sessionID,
		headerProtocolVersion: "1999-01-01",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported version, got %d", rec.Code)
	}
}

func TestPostMalformedFrames(t *testing.T) {
	server := newTestServer(t, nil)

	for _, body := range []string{``, `{"jsonrpc":`, `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`} {
		rec := post(t, server, body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestGetMCPNotAllowed(t *testing.T) {
	server := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	server := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AuthToken = "secret"
	})
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`

	if rec := post(t, server, body, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := post(t, server, body, map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec := post(t, server, body, map[string]string{"Authorization": "Bearer secret"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("info endpoint should stay public, got %d", rec.Code)
	}
}

func TestSessionCleanup(t *testing.T) {
	manager := NewSessionManager()
	now := time.Now()
	manager.now = func() time.Time { return now }

	stale := manager.CreateSession(mcp.ProtocolVersion)
	now = now.Add(20 * time.Minute)
	fresh := manager.CreateSession(mcp.ProtocolVersion)
	now = now.Add(15 * time.Minute)

	if removed := manager.CleanupSessions(30 * time.Minute); removed != 1 {
		t.Fatalf("expected 1 removed session, got %d", removed)
	}
	if manager.HasSession(stale) || !manager.HasSession(fresh) {
		t.Fatal("only the stale session should be removed")
	}
}

func TestStartAndShutdown(t *testing.T) {
	server := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 0
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
