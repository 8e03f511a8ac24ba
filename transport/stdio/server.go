package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/mcp"
	"github.com/slighter12/quip-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/quip-mcp-go/transport/shared"
)

// StdioServer speaks newline-delimited JSON-RPC over a reader/writer pair,
// normally stdin and stdout.
type StdioServer struct {
	handler *shared.Handler
	in      io.Reader
	out     io.Writer

	writeMu sync.Mutex
	calls   sync.WaitGroup
}

// NewStdioServer creates a stdio server reading requests from in and writing
// responses to out.
func NewStdioServer(handler *shared.Handler, in io.Reader, out io.Writer) *StdioServer {
	return &StdioServer{
		handler: handler,
		in:      in,
		out:     out,
	}
}

// Serve processes messages until the input reaches EOF or ctx is done.
// tools/call requests run concurrently so a slow delegate does not block the
// read loop; other methods are answered in order. In-flight calls are
// cancelled when ctx is done and awaited before Serve returns.
func (s *StdioServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.calls.Wait()
	}()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLines(ctx, lines, readErr)

	logger.Debug("Stdio server started and waiting for messages")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Stdio server stopping", "reason", ctx.Err())
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read stdio input: %w", err)
			}
			logger.Debug("Stdio EOF received, waiting for in-flight calls")
			s.calls.Wait()
			return nil
		case line := <-lines:
			s.handleLine(ctx, line)
		}
	}
}

func (s *StdioServer) readLines(ctx context.Context, lines chan<- []byte, readErr chan<- error) {
	reader := bufio.NewReader(s.in)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			readErr <- err
			return
		}
	}
}

func (s *StdioServer) handleLine(ctx context.Context, line []byte) {
	frame, err := shared.ParseFrame(line)
	if err != nil {
		return
	}

	switch {
	case frame.Response != nil:
		logger.Warn("Rejected malformed stdio message", "code", frame.Response.Error.Code)
		s.write(frame.Response)
	case frame.ClientReply:
		logger.Debug("Ignoring client response")
	case frame.Request != nil:
		req := *frame.Request
		logger.Debug("Stdio message received", "method", req.Method, "id", req.ID)

		if req.Method == mcp.MethodToolsCall && !req.IsNotification() {
			s.calls.Add(1)
			go func() {
				defer s.calls.Done()
				s.respond(ctx, req)
			}()
			return
		}
		s.respond(ctx, req)
	}
}

func (s *StdioServer) respond(ctx context.Context, req jsonrpc.Request) {
	if resp := s.handler.Handle(ctx, req); resp != nil {
		s.write(resp)
	}
}

func (s *StdioServer) write(resp *jsonrpc.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Error encoding response", "id", resp.ID, "error", err)
		return
	}
	payload = append(payload, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(payload); err != nil {
		logger.Error("Error writing response", "id", resp.ID, "error", err)
	}
}
