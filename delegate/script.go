package delegate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/slighter12/quip-mcp-go/config"
	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/tools"
)

// waitDelay bounds how long Run waits for the child's pipes after the
// process has been killed by context cancellation.
const waitDelay = 2 * time.Second

var _ tools.Delegate = (*Script)(nil)

// Script runs the external document script once per operation:
//
//	<interpreter> [args...] <script> <threadId> <operation> [<contentPath>]
//
// Stdout is the result. Anything written to stderr fails the call.
type Script struct {
	interpreter string
	args        []string
	script      string
	workDir     string
	env         []string
	timeout     time.Duration
}

// NewScript builds a script delegate from config. Entries of cfg.Env are
// added on top of the current process environment.
func NewScript(cfg config.Delegate) *Script {
	env := os.Environ()
	for _, key := range slices.Sorted(maps.Keys(cfg.Env)) {
		env = append(env, key+"="+cfg.Env[key])
	}
	return &Script{
		interpreter: cfg.Interpreter,
		args:        slices.Clone(cfg.InterpreterArgs),
		script:      cfg.Script,
		workDir:     cfg.WorkDir,
		env:         env,
		timeout:     cfg.Timeout(),
	}
}

// Check verifies that the interpreter can be found and the script exists.
func (s *Script) Check() error {
	if _, err := exec.LookPath(s.interpreter); err != nil {
		return fmt.Errorf("delegate interpreter %q: %w", s.interpreter, err)
	}
	script := s.script
	if s.workDir != "" && !filepath.IsAbs(script) {
		script = filepath.Join(s.workDir, script)
	}
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("delegate script: %w", err)
	}
	return nil
}

func (s *Script) Read(ctx context.Context, threadID string) (string, error) {
	return s.run(ctx, tools.OperationRead, threadID, "")
}

func (s *Script) Append(ctx context.Context, threadID, contentPath string) (string, error) {
	return s.run(ctx, tools.OperationAppend, threadID, contentPath)
}

func (s *Script) Prepend(ctx context.Context, threadID, contentPath string) (string, error) {
	return s.run(ctx, tools.OperationPrepend, threadID, contentPath)
}

func (s *Script) Replace(ctx context.Context, threadID, contentPath string) (string, error) {
	return s.run(ctx, tools.OperationReplace, threadID, contentPath)
}

func (s *Script) run(ctx context.Context, op tools.Operation, threadID, contentPath string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := append(slices.Clone(s.args), s.script, threadID, string(op))
	if contentPath != "" {
		args = append(args, contentPath)
	}

	cmd := exec.CommandContext(ctx, s.interpreter, args...)
	cmd.Dir = s.workDir
	cmd.Env = s.env
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logger.DebugContext(ctx, "Delegate finished",
		"operation", op,
		"thread_id", threadID,
		"duration_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
	)

	if stderr.Len() > 0 {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = fmt.Sprintf("delegate %s wrote blank output to stderr", op)
		}
		logger.WarnContext(ctx, "Delegate reported an error", "operation", op, "thread_id", threadID, "stderr", message)
		return "", tools.NewDelegateError(message, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", tools.NewDelegateError(fmt.Sprintf("delegate %s failed: %v", op, ctxErr), ctxErr)
	}
	if err != nil {
		message := fmt.Sprintf("delegate %s failed: %v", op, err)
		if out := strings.TrimSpace(stdout.String()); out != "" {
			message += ": " + out
		}
		if _, ok := errors.AsType[*exec.Error](err); ok {
			logger.ErrorContext(ctx, "Delegate could not be started", "interpreter", s.interpreter, "error", err)
		}
		return "", tools.NewDelegateError(message, err)
	}

	return stdout.String(), nil
}
