package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/mcp"
)

const (
	// ReadEmptyMessage is returned when a read succeeds without output.
	ReadEmptyMessage = "Document read successfully, but no content was returned"
	// CreateNotImplementedMessage is the fixed reply of the create tool.
	CreateNotImplementedMessage = "Document creation is not implemented in the current Python script. Please use the Quip web interface to create new documents."
)

// Dispatcher validates tool calls against the catalog and routes them to a
// Delegate. It keeps no state between calls.
type Dispatcher struct {
	catalog  *Catalog
	delegate Delegate
	tempDir  string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTempDir sets the directory used to stage edit content.
func WithTempDir(dir string) Option {
	return func(d *Dispatcher) {
		d.tempDir = dir
	}
}

// NewDispatcher creates a dispatcher over a fixed catalog and delegate.
func NewDispatcher(catalog *Catalog, delegate Delegate, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog:  catalog,
		delegate: delegate,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tools returns the advertised tool definitions.
func (d *Dispatcher) Tools() []mcp.Tool {
	return d.catalog.Tools()
}

// Dispatch runs one tool call. It always produces a result with exactly one
// text block; failures of any kind, including panics in a delegate, come back
// as a result with IsError set and the failure message as text.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, arguments map[string]any) (result mcp.CallToolResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Tool call panicked", "tool", name, "panic", r)
			result = mcp.NewErrorResult(fmt.Sprintf("internal error: %v", r))
		}
	}()

	text, err := d.call(ctx, name, arguments)
	if err != nil {
		logger.ErrorContext(ctx, "Tool call failed",
			"tool", name,
			"kind", KindOf(err),
			"code", CodeOf(err),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return mcp.NewErrorResult(err.Error())
	}

	logger.DebugContext(ctx, "Tool call completed", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return mcp.NewTextResult(text)
}

func (d *Dispatcher) call(ctx context.Context, name string, arguments map[string]any) (string, error) {
	descriptor, ok := d.catalog.Lookup(name)
	if !ok {
		return "", newUnknownToolError(name)
	}
	if arguments == nil {
		return "", newInvalidArgumentsError("Arguments are required")
	}

	values, err := requiredValues(descriptor, arguments)
	if err != nil {
		return "", err
	}

	switch descriptor.Operation {
	case OperationRead:
		return d.read(ctx, values[ArgThreadID])
	case OperationCreate:
		logger.InfoContext(ctx, "Document creation requested", "title", values[ArgTitle])
		return CreateNotImplementedMessage, nil
	default:
		return d.edit(ctx, descriptor.Operation, values[ArgThreadID], values[ArgContent])
	}
}

func (d *Dispatcher) read(ctx context.Context, threadID string) (string, error) {
	logger.InfoContext(ctx, "Reading document", "thread_id", threadID)

	output, err := d.delegate.Read(ctx, threadID)
	if err != nil {
		return "", err
	}
	if output == "" {
		return ReadEmptyMessage, nil
	}
	return output, nil
}

func (d *Dispatcher) edit(ctx context.Context, op Operation, threadID, content string) (string, error) {
	logger.InfoContext(ctx, "Editing document", "thread_id", threadID, "operation", op)

	path, release, err := stageContent(d.tempDir, content)
	if err != nil {
		return "", err
	}
	defer release()

	var output string
	switch op {
	case OperationAppend:
		output, err = d.delegate.Append(ctx, threadID, path)
	case OperationPrepend:
		output, err = d.delegate.Prepend(ctx, threadID, path)
	case OperationReplace:
		output, err = d.delegate.Replace(ctx, threadID, path)
	default:
		return "", fmt.Errorf("operation %q is not an edit", op)
	}
	if err != nil {
		return "", err
	}

	if output == "" {
		return fmt.Sprintf("Successfully %s content to document %s", op.pastTense(), threadID), nil
	}
	return output, nil
}

// requiredValues checks the descriptor's required arguments in declaration
// order and returns them as strings. The first missing or blank one fails.
func requiredValues(descriptor Descriptor, arguments map[string]any) (map[string]string, error) {
	values := make(map[string]string, len(descriptor.Properties))
	for _, name := range descriptor.Required() {
		value := stringArgument(arguments[name])
		if strings.TrimSpace(value) == "" {
			return nil, newInvalidArgumentsError(name + " is required")
		}
		values[name] = value
	}
	return values, nil
}

// stringArgument renders a scalar argument as a string. Anything else,
// including false, yields "".
func stringArgument(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if !v {
			return ""
		}
		return strconv.FormatBool(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return fmt.Sprint(v)
	default:
		// Objects and arrays count as missing.
		return ""
	}
}
