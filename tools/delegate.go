package tools

import "context"

// Delegate performs the actual document operations against the remote
// service. Edit methods receive the path of a staged file holding the
// markdown content; the file is removed once the call returns.
//
// A returned error's message is surfaced to the caller as-is.
type Delegate interface {
	Read(ctx context.Context, threadID string) (string, error)
	Append(ctx context.Context, threadID, contentPath string) (string, error)
	Prepend(ctx context.Context, threadID, contentPath string) (string, error)
	Replace(ctx context.Context, threadID, contentPath string) (string, error)
}
