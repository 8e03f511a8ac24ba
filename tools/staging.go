package tools

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/slighter12/quip-mcp-go/logger"
)

const stagedFilePrefix = "quip_content_"

// stageContent writes content to a new, uniquely named file under dir and
// returns its path with a release func that removes it. The name carries a
// random UUID and the file is opened with O_EXCL, so concurrent calls never
// share a file.
func stageContent(dir, content string) (string, func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, stagedFilePrefix+uuid.NewString()+".md")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("create staged content file: %w", err)
	}

	release := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove staged content file", "path", path, "error", err)
		}
	}

	if _, err := file.WriteString(content); err != nil {
		file.Close()
		release()
		return "", nil, fmt.Errorf("write staged content file: %w", err)
	}
	if err := file.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("close staged content file: %w", err)
	}

	return path, release, nil
}
