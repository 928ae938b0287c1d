// Package paths knows the on-disk layout the binaries share: log files,
// the client's download directory, and how both are created and reset.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"distfs/internal/identity"
)

const (
	// LogsDir collects every process's log file.
	LogsDir = "logs"

	// ReceivedFilesDir is where the client CLI drops fetched files.
	ReceivedFilesDir = "received_files"
)

// NodeLogFile names one storage node's log inside LogsDir.
func NodeLogFile(id identity.NodeID) string {
	return fmt.Sprintf("node_%s_%d.log", id.Host, id.Port)
}

// EnsureDir makes sure dir exists and returns the cleaned path.
func EnsureDir(dir string) (string, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// RemoveDir deletes dir and everything under it; a missing dir is not an
// error.
func RemoveDir(dir string) error {
	return os.RemoveAll(dir)
}
