package staging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"mixtape/internal/logging"
)

// DefaultMaxAge is how old an unleased batch directory must be before
// CleanStale removes it.
const DefaultMaxAge = 24 * time.Hour

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes batch directories under root older than maxAge whose
// lease is not held. Other entries in root are left alone.
func CleanStale(ctx context.Context, root string, maxAge time.Duration, logger *zap.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "staging"))

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		dirPath := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if held(dirPath) {
			result.Skipped = append(result.Skipped, dirPath)
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale work directory", "staging_cleanup_failed",
				zap.String("path", dirPath),
				zap.Error(err),
				zap.String(logging.FieldErrorHint, "check work_dir permissions"),
				zap.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed stale work directory",
			zap.String("path", dirPath),
			zap.Duration("age", time.Since(info.ModTime())),
			zap.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}
