package preflight

import (
	"context"
	"strings"

	"mixtape/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Service checks only run when the service is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	// Input directories are optional: tracks and images may come from arguments.
	for _, dir := range []struct{ name, path string }{
		{"Music directory", cfg.Paths.MusicDir},
		{"Images directory", cfg.Paths.ImagesDir},
		{"Lyrics directory", cfg.Paths.LyricsDir},
	} {
		if strings.TrimSpace(dir.path) == "" {
			continue
		}
		r := CheckReadableDirectory(dir.name, dir.path)
		r.Optional = true
		results = append(results, r)
	}

	if addr := strings.TrimSpace(cfg.Notifications.RedisAddr); addr != "" {
		r := CheckRedis(ctx, cfg.Notifications)
		r.Optional = true
		results = append(results, r)
	}
	return results
}

// Failed returns the names of required checks that did not pass.
func Failed(results []Result) []string {
	var names []string
	for _, r := range results {
		if !r.Passed && !r.Optional {
			names = append(names, r.Name)
		}
	}
	return names
}
