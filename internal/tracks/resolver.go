package tracks

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"mixtape/internal/config"
	"mixtape/internal/logging"
	"mixtape/internal/media/ffprobe"
)

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

type inspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

type bannerFunc func(ctx context.Context, binary, path string) string

// Resolver turns file paths into Tracks.
type Resolver struct {
	ffprobe   string
	ffmpeg    string
	lyricsDir string
	logger    *zap.Logger

	inspect inspectFunc
	banner  bannerFunc
}

// NewResolver builds a resolver using the configured binaries and lyrics folder.
func NewResolver(cfg *config.Config, logger *zap.Logger) *Resolver {
	return &Resolver{
		ffprobe:   cfg.FFprobeBinary(),
		ffmpeg:    cfg.FFmpegBinary(),
		lyricsDir: cfg.Paths.LyricsDir,
		logger:    logging.NewComponentLogger(logger, "tracks"),
		inspect:   ffprobe.Inspect,
		banner:    ffmpegBanner,
	}
}

// WithLyricsDir returns a copy of the resolver that searches dir for lyric files.
func (r *Resolver) WithLyricsDir(dir string) *Resolver {
	clone := *r
	clone.lyricsDir = dir
	return &clone
}

// Resolve reads metadata for path. Missing tags fall back to the file name;
// a missing duration falls back to the ffmpeg input banner and finally to 0.
func (r *Resolver) Resolve(ctx context.Context, path string) Track {
	name := baseName(path)
	track := Track{Path: path, Title: name}

	result, err := r.inspect(ctx, r.ffprobe, path)
	if err != nil {
		r.logger.Debug("ffprobe failed; using file name metadata",
			zap.String("path", path),
			zap.Error(err),
		)
	} else {
		if title := result.Tag("title"); title != "" {
			track.Title = title
		}
		track.Artist = result.Tag("artist")
		track.Duration = result.DurationSeconds()
		track.Format = result.PrimaryFormat()
		if result.AudioStreamCount() == 0 {
			logging.WarnWithContext(r.logger, "no audio stream reported", "track_without_audio",
				zap.String("path", path),
				zap.String(logging.FieldImpact, "the transcode stages will likely fail for this track"),
				zap.String(logging.FieldErrorHint, "check the file with ffprobe"),
			)
		}
	}

	if track.Artist == "" {
		if artist, title, ok := splitArtistTitle(name); ok {
			track.Artist = artist
			if err != nil || result.Tag("title") == "" {
				track.Title = title
			}
		}
	}

	if track.Duration <= 0 {
		track.Duration = parseBannerDuration(r.banner(ctx, r.ffmpeg, path))
	}
	if track.Duration <= 0 {
		logging.WarnWithContext(r.logger, "track duration unknown", "duration_unknown",
			zap.String("path", path),
			zap.String(logging.FieldImpact, "track occupies no time in the timeline"),
			zap.String(logging.FieldErrorHint, "re-encode the file or fix its headers"),
		)
		track.Duration = 0
	}

	track.LyricsSource = FindLyrics(path, r.lyricsDir)
	return track
}

// ResolveAll resolves every path in order.
func (r *Resolver) ResolveAll(ctx context.Context, paths []string) []Track {
	out := make([]Track, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		out = append(out, r.Resolve(ctx, p))
	}
	return out
}

// ffmpegBanner runs ffmpeg with only an input. ffmpeg exits non-zero because
// no output is given, but the input banner with the duration is still printed.
func ffmpegBanner(ctx context.Context, binary, path string) string {
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-i", path)
	output, _ := cmd.CombinedOutput()
	return string(output)
}

func parseBannerDuration(banner string) float64 {
	match := durationPattern.FindStringSubmatch(banner)
	if match == nil {
		return 0
	}
	hours, err1 := strconv.Atoi(match[1])
	minutes, err2 := strconv.Atoi(match[2])
	seconds, err3 := strconv.ParseFloat(match[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return float64(hours*3600+minutes*60) + seconds
}
