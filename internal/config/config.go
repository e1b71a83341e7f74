package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
	MusicDir  string `toml:"music_dir"`
	ImagesDir string `toml:"images_dir"`
	LyricsDir string `toml:"lyrics_dir"`
}

// Batch controls how many variants are produced and what happens on failure.
type Batch struct {
	Count              int    `toml:"count"`
	OutputName         string `toml:"output_name"`
	OnFailure          string `toml:"on_failure"`
	MaxShuffleAttempts int    `toml:"max_shuffle_attempts"`
}

// Lyrics contains lyric discovery, decoding, and subtitle styling settings.
type Lyrics struct {
	Enabled            bool     `toml:"enabled"`
	FontSize           int      `toml:"font_size"`
	LastCueHoldSeconds float64  `toml:"last_cue_hold_seconds"`
	Encodings          []string `toml:"encodings"`
	MinTaggedLines     int      `toml:"min_tagged_lines"`
	MinTaggedRatio     float64  `toml:"min_tagged_ratio"`
	// TraditionalToSimplified converts cue text with OpenCC t2s tables.
	TraditionalToSimplified bool `toml:"traditional_to_simplified"`
}

// Encoder contains ffmpeg binary and output quality settings.
type Encoder struct {
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	FFprobeBinary      string `toml:"ffprobe_binary"`
	VideoCodec         string `toml:"video_codec"`
	Preset             string `toml:"preset"`
	CRF                int    `toml:"crf"`
	AudioBitrate       string `toml:"audio_bitrate"`
	SampleRate         int    `toml:"sample_rate"`
	Channels           int    `toml:"channels"`
	CancelGraceSeconds int    `toml:"cancel_grace_seconds"`
}

// Progress controls the progress event queue between the batch worker and observers.
type Progress struct {
	QueueSize      int `toml:"queue_size"`
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Notifications contains ntfy and redis pub/sub settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	RedisChannel   string `toml:"redis_channel"`
}

// Publish contains S3-compatible upload settings for finished videos.
type Publish struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Config encapsulates all configuration values for mixtape.
//
// Configuration sections by subsystem:
//   - Paths: working, output, log, state, and input directories
//   - Batch: variant count, output name template, failure policy
//   - Lyrics: discovery, decoding, classification thresholds, styling
//   - Encoder: ffmpeg binaries and encode settings
//   - Progress: event queue sizing
//   - Logging: log format, level, and rotation
//   - Notifications: ntfy and redis pub/sub
//   - Publish: optional upload of finished videos
type Config struct {
	Paths         Paths         `toml:"paths"`
	Batch         Batch         `toml:"batch"`
	Lyrics        Lyrics        `toml:"lyrics"`
	Encoder       Encoder       `toml:"encoder"`
	Progress      Progress      `toml:"progress"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Publish       Publish       `toml:"publish"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mixtape/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory or
// next to the config file is loaded first; variables already set in the
// environment are never overwritten.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(".env", filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(paths ...string) error {
	seen := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mixtape.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a batch run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for every transcode stage.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Encoder.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for metadata inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Encoder.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// HistoryPath returns the sqlite database that records batch runs.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// CancelGrace returns how long a cancelled ffmpeg process may take to exit
// before it is killed.
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.Encoder.CancelGraceSeconds) * time.Second
}

// ProgressPollInterval returns the relay polling cadence.
func (c *Config) ProgressPollInterval() time.Duration {
	return time.Duration(c.Progress.PollIntervalMS) * time.Millisecond
}

// ContinueOnFailure reports whether a failed job lets the batch move on.
func (c *Config) ContinueOnFailure() bool {
	return c.Batch.OnFailure == FailurePolicyContinue
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
