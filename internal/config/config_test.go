package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mixtape/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "mixtape", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Batch.OnFailure != config.FailurePolicyStop {
		t.Fatalf("expected stop policy by default, got %q", cfg.Batch.OnFailure)
	}
	if cfg.ContinueOnFailure() {
		t.Fatal("expected ContinueOnFailure false by default")
	}
	if cfg.Batch.MaxShuffleAttempts != 100 {
		t.Fatalf("unexpected shuffle attempts: %d", cfg.Batch.MaxShuffleAttempts)
	}
	if got := strings.Join(cfg.Lyrics.Encodings, ","); got != "utf-8,gbk,big5,latin1" {
		t.Fatalf("unexpected encodings: %s", got)
	}
	if cfg.CancelGrace().Seconds() != 5 {
		t.Fatalf("unexpected cancel grace: %v", cfg.CancelGrace())
	}
	if cfg.HistoryPath() != filepath.Join(tempHome, ".local", "share", "mixtape", "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "mixtape.toml")

	type payload struct {
		Batch struct {
			Count      int    `toml:"count"`
			OutputName string `toml:"output_name"`
			OnFailure  string `toml:"on_failure"`
		} `toml:"batch"`
		Encoder struct {
			VideoCodec string `toml:"video_codec"`
		} `toml:"encoder"`
	}
	custom := payload{}
	custom.Batch.Count = 4
	custom.Batch.OutputName = " mix "
	custom.Batch.OnFailure = "Continue"
	custom.Encoder.VideoCodec = "libx264"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Batch.Count != 4 {
		t.Fatalf("expected count 4, got %d", cfg.Batch.Count)
	}
	if cfg.Batch.OutputName != "mix" {
		t.Fatalf("expected trimmed output name, got %q", cfg.Batch.OutputName)
	}
	if !cfg.ContinueOnFailure() {
		t.Fatal("expected continue policy from file")
	}
	if cfg.Encoder.VideoCodec != config.VideoCodecX264 {
		t.Fatalf("unexpected codec: %q", cfg.Encoder.VideoCodec)
	}
}

func TestDotEnvSuppliesSecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "mixtape.toml")
	sample := "[publish]\nenabled = true\nendpoint = \"minio.local:9000\"\nbucket = \"videos\"\n"
	if err := os.WriteFile(configPath, []byte(sample), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := "MINIO_ACCESS_KEY=from-dotenv\nMINIO_SECRET_KEY=secret\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("MINIO_ACCESS_KEY", "")
	os.Unsetenv("MINIO_ACCESS_KEY")
	t.Setenv("MINIO_SECRET_KEY", "from-env")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Publish.AccessKey != "from-dotenv" {
		t.Fatalf("expected access key from .env, got %q", cfg.Publish.AccessKey)
	}
	if cfg.Publish.SecretKey != "from-env" {
		t.Fatalf("expected existing env to win over .env, got %q", cfg.Publish.SecretKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"count", func(c *config.Config) { c.Batch.Count = 0 }, "batch.count"},
		{"policy", func(c *config.Config) { c.Batch.OnFailure = "retry" }, "batch.on_failure"},
		{"codec", func(c *config.Config) { c.Encoder.VideoCodec = "hevc" }, "encoder.video_codec"},
		{"ratio", func(c *config.Config) { c.Lyrics.MinTaggedRatio = 2 }, "lyrics.min_tagged_ratio"},
		{"publish", func(c *config.Config) { c.Publish.Enabled = true }, "publish.endpoint"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestEnvOverridesFFmpegBinary(t *testing.T) {
	t.Setenv("MIXTAPE_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.FFmpegBinary())
	}
	if cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected ffprobe binary: %q", cfg.FFprobeBinary())
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load: exists=%v err=%v", exists, err)
	}
}
