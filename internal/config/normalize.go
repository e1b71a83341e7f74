package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBatch()
	c.normalizeLyrics()
	c.normalizeEncoder()
	c.normalizeProgress()
	c.normalizeNotifications()
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
	}{
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.music_dir", &c.Paths.MusicDir},
		{"paths.images_dir", &c.Paths.ImagesDir},
		{"paths.lyrics_dir", &c.Paths.LyricsDir},
	}
	for _, f := range fields {
		expanded, err := expandPath(strings.TrimSpace(*f.value))
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.value = expanded
	}
	return nil
}

func (c *Config) normalizeBatch() {
	c.Batch.OutputName = strings.TrimSpace(c.Batch.OutputName)
	if c.Batch.OutputName == "" {
		c.Batch.OutputName = defaultOutputName
	}
	c.Batch.OnFailure = strings.ToLower(strings.TrimSpace(c.Batch.OnFailure))
	if c.Batch.OnFailure == "" {
		c.Batch.OnFailure = FailurePolicyStop
	}
	if c.Batch.MaxShuffleAttempts <= 0 {
		c.Batch.MaxShuffleAttempts = defaultMaxShuffleAttempts
	}
}

func (c *Config) normalizeLyrics() {
	encodings := make([]string, 0, len(c.Lyrics.Encodings))
	for _, enc := range c.Lyrics.Encodings {
		if enc = strings.ToLower(strings.TrimSpace(enc)); enc != "" {
			encodings = append(encodings, enc)
		}
	}
	if len(encodings) == 0 {
		encodings = DefaultEncodings()
	}
	c.Lyrics.Encodings = encodings
	if c.Lyrics.LastCueHoldSeconds <= 0 {
		c.Lyrics.LastCueHoldSeconds = defaultLastCueHold
	}
	if c.Lyrics.FontSize <= 0 {
		c.Lyrics.FontSize = defaultFontSize
	}
}

func (c *Config) normalizeEncoder() {
	if c.Encoder.FFmpegBinary == "" || c.Encoder.FFmpegBinary == defaultFFmpegBinary {
		if value, ok := os.LookupEnv("MIXTAPE_FFMPEG"); ok && strings.TrimSpace(value) != "" {
			c.Encoder.FFmpegBinary = strings.TrimSpace(value)
		}
	}
	if c.Encoder.FFprobeBinary == "" || c.Encoder.FFprobeBinary == defaultFFprobeBinary {
		if value, ok := os.LookupEnv("MIXTAPE_FFPROBE"); ok && strings.TrimSpace(value) != "" {
			c.Encoder.FFprobeBinary = strings.TrimSpace(value)
		}
	}
	c.Encoder.VideoCodec = strings.ToLower(strings.TrimSpace(c.Encoder.VideoCodec))
	if c.Encoder.VideoCodec == "" {
		c.Encoder.VideoCodec = VideoCodecAuto
	}
	c.Encoder.Preset = strings.TrimSpace(c.Encoder.Preset)
	c.Encoder.AudioBitrate = strings.TrimSpace(c.Encoder.AudioBitrate)
	if c.Encoder.AudioBitrate == "" {
		c.Encoder.AudioBitrate = defaultAudioBitrate
	}
	if c.Encoder.SampleRate <= 0 {
		c.Encoder.SampleRate = defaultSampleRate
	}
	if c.Encoder.Channels <= 0 {
		c.Encoder.Channels = defaultChannels
	}
	if c.Encoder.CancelGraceSeconds <= 0 {
		c.Encoder.CancelGraceSeconds = defaultCancelGraceSeconds
	}
}

func (c *Config) normalizeProgress() {
	if c.Progress.QueueSize <= 0 {
		c.Progress.QueueSize = defaultQueueSize
	}
	if c.Progress.PollIntervalMS <= 0 {
		c.Progress.PollIntervalMS = defaultPollIntervalMS
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.RedisAddr = strings.TrimSpace(c.Notifications.RedisAddr)
	if c.Notifications.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Notifications.RedisPassword = strings.TrimSpace(value)
		}
	}
	c.Notifications.RedisChannel = strings.TrimSpace(c.Notifications.RedisChannel)
	if c.Notifications.RedisChannel == "" {
		c.Notifications.RedisChannel = defaultRedisChannel
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
}

func (c *Config) normalizePublish() {
	c.Publish.Endpoint = strings.TrimSpace(c.Publish.Endpoint)
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
	if value, ok := os.LookupEnv("MINIO_ACCESS_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Publish.AccessKey = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("MINIO_SECRET_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Publish.SecretKey = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
