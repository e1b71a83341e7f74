package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLyrics(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Count < 1 {
		return errors.New("batch.count must be at least 1")
	}
	switch c.Batch.OnFailure {
	case FailurePolicyStop, FailurePolicyContinue:
	default:
		return fmt.Errorf("batch.on_failure: unsupported value %q (use %q or %q)", c.Batch.OnFailure, FailurePolicyStop, FailurePolicyContinue)
	}
	return nil
}

func (c *Config) validateLyrics() error {
	if c.Lyrics.MinTaggedLines < 0 {
		return errors.New("lyrics.min_tagged_lines must be >= 0")
	}
	if c.Lyrics.MinTaggedRatio < 0 || c.Lyrics.MinTaggedRatio > 1 {
		return errors.New("lyrics.min_tagged_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.VideoCodec {
	case VideoCodecAuto, VideoCodecX264, VideoCodecNVENC:
	default:
		return fmt.Errorf("encoder.video_codec: unsupported value %q", c.Encoder.VideoCodec)
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.Endpoint == "" {
		return errors.New("publish.endpoint must be set when publish.enabled is true")
	}
	if c.Publish.Bucket == "" {
		return errors.New("publish.bucket must be set when publish.enabled is true")
	}
	if c.Publish.AccessKey == "" || c.Publish.SecretKey == "" {
		return errors.New("publish.access_key and publish.secret_key must be set (or MINIO_ACCESS_KEY/MINIO_SECRET_KEY) when publish.enabled is true")
	}
	return nil
}
