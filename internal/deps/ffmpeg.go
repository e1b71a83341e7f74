package deps

import (
	"context"
	"os/exec"
	"strings"

	"mixtape/internal/config"
)

const (
	presetX264  = "medium"
	presetNVENC = "p7"
)

// Encoder is the H.264 encoder and preset used for the still-image video.
type Encoder struct {
	Codec  string
	Preset string
	// Quality is passed as -crf for libx264 and -cq for NVENC.
	Quality int
}

// GPU reports whether the encoder runs on an NVIDIA GPU.
func (e Encoder) GPU() bool {
	return e.Codec == config.VideoCodecNVENC
}

// QualityFlag returns the rate-control flag matching the codec.
func (e Encoder) QualityFlag() string {
	if e.GPU() {
		return "-cq"
	}
	return "-crf"
}

type encoderLister func(ctx context.Context, binary string) (string, error)

func listEncoders(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
	return string(out), err
}

// DetectEncoder chooses the video encoder for cfg. An explicit
// encoder.video_codec wins; "auto" probes ffmpeg for h264_nvenc and falls
// back to libx264 when the probe fails or NVENC is absent.
func DetectEncoder(ctx context.Context, cfg *config.Config) Encoder {
	return detectEncoder(ctx, cfg, listEncoders)
}

func detectEncoder(ctx context.Context, cfg *config.Config, list encoderLister) Encoder {
	codec := cfg.Encoder.VideoCodec
	if codec == "" || codec == config.VideoCodecAuto {
		codec = config.VideoCodecX264
		if out, err := list(ctx, cfg.FFmpegBinary()); err == nil && hasEncoder(out, config.VideoCodecNVENC) {
			codec = config.VideoCodecNVENC
		}
	}
	enc := Encoder{Codec: codec, Preset: cfg.Encoder.Preset, Quality: cfg.Encoder.CRF}
	if enc.Preset == "" {
		enc.Preset = presetX264
		if enc.GPU() {
			enc.Preset = presetNVENC
		}
	}
	return enc
}

// hasEncoder scans `ffmpeg -encoders` output for an encoder name column.
func hasEncoder(listing, name string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}
