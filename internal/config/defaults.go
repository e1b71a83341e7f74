package config

const (
	defaultWorkDir            = "~/.local/share/mixtape/work"
	defaultOutputDir          = "~/Videos/mixtape"
	defaultLogDir             = "~/.local/share/mixtape/logs"
	defaultStateDir           = "~/.local/share/mixtape"
	defaultOutputName         = "output"
	defaultBatchCount         = 1
	defaultMaxShuffleAttempts = 100
	defaultFontSize           = 24
	defaultLastCueHold        = 5.0
	defaultMinTaggedLines     = 6
	defaultMinTaggedRatio     = 0.3
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultVideoCodec         = "auto"
	defaultCRF                = 23
	defaultAudioBitrate       = "192k"
	defaultSampleRate         = 44100
	defaultChannels           = 2
	defaultCancelGraceSeconds = 5
	defaultQueueSize          = 256
	defaultPollIntervalMS     = 100
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = 20
	defaultLogMaxBackups      = 5
	defaultLogMaxAgeDays      = 30
	defaultRedisChannel       = "mixtape:events"
	defaultPublishPrefix      = "mixtape"
)

// Failure policies for [batch] on_failure.
const (
	FailurePolicyStop     = "stop"
	FailurePolicyContinue = "continue"
)

// Video codec choices for [encoder] video_codec.
const (
	VideoCodecAuto  = "auto"
	VideoCodecX264  = "libx264"
	VideoCodecNVENC = "h264_nvenc"
)

// DefaultEncodings is the lyric decoder order: UTF-8 first, then regional
// 8-bit encodings, ending with latin1 which never fails.
func DefaultEncodings() []string {
	return []string{"utf-8", "gbk", "big5", "latin1"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Batch: Batch{
			Count:              defaultBatchCount,
			OutputName:         defaultOutputName,
			OnFailure:          FailurePolicyStop,
			MaxShuffleAttempts: defaultMaxShuffleAttempts,
		},
		Lyrics: Lyrics{
			Enabled:            true,
			FontSize:           defaultFontSize,
			LastCueHoldSeconds: defaultLastCueHold,
			Encodings:          DefaultEncodings(),
			MinTaggedLines:     defaultMinTaggedLines,
			MinTaggedRatio:     defaultMinTaggedRatio,
		},
		Encoder: Encoder{
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			VideoCodec:         defaultVideoCodec,
			CRF:                defaultCRF,
			AudioBitrate:       defaultAudioBitrate,
			SampleRate:         defaultSampleRate,
			Channels:           defaultChannels,
			CancelGraceSeconds: defaultCancelGraceSeconds,
		},
		Progress: Progress{
			QueueSize:      defaultQueueSize,
			PollIntervalMS: defaultPollIntervalMS,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			RedisChannel:   defaultRedisChannel,
		},
		Publish: Publish{
			Prefix: defaultPublishPrefix,
			UseSSL: true,
		},
	}
}
