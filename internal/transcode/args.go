package transcode

import (
	"fmt"
	"strconv"
	"strings"

	"mixtape/internal/deps"
)

// Work-directory artifact names. Stages that run inside the work directory
// refer to them relatively.
const (
	concatListName = "concat.txt"
	combinedName   = "combined.mp3"
	subtitlesName  = "lyrics.srt"
	videoName      = "video.mp4"
	finalName      = "final.mp4"
)

// Settings are the encode parameters shared by every job of a batch.
type Settings struct {
	FFmpeg       string
	Encoder      deps.Encoder
	AudioBitrate string
	SampleRate   int
	Channels     int
	FontSize     int
}

func normalizedName(index int) string {
	return fmt.Sprintf("norm_%d.mp3", index)
}

func (s Settings) normalizeArgs(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-i", src,
		"-vn",
		"-ar", strconv.Itoa(s.SampleRate),
		"-ac", strconv.Itoa(s.Channels),
		"-b:a", s.AudioBitrate,
		"-y", dst,
	}
}

func concatArgs(list, dst string) []string {
	return []string{
		"-hide_banner",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c:a", "libmp3lame",
		"-q:a", "4",
		"-y", dst,
	}
}

// videoArgs builds the still-image encode. With burn set the subtitle file
// in the working directory is rendered into the picture.
func (s Settings) videoArgs(image, audio string, burn bool, dst string) []string {
	args := []string{
		"-hide_banner",
		"-loop", "1",
		"-i", image,
		"-i", audio,
	}
	if burn {
		args = append(args, "-vf", fmt.Sprintf("subtitles=%s:force_style='FontSize=%d'", subtitlesName, s.FontSize))
	}
	args = append(args,
		"-c:v", s.Encoder.Codec,
		"-preset", s.Encoder.Preset,
		s.Encoder.QualityFlag(), strconv.Itoa(s.Encoder.Quality),
		"-c:a", "aac",
		"-b:a", s.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-y", dst,
	)
	return args
}

func remuxArgs(src, dst string) []string {
	return []string{"-hide_banner", "-i", src, "-c", "copy", "-y", dst}
}

// concatList renders an ffmpeg concat demuxer list.
func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}
