package lyrics

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Cue is one subtitle line on the merged timeline, in seconds.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// SubtitleTrack is the merged, start-ordered cue list for one timeline.
type SubtitleTrack struct {
	Cues []Cue
}

// Empty reports whether there is nothing to burn in.
func (s SubtitleTrack) Empty() bool {
	return len(s.Cues) == 0
}

// FormatSRT serializes the track as numbered SRT entries.
func FormatSRT(track SubtitleTrack) []byte {
	var b strings.Builder
	for i, cue := range track.Cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text)
	}
	return []byte(b.String())
}

// WriteSRT writes the serialized track to path.
func WriteSRT(path string, track SubtitleTrack) error {
	if err := os.WriteFile(path, FormatSRT(track), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, rounding to the nearest
// millisecond.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	msTotal := int64(math.Round(seconds * 1000))
	hours := msTotal / 3_600_000
	msTotal %= 3_600_000
	minutes := msTotal / 60_000
	msTotal %= 60_000
	secs := msTotal / 1_000
	millis := msTotal % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// ParseTimestamp reads an HH:MM:SS,mmm value (a period separator is accepted).
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// ParseSRT reads serialized SRT content back into cues.
func ParseSRT(data []byte) (SubtitleTrack, error) {
	var track SubtitleTrack
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		startText, endText, ok := strings.Cut(lines[1], "-->")
		if !ok {
			return SubtitleTrack{}, fmt.Errorf("srt entry %q: missing arrow", lines[0])
		}
		start, err := ParseTimestamp(startText)
		if err != nil {
			return SubtitleTrack{}, err
		}
		end, err := ParseTimestamp(endText)
		if err != nil {
			return SubtitleTrack{}, err
		}
		track.Cues = append(track.Cues, Cue{Start: start, End: end, Text: strings.Join(lines[2:], "\n")})
	}
	return track, nil
}

// Validate reports structural problems in a subtitle track destined for a
// video of the given length. An empty slice means the track is usable.
func Validate(track SubtitleTrack, videoSeconds float64) []string {
	var issues []string
	prevStart := math.Inf(-1)
	for i, cue := range track.Cues {
		if cue.End <= cue.Start {
			issues = append(issues, fmt.Sprintf("cue %d: non_positive_duration", i+1))
		}
		if cue.Start < prevStart {
			issues = append(issues, fmt.Sprintf("cue %d: out_of_order", i+1))
		}
		if strings.TrimSpace(cue.Text) == "" {
			issues = append(issues, fmt.Sprintf("cue %d: empty_text", i+1))
		}
		if videoSeconds > 0 && cue.End > videoSeconds+0.001 {
			issues = append(issues, fmt.Sprintf("cue %d: ends_after_video", i+1))
		}
		prevStart = cue.Start
	}
	return issues
}
