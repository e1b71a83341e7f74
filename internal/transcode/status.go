package transcode

import (
	"regexp"
	"strconv"
	"strings"
)

var elapsedPattern = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseElapsed returns the last time= marker on an ffmpeg status line, in
// seconds.
func ParseElapsed(line string) (float64, bool) {
	matches := elapsedPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	m := matches[len(matches)-1]
	hours, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(hours*3600+minutes*60) + seconds, true
}

// Fraction maps elapsed seconds onto [0,1] against the expected duration.
// Without an expected duration there is nothing to measure and 0 is
// returned until the stage completes.
func Fraction(elapsed, expected float64) float64 {
	if expected <= 0 || elapsed <= 0 {
		return 0
	}
	f := elapsed / expected
	if f > 1 {
		return 1
	}
	return f
}

const diagnosticLines = 20

// tail keeps the last few non-progress stderr lines for failure reports.
type tail struct {
	lines []string
	limit int
}

func newTail(limit int) *tail {
	return &tail{limit: limit}
}

func (t *tail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(t.lines) == t.limit {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.limit-1]
	}
	t.lines = append(t.lines, line)
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}
