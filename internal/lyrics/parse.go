package lyrics

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// [mm:ss.cc], [mm:ss:cc], [mm:ss], and (mm:ss).
	timeTagPattern = regexp.MustCompile(`\[(\d{1,3}):(\d{1,2})(?:[.:](\d{1,3}))?\]|\((\d{1,3}):(\d{1,2})\)`)
	offsetPattern  = regexp.MustCompile(`(?i)^\s*\[offset:\s*([+-]?\d+)\s*\]\s*$`)
	// Enhanced LRC word timings, e.g. <00:12.34>.
	wordTagPattern = regexp.MustCompile(`<\d{1,3}:\d{1,2}(?:[.:]\d{1,3})?>`)
)

// RelativeCue is one lyric line at a time relative to the start of its track.
type RelativeCue struct {
	Time float64
	Text string
}

// Document is the parsed form of one lyric source.
type Document struct {
	Cues []RelativeCue
	// TaggedLines counts lines carrying at least one time tag, including
	// tagged lines whose text is empty.
	TaggedLines int
	// ContentLines counts non-blank lines.
	ContentLines int
	// OffsetMS is the [offset:] header value; positive values show lyrics earlier.
	OffsetMS int
}

// TaggedRatio is TaggedLines over ContentLines, or 0 for empty content.
func (d Document) TaggedRatio() float64 {
	if d.ContentLines == 0 {
		return 0
	}
	return float64(d.TaggedLines) / float64(d.ContentLines)
}

// lineEndings folds CRLF and bare CR into LF.
var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Parse extracts time-tagged cues. Every tag on a line yields a cue with the
// line's text; lines without a usable tag are discarded. The offset header,
// when present, is already applied to the returned times. Cues are sorted by
// time, keeping source order for equal times.
func Parse(content string) Document {
	var doc Document
	content = lineEndings.Replace(content)
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		doc.ContentLines++

		if m := offsetPattern.FindStringSubmatch(line); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				doc.OffsetMS = v
			}
			continue
		}

		matches := timeTagPattern.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 {
			continue
		}
		doc.TaggedLines++

		text := stripSpans(line, matches)
		text = strings.TrimSpace(wordTagPattern.ReplaceAllString(text, ""))
		if text == "" {
			continue
		}
		for _, loc := range matches {
			doc.Cues = append(doc.Cues, RelativeCue{Time: tagSeconds(line, loc), Text: text})
		}
	}

	if doc.OffsetMS != 0 {
		shift := float64(doc.OffsetMS) / 1000
		for i := range doc.Cues {
			doc.Cues[i].Time = math.Max(0, doc.Cues[i].Time-shift)
		}
	}
	sort.SliceStable(doc.Cues, func(i, j int) bool { return doc.Cues[i].Time < doc.Cues[j].Time })
	return doc
}

func stripSpans(line string, spans [][]int) string {
	var b strings.Builder
	prev := 0
	for _, loc := range spans {
		b.WriteString(line[prev:loc[0]])
		prev = loc[1]
	}
	b.WriteString(line[prev:])
	return b.String()
}

// tagSeconds converts one submatch location set into seconds. Groups 1-3 hold
// the bracket form, groups 4-5 the parenthesis form.
func tagSeconds(line string, loc []int) float64 {
	group := func(n int) string {
		if loc[2*n] < 0 {
			return ""
		}
		return line[loc[2*n]:loc[2*n+1]]
	}
	minutes, seconds, fraction := group(1), group(2), group(3)
	if minutes == "" {
		minutes, seconds = group(4), group(5)
	}
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	total := float64(m*60 + s)
	if fraction != "" {
		f, _ := strconv.Atoi(fraction)
		total += float64(f) / math.Pow10(len(fraction))
	}
	return total
}

// Classifier decides whether parsed content is really lyrics.
type Classifier struct {
	MinTaggedLines int
	MinTaggedRatio float64
	// MinChars is the minimum number of non-space characters in the content.
	MinChars int
}

// DefaultClassifier rejects content with fewer than 6 tagged lines and a
// tagged ratio below 30%.
func DefaultClassifier() Classifier {
	return Classifier{MinTaggedLines: 6, MinTaggedRatio: 0.3, MinChars: 10}
}

// IsLyrics applies the classification heuristic. Content is rejected only
// when both the tagged-line count and the tagged ratio fall short.
func (c Classifier) IsLyrics(content string, doc Document) bool {
	if countNonSpace(content) < c.MinChars {
		return false
	}
	if doc.TaggedLines == 0 {
		return false
	}
	if doc.TaggedLines < c.MinTaggedLines && doc.TaggedRatio() < c.MinTaggedRatio {
		return false
	}
	return true
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			n++
		}
	}
	return n
}
