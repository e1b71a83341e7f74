package lyrics

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"mixtape/internal/logging"
	"mixtape/internal/timeline"
)

// SkipReason explains why a track contributed no cues.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipDisabled   SkipReason = "disabled"
	SkipNoSource   SkipReason = "no_source"
	SkipUnreadable SkipReason = "unreadable"
	SkipNotLyrics  SkipReason = "not_lyrics"
	SkipNoCues     SkipReason = "no_cues"
)

// Contribution is the per-track outcome of synchronization: either cues or a
// skip reason, never both.
type Contribution struct {
	// Index is the track's position in the timeline.
	Index    int
	Source   string
	Encoding string
	Cues     []Cue
	Skip     SkipReason
	Err      error
}

// Skipped reports whether the track contributed nothing.
func (c Contribution) Skipped() bool {
	return c.Skip != SkipNone
}

// Options configures a Synchronizer.
type Options struct {
	Enabled    bool
	Decoders   DecoderChain
	Classifier Classifier
	// LastCueHold is how long the final cue of a track stays on screen, in seconds.
	LastCueHold float64
	Transform   TextTransform
}

// source is the decoded and parsed form of one lyric file, independent of
// where its track lands on a timeline.
type source struct {
	encoding string
	doc      Document
	skip     SkipReason
	err      error
}

// Synchronizer builds subtitle tracks for timelines. Lyric files are read
// and parsed once per Synchronizer, so reusing one across the orderings of a
// batch only pays the decode cost once per file.
type Synchronizer struct {
	opts     Options
	logger   *zap.Logger
	readFile func(string) ([]byte, error)

	mu    sync.Mutex
	cache map[string]source
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(opts Options, logger *zap.Logger) *Synchronizer {
	if opts.LastCueHold <= 0 {
		opts.LastCueHold = 5
	}
	if len(opts.Decoders.decoders) == 0 {
		opts.Decoders, _ = NewDecoderChain(defaultEncodings)
	}
	if opts.Classifier == (Classifier{}) {
		opts.Classifier = DefaultClassifier()
	}
	return &Synchronizer{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "lyrics"),
		readFile: os.ReadFile,
		cache:    make(map[string]source),
	}
}

// Synchronize places every track's lyrics on the timeline and merges them in
// timeline order. Tracks occupy disjoint intervals, so concatenation keeps
// the merged cues sorted.
func (s *Synchronizer) Synchronize(tl timeline.Timeline) (SubtitleTrack, []Contribution) {
	contributions := make([]Contribution, len(tl.Entries))
	var merged SubtitleTrack
	for i, entry := range tl.Entries {
		c := s.contribute(i, entry)
		contributions[i] = c
		merged.Cues = append(merged.Cues, c.Cues...)
	}
	return merged, contributions
}

func (s *Synchronizer) contribute(index int, entry timeline.Entry) Contribution {
	c := Contribution{Index: index, Source: entry.Track.LyricsSource}
	if !s.opts.Enabled {
		c.Skip = SkipDisabled
		return c
	}
	if c.Source == "" {
		c.Skip = SkipNoSource
		return c
	}

	src := s.load(c.Source)
	c.Encoding = src.encoding
	if src.skip != SkipNone {
		c.Skip = src.skip
		c.Err = src.err
		return c
	}

	c.Cues = Place(entry, src.doc.Cues, s.opts.LastCueHold, s.opts.Transform)
	if len(c.Cues) == 0 {
		c.Skip = SkipNoCues
	}
	return c
}

func (s *Synchronizer) load(path string) source {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.cache[path]; ok {
		return src
	}
	src := s.read(path)
	s.cache[path] = src
	return src
}

func (s *Synchronizer) read(path string) source {
	data, err := s.readFile(path)
	if err != nil {
		logging.WarnWithContext(s.logger, "lyric file unreadable", "lyrics_skipped",
			zap.String("source", path),
			zap.Error(err),
			zap.String(logging.FieldImpact, "track will have no subtitles"),
			zap.String(logging.FieldErrorHint, "check file permissions"),
		)
		return source{skip: SkipUnreadable, err: fmt.Errorf("read lyrics: %w", err)}
	}
	text, encoding := s.opts.Decoders.Decode(data)
	doc := Parse(text)
	if !s.opts.Classifier.IsLyrics(text, doc) {
		s.logger.Info("lyric file rejected",
			append(logging.DecisionFields("lyrics_classification", "not_lyrics",
				fmt.Sprintf("%d tagged of %d lines", doc.TaggedLines, doc.ContentLines)),
				zap.String("source", path),
				zap.String("encoding", encoding),
			)...,
		)
		return source{encoding: encoding, doc: doc, skip: SkipNotLyrics}
	}
	s.logger.Debug("lyric file parsed",
		zap.String("source", path),
		zap.String("encoding", encoding),
		zap.Int("cues", len(doc.Cues)),
	)
	return source{encoding: encoding, doc: doc}
}

// Place shifts track-relative cues onto the timeline. A cue ends where the
// next later cue starts, or hold seconds after it starts when it is the last
// one, and never past the entry's end. Cues starting at or after the track's
// length are dropped. rel must be sorted by time.
func Place(entry timeline.Entry, rel []RelativeCue, hold float64, transform TextTransform) []Cue {
	width := entry.Duration()
	out := make([]Cue, 0, len(rel))
	for i, c := range rel {
		if c.Time < 0 || c.Time >= width {
			continue
		}
		start := entry.Start + c.Time
		end := start + hold
		for j := i + 1; j < len(rel); j++ {
			if rel[j].Time > c.Time {
				end = entry.Start + rel[j].Time
				break
			}
		}
		if end > entry.End {
			end = entry.End
		}
		if end <= start {
			continue
		}
		text := c.Text
		if transform != nil {
			text = transform(text)
		}
		out = append(out, Cue{Start: start, End: end, Text: text})
	}
	return out
}

// Inspection is the decoded and classified view of one lyric file.
type Inspection struct {
	Source   string
	Encoding string
	Document Document
	Skip     SkipReason
	Err      error
}

// Inspect reads path the way Synchronize would, bypassing the cache.
func (s *Synchronizer) Inspect(path string) Inspection {
	src := s.read(path)
	return Inspection{Source: path, Encoding: src.encoding, Document: src.doc, Skip: src.skip, Err: src.err}
}
