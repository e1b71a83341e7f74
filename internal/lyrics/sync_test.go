package lyrics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"mixtape/internal/config"
	"mixtape/internal/logging"
	"mixtape/internal/timeline"
	"mixtape/internal/testsupport"
	"mixtape/internal/tracks"
)

const threeCueLRC = "[ar:Someone]\n[00:00.00]first line\n[00:05.00]second line\n[00:10.00]third line\n"

func writeLRC(t *testing.T, dir, name, content string) string {
	t.Helper()
	return testsupport.WriteText(t, filepath.Join(dir, name), content)
}

func newSync(t *testing.T) *Synchronizer {
	t.Helper()
	return NewSynchronizer(Options{Enabled: true, Decoders: mustChain(t, "utf-8", "gbk", "big5", "latin1"), Classifier: DefaultClassifier(), LastCueHold: 5}, logging.NewNop())
}

func TestSynchronizeShiftsByStartOffset(t *testing.T) {
	dir := t.TempDir()
	lrc := writeLRC(t, dir, "b.lrc", threeCueLRC)
	tl := timeline.Build([]tracks.Track{
		{Path: "a.mp3", Duration: 30},
		{Path: "b.mp3", Duration: 60, LyricsSource: lrc},
	})

	merged, contributions := newSync(t).Synchronize(tl)

	wantStarts := []float64{30, 35, 40}
	wantEnds := []float64{35, 40, 45}
	if len(merged.Cues) != 3 {
		t.Fatalf("expected 3 cues, got %+v", merged.Cues)
	}
	for i := range wantStarts {
		if merged.Cues[i].Start != wantStarts[i] || merged.Cues[i].End != wantEnds[i] {
			t.Fatalf("cue %d = %+v", i, merged.Cues[i])
		}
	}
	if contributions[0].Skip != SkipNoSource {
		t.Fatalf("track without lyrics should be skipped with no_source, got %q", contributions[0].Skip)
	}
	if contributions[1].Skipped() || contributions[1].Encoding != "utf-8" {
		t.Fatalf("unexpected contribution %+v", contributions[1])
	}
}

func TestLastCueClippedToTrackEnd(t *testing.T) {
	dir := t.TempDir()
	lrc := writeLRC(t, dir, "a.lrc", threeCueLRC+"[00:12.00]late line\n[00:20.00]past the end\n")
	tl := timeline.Build([]tracks.Track{
		{Path: "a.mp3", Duration: 14, LyricsSource: lrc},
		{Path: "b.mp3", Duration: 10},
	})

	merged, _ := newSync(t).Synchronize(tl)
	last := merged.Cues[len(merged.Cues)-1]
	if last.Text != "late line" {
		t.Fatalf("cue beyond the track should be dropped, last=%+v", last)
	}
	if last.End != 14 {
		t.Fatalf("expected end clipped to 14, got %v", last.End)
	}
}

func TestCuesStayInsideOwningTrack(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, "["+twoDigits(i/60)+":"+twoDigits(i%60)+".50]line "+twoDigits(i))
	}
	content := strings.Join(lines, "\n")
	list := []tracks.Track{
		{Path: "a.mp3", Duration: 12.3, LyricsSource: writeLRC(t, dir, "a.lrc", content)},
		{Path: "b.mp3", Duration: 0, LyricsSource: writeLRC(t, dir, "b.lrc", content)},
		{Path: "c.mp3", Duration: 25.75, LyricsSource: writeLRC(t, dir, "c.lrc", content)},
		{Path: "d.mp3", Duration: 3},
	}
	tl := timeline.Build(list)
	merged, contributions := newSync(t).Synchronize(tl)

	if contributions[1].Skip != SkipNoCues {
		t.Fatalf("zero-width track should contribute no cues, got %+v", contributions[1])
	}
	for _, c := range contributions {
		entry := tl.Entries[c.Index]
		for _, cue := range c.Cues {
			if cue.Start < entry.Start || cue.End > entry.End || cue.Start >= cue.End {
				t.Fatalf("cue %+v escapes [%v,%v)", cue, entry.Start, entry.End)
			}
			if cue.Text == "" {
				t.Fatal("empty cue text")
			}
		}
	}
	for i := 1; i < len(merged.Cues); i++ {
		if merged.Cues[i].Start < merged.Cues[i-1].Start {
			t.Fatalf("merged cues out of order at %d", i)
		}
	}
	if issues := Validate(merged, tl.Total); len(issues) != 0 {
		t.Fatalf("unexpected validation issues: %v", issues)
	}
}

func twoDigits(n int) string {
	s := "0" + string(rune('0'+n%10))
	if n >= 10 {
		s = string(rune('0'+n/10)) + string(rune('0'+n%10))
	}
	return s
}

func TestSkipsDoNotAffectOtherTracks(t *testing.T) {
	dir := t.TempDir()
	good := writeLRC(t, dir, "good.lrc", threeCueLRC)
	prose := writeLRC(t, dir, "prose.lrc", "[00:01]one tag\n"+strings.Repeat("liner notes text\n", 20))
	list := []tracks.Track{
		{Path: "a.mp3", Duration: 20, LyricsSource: filepath.Join(dir, "missing.lrc")},
		{Path: "b.mp3", Duration: 20, LyricsSource: prose},
		{Path: "c.mp3", Duration: 20, LyricsSource: good},
	}
	merged, contributions := newSync(t).Synchronize(timeline.Build(list))

	if contributions[0].Skip != SkipUnreadable || contributions[0].Err == nil {
		t.Fatalf("expected unreadable skip, got %+v", contributions[0])
	}
	if contributions[1].Skip != SkipNotLyrics {
		t.Fatalf("expected not_lyrics skip, got %+v", contributions[1])
	}
	if len(merged.Cues) != 3 || merged.Cues[0].Start != 40 {
		t.Fatalf("expected third track cues starting at 40, got %+v", merged.Cues)
	}
}

func TestDisabledSkipsEverything(t *testing.T) {
	dir := t.TempDir()
	s := NewSynchronizer(Options{Enabled: false}, logging.NewNop())
	merged, contributions := s.Synchronize(timeline.Build([]tracks.Track{{Path: "a.mp3", Duration: 20, LyricsSource: writeLRC(t, dir, "a.lrc", threeCueLRC)}}))
	if !merged.Empty() || contributions[0].Skip != SkipDisabled {
		t.Fatalf("expected disabled skip, got %+v", contributions[0])
	}
}

func TestSynchronizeIsIdempotentAndCachesReads(t *testing.T) {
	dir := t.TempDir()
	lrc := writeLRC(t, dir, "a.lrc", threeCueLRC)
	list := []tracks.Track{
		{Path: "x.mp3", Duration: 7},
		{Path: "a.mp3", Duration: 20, LyricsSource: lrc},
	}
	s := newSync(t)
	reads := 0
	s.readFile = func(path string) ([]byte, error) {
		reads++
		return os.ReadFile(path)
	}

	tl1 := timeline.Build(list)
	tl2 := timeline.Build(list)
	if !reflect.DeepEqual(tl1, tl2) {
		t.Fatal("timelines differ")
	}
	first, _ := s.Synchronize(tl1)
	second, _ := s.Synchronize(tl2)
	if !bytes.Equal(FormatSRT(first), FormatSRT(second)) {
		t.Fatal("expected byte-identical subtitle output")
	}
	if reads != 1 {
		t.Fatalf("expected a single read, got %d", reads)
	}

	fresh, _ := newSync(t).Synchronize(tl1)
	if !bytes.Equal(FormatSRT(first), FormatSRT(fresh)) {
		t.Fatal("expected identical output from a fresh synchronizer")
	}
}

func TestTransformAppliedToText(t *testing.T) {
	entry := timeline.Entry{Start: 0, End: 10}
	cues := Place(entry, []RelativeCue{{Time: 1, Text: "abc"}}, 5, strings.ToUpper)
	if len(cues) != 1 || cues[0].Text != "ABC" || cues[0].End != 6 {
		t.Fatalf("unexpected cues %+v", cues)
	}
}

func TestPlaceSameTimeCuesShareEnd(t *testing.T) {
	entry := timeline.Entry{Start: 100, End: 200}
	cues := Place(entry, []RelativeCue{{1, "a"}, {1, "b"}, {4, "c"}}, 5, nil)
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %+v", cues)
	}
	if cues[0].End != 104 || cues[1].End != 104 || cues[2].End != 109 {
		t.Fatalf("unexpected ends %+v", cues)
	}
}

func TestUnreadableErrorIsWrapped(t *testing.T) {
	s := newSync(t)
	sentinel := errors.New("denied")
	s.readFile = func(string) ([]byte, error) { return nil, sentinel }
	_, contributions := s.Synchronize(timeline.Build([]tracks.Track{{Path: "a.mp3", Duration: 5, LyricsSource: "a.lrc"}}))
	if !errors.Is(contributions[0].Err, sentinel) {
		t.Fatalf("expected wrapped read error, got %v", contributions[0].Err)
	}
}

func TestInspectReportsClassification(t *testing.T) {
	dir := t.TempDir()
	s := newSync(t)

	good := s.Inspect(writeLRC(t, dir, "good.lrc", strings.Repeat(threeCueLRC, 3)))
	if good.Skip != SkipNone || good.Encoding != "utf-8" || len(good.Document.Cues) != 9 {
		t.Fatalf("unexpected inspection %+v", good)
	}

	prose := s.Inspect(writeLRC(t, dir, "notes.txt", "just some notes\nwith no timing at all\nthird line\nfourth line\nfifth line\n[00:01.00]one tag\n"))
	if prose.Skip != SkipNotLyrics {
		t.Fatalf("expected not_lyrics, got %q", prose.Skip)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Lyrics.Encodings = []string{"utf-8", "latin1"}
	cfg.Lyrics.MinTaggedLines = 3
	cfg.Lyrics.TraditionalToSimplified = true

	opts, err := OptionsFromConfig(&cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if !reflect.DeepEqual(opts.Decoders.Names(), []string{"utf-8", "latin1"}) {
		t.Fatalf("decoders = %v", opts.Decoders.Names())
	}
	if opts.Classifier.MinTaggedLines != 3 || opts.Classifier.MinChars != DefaultClassifier().MinChars {
		t.Fatalf("classifier = %+v", opts.Classifier)
	}
	if opts.Transform == nil {
		t.Fatal("expected t2s transform")
	}

	cfg.Lyrics.Encodings = []string{"klingon"}
	if _, err := OptionsFromConfig(&cfg); err == nil {
		t.Fatal("expected unknown encoding error")
	}
}
