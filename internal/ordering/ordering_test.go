package ordering

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"mixtape/internal/tracks"
)

func makeTracks(names ...string) []tracks.Track {
	out := make([]tracks.Track, len(names))
	for i, n := range names {
		out[i] = tracks.Track{Path: "/music/" + n + ".mp3", Duration: 10}
	}
	return out
}

func seeded(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func drain(t *testing.T, g *Generator) []Ordering {
	t.Helper()
	var out []Ordering
	for {
		o, err := g.Next()
		if errors.Is(err, ErrExhausted) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, o)
	}
}

func TestFirstVariantIsOriginalOrder(t *testing.T) {
	list := makeTracks("a", "b", "c", "d")
	g := NewGenerator(list, 3, seeded(1))
	first, err := g.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Variant != 1 || !reflect.DeepEqual(first.Tracks, list) {
		t.Fatalf("expected original order first, got %+v", first)
	}
}

func TestSingleTrackClampsToOne(t *testing.T) {
	g := NewGenerator(makeTracks("solo"), 4)
	got := drain(t, g)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 ordering, got %d", len(got))
	}
	if g.Effective() != 1 || g.Shortfall() != 3 {
		t.Fatalf("effective=%d shortfall=%d", g.Effective(), g.Shortfall())
	}
}

func TestTwoTracksYieldOriginalThenReverse(t *testing.T) {
	list := makeTracks("a", "b")
	g := NewGenerator(list, 5)
	got := drain(t, g)
	if len(got) != 2 {
		t.Fatalf("expected 2 orderings, got %d", len(got))
	}
	if got[1].Tracks[0].Path != list[1].Path || got[1].Tracks[1].Path != list[0].Path {
		t.Fatalf("expected reverse second, got %+v", got[1].Tracks)
	}
	if g.Shortfall() != 3 {
		t.Fatalf("expected shortfall 3, got %d", g.Shortfall())
	}
}

func TestTwoIdenticalTracksStopAfterOne(t *testing.T) {
	list := []tracks.Track{{Path: "/x.mp3"}, {Path: "/x.mp3"}}
	g := NewGenerator(list, 2)
	if got := drain(t, g); len(got) != 1 {
		t.Fatalf("expected 1 ordering, got %d", len(got))
	}
	if g.Shortfall() != 1 {
		t.Fatalf("expected shortfall 1, got %d", g.Shortfall())
	}
}

func TestThreeTracksClampToFactorialAndStayUnique(t *testing.T) {
	list := makeTracks("a", "b", "c")
	g := NewGenerator(list, 10, seeded(7), WithMaxAttempts(10_000))
	if g.Effective() != 6 {
		t.Fatalf("expected effective 6, got %d", g.Effective())
	}
	got := drain(t, g)
	if len(got) != 6 {
		t.Fatalf("expected all 6 permutations with a generous ceiling, got %d", len(got))
	}
	seen := map[string]bool{}
	for i, o := range got {
		if seen[o.Fingerprint] {
			t.Fatalf("duplicate fingerprint at variant %d", i+1)
		}
		seen[o.Fingerprint] = true
		if o.Fingerprint != Fingerprint(o.Tracks) {
			t.Fatal("fingerprint does not match tracks")
		}
		if o.Variant != i+1 {
			t.Fatalf("variant numbering off: %d at %d", o.Variant, i)
		}
	}
}

func TestExhaustionIsReportedAsShortfall(t *testing.T) {
	list := makeTracks("a", "b", "c")
	g := NewGenerator(list, 6, seeded(3), WithMaxAttempts(1))
	got := drain(t, g)
	if len(got) == 0 {
		t.Fatal("expected at least the original ordering")
	}
	if g.Effective() != len(got) || g.Produced() != len(got) {
		t.Fatalf("effective=%d produced=%d len=%d", g.Effective(), g.Produced(), len(got))
	}
	if g.Shortfall() != 6-len(got) {
		t.Fatalf("shortfall=%d", g.Shortfall())
	}
	if _, err := g.Next(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected exhausted to be sticky, got %v", err)
	}
}

func TestFingerprintDependsOnOrder(t *testing.T) {
	ab := makeTracks("a", "b")
	ba := makeTracks("b", "a")
	if Fingerprint(ab) == Fingerprint(ba) {
		t.Fatal("fingerprints must differ for different sequences")
	}
	joined := []tracks.Track{{Path: "ab"}, {Path: "c"}}
	split := []tracks.Track{{Path: "a"}, {Path: "bc"}}
	if Fingerprint(joined) == Fingerprint(split) {
		t.Fatal("fingerprints must not collide on path boundaries")
	}
}

func TestMaxDistinct(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 2, 3: 6, 5: 120, 10: 3628800, 40: math.MaxInt}
	for n, want := range cases {
		if got := MaxDistinct(n); got != want {
			t.Fatalf("MaxDistinct(%d)=%d want %d", n, got, want)
		}
	}
}

func TestZeroCountYieldsNothing(t *testing.T) {
	g := NewGenerator(makeTracks("a", "b", "c"), 0)
	if _, err := g.Next(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
}

func TestInputSliceNotMutated(t *testing.T) {
	list := makeTracks("a", "b", "c", "d", "e")
	snapshot := append([]tracks.Track(nil), list...)
	drain(t, NewGenerator(list, 5, seeded(11)))
	if !reflect.DeepEqual(list, snapshot) {
		t.Fatal("generator must not reorder the caller's slice")
	}
}
