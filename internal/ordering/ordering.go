// Package ordering generates distinct track orderings for a batch.
//
// Variant 1 is always the input order. Two tracks allow exactly one more
// variant (the reverse); three or more are shuffled with a bounded retry
// against the set of fingerprints already produced. Running out of attempts
// ends generation early and is reported as a shortfall, never an error.
package ordering

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"math"
	"math/rand/v2"
	"slices"

	"mixtape/internal/tracks"
)

// DefaultMaxAttempts bounds the shuffles tried per variant.
const DefaultMaxAttempts = 100

// ErrExhausted is returned by Next when no further distinct ordering can be
// produced, either because the effective count was reached or because the
// shuffle attempts ran out.
var ErrExhausted = errors.New("no more distinct orderings")

// Ordering is one permutation of the input tracks.
type Ordering struct {
	// Variant is 1-based.
	Variant     int
	Tracks      []tracks.Track
	Fingerprint string
}

// Fingerprint identifies a sequence of track paths. Order matters.
func Fingerprint(list []tracks.Track) string {
	h := sha1.New()
	for _, t := range list {
		h.Write([]byte(t.Path))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Generator yields distinct orderings of a fixed track list. It is not safe
// for concurrent use; one batch owns one generator.
type Generator struct {
	original    []tracks.Track
	requested   int
	effective   int
	maxAttempts int
	rng         *rand.Rand

	produced int
	seen     map[string]struct{}
	stopped  bool
}

// Option customizes a Generator.
type Option func(*Generator)

// WithMaxAttempts overrides the per-variant shuffle ceiling.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRand supplies the random source, for reproducible tests.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// NewGenerator prepares up to count orderings of list. The count is clamped
// to the number of distinct permutations that exist.
func NewGenerator(list []tracks.Track, count int, opts ...Option) *Generator {
	g := &Generator{
		original:    slices.Clone(list),
		requested:   max(count, 0),
		maxAttempts: DefaultMaxAttempts,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		seen:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.effective = min(g.requested, MaxDistinct(len(list)))
	return g
}

// MaxDistinct returns n! saturated at math.MaxInt. An empty list has no
// orderings worth producing.
func MaxDistinct(n int) int {
	if n <= 0 {
		return 0
	}
	total := 1
	for i := 2; i <= n; i++ {
		if total > math.MaxInt/i {
			return math.MaxInt
		}
		total *= i
	}
	return total
}

// Requested returns the count the caller asked for.
func (g *Generator) Requested() int { return g.requested }

// Effective returns how many orderings the generator currently expects to
// produce. It drops when shuffle attempts are exhausted.
func (g *Generator) Effective() int { return g.effective }

// Shortfall returns how many requested variants will not be produced.
func (g *Generator) Shortfall() int { return g.requested - g.effective }

// Produced returns how many orderings Next has returned.
func (g *Generator) Produced() int { return g.produced }

// Next returns the next distinct ordering or ErrExhausted.
func (g *Generator) Next() (Ordering, error) {
	if g.stopped || g.produced >= g.effective {
		return Ordering{}, ErrExhausted
	}

	var candidate []tracks.Track
	switch {
	case g.produced == 0:
		candidate = slices.Clone(g.original)
	case len(g.original) == 2:
		candidate = slices.Clone(g.original)
		slices.Reverse(candidate)
	default:
		var ok bool
		candidate, ok = g.shuffleUnique()
		if !ok {
			g.stopped = true
			g.effective = g.produced
			return Ordering{}, ErrExhausted
		}
	}

	fp := Fingerprint(candidate)
	if _, dup := g.seen[fp]; dup {
		// Only possible when the same file appears twice in a two-track list.
		g.stopped = true
		g.effective = g.produced
		return Ordering{}, ErrExhausted
	}
	g.seen[fp] = struct{}{}
	g.produced++
	return Ordering{Variant: g.produced, Tracks: candidate, Fingerprint: fp}, nil
}

func (g *Generator) shuffleUnique() ([]tracks.Track, bool) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := slices.Clone(g.original)
		g.rng.Shuffle(len(candidate), func(i, j int) {
			candidate[i], candidate[j] = candidate[j], candidate[i]
		})
		if _, dup := g.seen[Fingerprint(candidate)]; !dup {
			return candidate, true
		}
	}
	return nil, false
}
