package fallback

import (
	"image"
	"sort"
	"sync/atomic"

	"github.com/hupe1980/behold/model"
)

// DefaultThreshold is the similarity a fallback result needs to be valid.
const DefaultThreshold = 0.9

// Entry is a labeled signature.
type Entry struct {
	Label     string
	Signature Signature
}

// Options configures a Gallery.
type Options struct {
	// Threshold is the minimum similarity of a valid result. Default 0.9.
	Threshold float64
}

// Gallery is an immutable set of labeled signatures.
// It is safe for concurrent use.
type Gallery struct {
	entries   []Entry
	threshold float64
}

// NewGallery builds a gallery. When a label repeats the last entry wins.
func NewGallery(entries []Entry, optFns ...func(*Options)) *Gallery {
	opts := Options{Threshold: DefaultThreshold}
	for _, fn := range optFns {
		fn(&opts)
	}

	byLabel := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := byLabel[e.Label]; ok {
			out[i] = e
			continue
		}
		byLabel[e.Label] = len(out)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })

	return &Gallery{entries: out, threshold: opts.Threshold}
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Threshold returns the validity threshold.
func (g *Gallery) Threshold() float64 {
	if g == nil {
		return DefaultThreshold
	}
	return g.threshold
}

// Match returns the most similar entry. Ties go to the smaller label.
// An empty gallery yields an invalid result without a label.
func (g *Gallery) Match(sig Signature) model.FallbackResult {
	if g.Len() == 0 {
		return model.FallbackResult{}
	}

	best, bestSim := -1, -1.0
	for i := range g.entries {
		if s := Similarity(sig, g.entries[i].Signature); s > bestSim {
			best, bestSim = i, s
		}
	}

	return model.FallbackResult{
		Label:      g.entries[best].Label,
		Valid:      bestSim >= g.threshold,
		Similarity: bestSim,
	}
}

// MatchImage computes img's signature and matches it.
func (g *Gallery) MatchImage(img image.Image) model.FallbackResult {
	return g.Match(NewSignature(img))
}

// Ref is an atomically swappable gallery reference.
// The zero value holds an empty gallery.
type Ref struct {
	p atomic.Pointer[Gallery]
}

var emptyGallery = NewGallery(nil)

// Load returns the current gallery, never nil.
func (r *Ref) Load() *Gallery {
	if g := r.p.Load(); g != nil {
		return g
	}
	return emptyGallery
}

// Swap publishes g and returns the previous gallery.
func (r *Ref) Swap(g *Gallery) *Gallery {
	if g == nil {
		g = emptyGallery
	}
	old := r.p.Swap(g)
	if old == nil {
		return emptyGallery
	}
	return old
}
