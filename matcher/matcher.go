// Package matcher implements the primary descriptor matcher.
//
// A query descriptor matrix is scored against every record of a catalog by
// counting ratio-test correspondences. Candidates are ranked by score and the
// top candidate decides whether the result is confident.
package matcher

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/behold/catalog"
	"github.com/hupe1980/behold/distance"
	"github.com/hupe1980/behold/model"
)

const (
	// DefaultRatio is Lowe's nearest/second-nearest distance ratio.
	DefaultRatio = 0.75
	// DefaultMinMatches is the top score a result needs to be valid.
	DefaultMinMatches = 6
)

// Options configures a Matcher.
type Options struct {
	// Ratio is the ratio test threshold in (0, 1]. Default 0.75.
	Ratio float64
	// MinMatches is the validity threshold on the top score. Default 6.
	MinMatches int
	// MaxDistance additionally bounds the nearest neighbor's L2 distance when > 0.
	MaxDistance float64
}

// DefaultOptions returns the default matcher options.
func DefaultOptions() Options {
	return Options{
		Ratio:      DefaultRatio,
		MinMatches: DefaultMinMatches,
	}
}

// Matcher scores query descriptors against a catalog.
// It holds no per-query state and is safe for concurrent use.
type Matcher struct {
	ratio2      float32
	maxDistance float32
	minMatches  int
}

// New creates a Matcher.
func New(optFns ...func(*Options)) *Matcher {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Ratio <= 0 || opts.Ratio > 1 {
		opts.Ratio = DefaultRatio
	}

	m := &Matcher{
		ratio2:     float32(opts.Ratio * opts.Ratio),
		minMatches: opts.MinMatches,
	}
	if opts.MaxDistance > 0 {
		m.maxDistance = float32(opts.MaxDistance * opts.MaxDistance)
	}
	return m
}

// MinMatches returns the validity threshold.
func (m *Matcher) MinMatches() int { return m.minMatches }

// Match scores query against every record in cat.
// An empty catalog yields no candidates, a nil Top and an invalid result.
func (m *Matcher) Match(query model.Matrix, cat *catalog.Catalog) model.MatchResult {
	records := cat.Records()
	if len(records) == 0 {
		return model.MatchResult{Candidates: []model.MatchCandidate{}}
	}

	candidates := make([]model.MatchCandidate, len(records))
	claimed := roaring.New()
	for i := range records {
		candidates[i] = model.MatchCandidate{
			Label: records[i].Label,
			Score: m.Score(query, &records[i], claimed),
		}
	}

	Rank(candidates)

	top := candidates[0]
	return model.MatchResult{
		Candidates: candidates,
		Top:        &top,
		Valid:      top.Score >= m.minMatches,
	}
}

// Score counts the query rows with an unambiguous nearest neighbor in rec.
// Each record row is claimed by at most one query row, the first in query
// order. claimed is scratch space and may be nil.
func (m *Matcher) Score(query model.Matrix, rec *model.FeatureRecord, claimed *roaring.Bitmap) int {
	if query.Empty() || rec.Rows < 2 || rec.Cols != query.Cols || rec.Kind != query.Kind {
		return 0
	}

	if claimed == nil {
		claimed = roaring.New()
	} else {
		claimed.Clear()
	}

	target := rec.Matrix()
	score := 0
	for q := 0; q < query.Rows; q++ {
		row := query.Row(q)

		best, d1, d2 := -1, float32(math.MaxFloat32), float32(math.MaxFloat32)
		for r := 0; r < target.Rows; r++ {
			d := distance.SquaredL2(row, target.Row(r))
			switch {
			case d < d1:
				d2 = d1
				d1, best = d, r
			case d < d2:
				d2 = d
			}
		}

		if d1 >= m.ratio2*d2 {
			continue
		}
		if m.maxDistance > 0 && d1 > m.maxDistance {
			continue
		}
		if !claimed.CheckedAdd(uint32(best)) {
			continue
		}
		score++
	}
	return score
}

// Rank sorts candidates by descending score, then ascending label.
func Rank(candidates []model.MatchCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Label < candidates[j].Label
	})
}
