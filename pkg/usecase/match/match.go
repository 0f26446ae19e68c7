// Package match pairs patient symptoms with the symptoms of a query, such as those of a
// disease, by embedding similarity.
package match

import (
	"iter"
	"slices"

	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/utils/vector"
)

// Candidate is a pool symptom scored against one query symptom.
type Candidate struct {
	Symptom    *model.SymptomWithEmbedding
	Similarity float64
}

// Strategy decides which qualifying combination Match returns.
type Strategy string

const (
	// StrategyFirst returns the first combination in enumeration order that qualifies.
	StrategyFirst Strategy = "first"
	// StrategyBest scans every combination and returns the one with the highest mean.
	StrategyBest Strategy = "best"
)

// Refiner changes the pool between search rounds.
type Refiner func(pool []*model.SymptomWithEmbedding) []*model.SymptomWithEmbedding

// Identity is the default Refiner. It returns the pool as is.
func Identity(pool []*model.SymptomWithEmbedding) []*model.SymptomWithEmbedding {
	return pool
}

type options struct {
	strategy Strategy
	refiner  Refiner
}

type Option func(*options)

func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

func WithRefiner(r Refiner) Option {
	return func(o *options) {
		o.refiner = r
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		strategy: StrategyFirst,
		refiner:  Identity,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RankCandidates scores every pool symptom against target, most similar first. Ties keep pool
// order.
func RankCandidates(pool []*model.SymptomWithEmbedding, target *model.SymptomWithEmbedding) []Candidate {
	ranked := make([]Candidate, len(pool))
	for i, s := range pool {
		ranked[i] = Candidate{
			Symptom:    s,
			Similarity: vector.CosineSimilarity(s.Embedding, target.Embedding),
		}
	}
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	return ranked
}

// Candidates enumerates the cross product of the ranked pool for every query symptom. The i-th
// element of a combination is the candidate for query[i]. Later query symptoms vary fastest, so
// the best local choice of each dimension is visited first, but the order is not sorted by
// combined score. The sequence may be iterated any number of times.
func Candidates(pool, query []*model.SymptomWithEmbedding) iter.Seq[[]Candidate] {
	ranked := make([][]Candidate, len(query))
	for i, q := range query {
		ranked[i] = RankCandidates(pool, q)
	}

	return func(yield func([]Candidate) bool) {
		if len(ranked) == 0 {
			return
		}
		for _, r := range ranked {
			if len(r) == 0 {
				return
			}
		}

		idx := make([]int, len(ranked))
		for {
			combo := make([]Candidate, len(ranked))
			for d, i := range idx {
				combo[d] = ranked[d][i]
			}
			if !yield(combo) {
				return
			}

			// advance the odometer from the last dimension
			d := len(idx) - 1
			for ; d >= 0; d-- {
				idx[d]++
				if idx[d] < len(ranked[d]) {
					break
				}
				idx[d] = 0
			}
			if d < 0 {
				return
			}
		}
	}
}

// Mean returns the mean similarity of a combination.
func Mean(combo []Candidate) float64 {
	values := make([]float64, len(combo))
	for i, c := range combo {
		values[i] = c.Similarity
	}
	return vector.Mean(values)
}

// Match returns a combination whose mean similarity is at least threshold.
func Match(pool, query []*model.SymptomWithEmbedding, threshold float64, opts ...Option) ([]Candidate, bool) {
	return match(pool, query, threshold, newOptions(opts).strategy)
}

func match(pool, query []*model.SymptomWithEmbedding, threshold float64, strategy Strategy) ([]Candidate, bool) {
	var best []Candidate
	bestMean := threshold

	for combo := range Candidates(pool, query) {
		mean := Mean(combo)
		if mean < threshold {
			continue
		}
		if strategy != StrategyBest {
			return combo, true
		}
		if best == nil || mean > bestMean {
			best, bestMean = combo, mean
		}
	}
	return best, best != nil
}

// Search runs Match and, while it finds nothing, refines the pool and retries up to
// maxIterations times. Running out of rounds is not an error.
func Search(pool, query []*model.SymptomWithEmbedding, maxIterations int, threshold float64, opts ...Option) ([]Candidate, bool) {
	o := newOptions(opts)

	if combo, ok := match(pool, query, threshold, o.strategy); ok {
		return combo, true
	}
	for range maxIterations {
		pool = o.refiner(pool)
		if combo, ok := match(pool, query, threshold, o.strategy); ok {
			return combo, true
		}
	}
	return nil, false
}
