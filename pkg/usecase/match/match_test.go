package match_test

import (
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/medgraph/pkg/catalog"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/usecase/match"
)

func symptom(name string, emb ...float32) *model.SymptomWithEmbedding {
	return &model.SymptomWithEmbedding{
		Symptom:   model.Symptom{Name: name},
		Embedding: firestore.Vector32(emb),
	}
}

func names(combo []match.Candidate) []string {
	result := make([]string, len(combo))
	for i, c := range combo {
		result[i] = c.Symptom.Name
	}
	return result
}

var (
	symA = symptom("A", 1, 0)
	symB = symptom("B", 0, 1)
	symC = symptom("C", 0.6, 0.8)
	pool = []*model.SymptomWithEmbedding{symA, symB, symC}
)

func TestRankCandidates(t *testing.T) {
	ranked := match.RankCandidates(pool, symptom("q", 1, 0))
	gt.Equal(t, names(ranked), []string{"A", "C", "B"})
	gt.Equal(t, ranked[0].Similarity, 1.0)
	gt.Equal(t, ranked[2].Similarity, 0.0)

	t.Run("ties keep pool order", func(t *testing.T) {
		twins := []*model.SymptomWithEmbedding{symptom("first", 1, 0), symptom("second", 2, 0)}
		ranked := match.RankCandidates(twins, symptom("q", 1, 0))
		gt.Equal(t, names(ranked), []string{"first", "second"})
	})

	t.Run("empty pool", func(t *testing.T) {
		gt.A(t, match.RankCandidates(nil, symA)).Length(0)
	})
}

func TestCandidates(t *testing.T) {
	query := []*model.SymptomWithEmbedding{symptom("q1", 1, 0), symptom("q2", 0, 1)}
	seq := match.Candidates(pool, query)

	var combos [][]string
	for combo := range seq {
		combos = append(combos, names(combo))
	}
	gt.A(t, combos).Length(9)
	gt.Equal(t, combos[0], []string{"A", "B"})
	gt.Equal(t, combos[1], []string{"A", "C"})
	gt.Equal(t, combos[2], []string{"A", "A"})
	gt.Equal(t, combos[3], []string{"C", "B"})
	gt.Equal(t, combos[8], []string{"B", "A"})

	t.Run("restartable", func(t *testing.T) {
		var count int
		for range seq {
			count++
		}
		gt.Equal(t, count, 9)
	})

	t.Run("early stop", func(t *testing.T) {
		var count int
		for range seq {
			count++
			if count == 2 {
				break
			}
		}
		gt.Equal(t, count, 2)
	})

	t.Run("empty query yields nothing", func(t *testing.T) {
		var count int
		for range match.Candidates(pool, nil) {
			count++
		}
		gt.Equal(t, count, 0)
	})

	t.Run("empty pool yields nothing", func(t *testing.T) {
		var count int
		for range match.Candidates(nil, query) {
			count++
		}
		gt.Equal(t, count, 0)
	})
}

func TestMatch(t *testing.T) {
	query := []*model.SymptomWithEmbedding{symptom("q1", 1, 0), symptom("q2", 0, 1)}

	t.Run("first qualifying combination", func(t *testing.T) {
		combo, ok := match.Match(pool, query, 0.5)
		gt.True(t, ok)
		gt.Equal(t, names(combo), []string{"A", "B"})
		gt.Equal(t, match.Mean(combo), 1.0)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		combo, ok := match.Match(pool, []*model.SymptomWithEmbedding{symptom("q", 1, 0)}, 1.0)
		gt.True(t, ok)
		gt.Equal(t, names(combo), []string{"A"})
	})

	t.Run("pool of one", func(t *testing.T) {
		only := []*model.SymptomWithEmbedding{symC}
		combo, ok := match.Match(only, query, 0.69)
		gt.True(t, ok)
		gt.Equal(t, names(combo), []string{"C", "C"})

		_, ok = match.Match(only, query, 0.71)
		gt.False(t, ok)
	})

	t.Run("best strategy", func(t *testing.T) {
		combo, ok := match.Match(pool, query, 0.5, match.WithStrategy(match.StrategyBest))
		gt.True(t, ok)
		gt.Equal(t, names(combo), []string{"A", "B"})
	})

	t.Run("no match", func(t *testing.T) {
		combo, ok := match.Match(pool, query, 1.01)
		gt.False(t, ok)
		gt.A(t, combo).Length(0)
	})
}

func TestSearch(t *testing.T) {
	query := []*model.SymptomWithEmbedding{symptom("q", 0, 0, 1)}
	flat := []*model.SymptomWithEmbedding{symptom("x", 1, 0, 0), symptom("y", 0, 1, 0)}

	t.Run("gives up after max iterations", func(t *testing.T) {
		var rounds int
		refiner := func(p []*model.SymptomWithEmbedding) []*model.SymptomWithEmbedding {
			rounds++
			return p
		}
		combo, ok := match.Search(flat, query, 3, 0.5, match.WithRefiner(refiner))
		gt.False(t, ok)
		gt.A(t, combo).Length(0)
		gt.Equal(t, rounds, 3)
	})

	t.Run("no refinement when the first match succeeds", func(t *testing.T) {
		var rounds int
		refiner := func(p []*model.SymptomWithEmbedding) []*model.SymptomWithEmbedding {
			rounds++
			return p
		}
		_, ok := match.Search(pool, []*model.SymptomWithEmbedding{symA}, 3, 0.5, match.WithRefiner(refiner))
		gt.True(t, ok)
		gt.Equal(t, rounds, 0)
	})

	t.Run("refined pool matches", func(t *testing.T) {
		var rounds int
		refiner := func(p []*model.SymptomWithEmbedding) []*model.SymptomWithEmbedding {
			rounds++
			if rounds == 2 {
				return append(p, symptom("z", 0, 0.1, 1))
			}
			return p
		}
		combo, ok := match.Search(flat, query, 5, 0.5, match.WithRefiner(refiner))
		gt.True(t, ok)
		gt.Equal(t, names(combo), []string{"z"})
		gt.Equal(t, rounds, 2)
	})

	t.Run("zero iterations", func(t *testing.T) {
		_, ok := match.Search(flat, query, 0, 0.5)
		gt.False(t, ok)
	})
}

func TestDiagnose(t *testing.T) {
	cat, err := catalog.New(
		[]*model.SymptomRecord{
			{ID: "s-fever", Name: "Fever", Embedding: firestore.Vector32{1, 0, 0}},
			{ID: "s-cough", Name: "Cough", Embedding: firestore.Vector32{0, 1, 0}},
			{ID: "s-sneezing", Name: "Sneezing", Embedding: firestore.Vector32{0, 0, 1}},
		},
		nil, nil,
		[]*model.Disease{
			{ID: "d-cold", Name: "Cold", SymptomIDs: []model.SymptomID{"s-cough", "s-sneezing"}},
			{ID: "d-flu", Name: "Flu", SymptomIDs: []model.SymptomID{"s-fever", "s-cough"}},
			{ID: "d-allergy", Name: "Allergy", SymptomIDs: []model.SymptomID{"s-sneezing"}},
			{ID: "d-unknown", Name: "Unknown"},
		},
	)
	gt.NoError(t, err)

	patient := []*model.SymptomWithEmbedding{symptom("High fever", 1, 0, 0), symptom("Dry cough", 0, 1, 0)}
	entries := match.Diagnose(patient, cat, match.DefaultThreshold, match.DefaultMaxIterations)

	gt.A(t, entries).Length(2)
	gt.Equal(t, entries[0].Name, "Flu")
	gt.Equal(t, entries[0].Score, 1.0)
	gt.Equal(t, entries[1].Name, "Cold")
	gt.Equal(t, entries[1].Score, 0.5)
}
