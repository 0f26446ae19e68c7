package match

import (
	"slices"

	"github.com/m-mizutani/medgraph/pkg/model"
)

const (
	DefaultThreshold     = 0.5
	DefaultMaxIterations = 3
)

// DiseaseCatalog provides diseases and their symptoms.
type DiseaseCatalog interface {
	Diseases() []*model.Disease
	SymptomsOf(d *model.Disease) []*model.SymptomRecord
}

// Diagnose searches, for every disease, a combination of patient symptoms matching the
// disease symptoms and ranks the diseases that matched by mean similarity, best first.
func Diagnose(patient []*model.SymptomWithEmbedding, cat DiseaseCatalog, threshold float64, maxIterations int, opts ...Option) []*model.DiagnosisEntry {
	var entries []*model.DiagnosisEntry

	for _, d := range cat.Diseases() {
		records := cat.SymptomsOf(d)
		if len(records) == 0 {
			continue
		}
		query := make([]*model.SymptomWithEmbedding, len(records))
		for i, r := range records {
			query[i] = r.WithEmbedding()
		}

		combo, ok := Search(patient, query, maxIterations, threshold, opts...)
		if !ok {
			continue
		}
		entries = append(entries, &model.DiagnosisEntry{
			DiseaseID: d.ID,
			Name:      d.Name,
			Score:     Mean(combo),
		})
	}

	slices.SortStableFunc(entries, func(a, b *model.DiagnosisEntry) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return entries
}
