package resolve

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/catalog"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
)

// RelatedSymptomsThreshold is the similarity an extracted examinable must exceed against a
// catalog examinable for the latter's symptoms to become candidates.
const RelatedSymptomsThreshold = 0.5

// Catalog is the read side of the canonical catalog used for resolution.
type Catalog interface {
	ExaminablesWithin(vec firestore.Vector32, threshold float64) []catalog.ScoredExaminable
	SymptomsLinkedTo(id model.ExaminableID) []*model.SymptomRecord
	ClosestExaminableFor(symptomName string, vec firestore.Vector32) (*model.ExaminableRecord, float64, bool)
	CriteriaOf(id model.ExaminableID) []*model.CriteriaRecord
}

// Resolver maps extracted entities to canonical catalog entries.
type Resolver struct {
	catalog   Catalog
	threshold float64
}

type Option func(*Resolver)

func WithRelatedThreshold(threshold float64) Option {
	return func(r *Resolver) {
		r.threshold = threshold
	}
}

func New(cat Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:   cat,
		threshold: RelatedSymptomsThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelatedSymptoms returns catalog symptoms linked to catalog examinables similar to examinable,
// in descending examinable similarity, without duplicates. It is empty when nothing is close
// enough.
func (r *Resolver) RelatedSymptoms(ctx context.Context, examinable *model.ExaminableWithEmbedding) []*model.SymptomRecord {
	seen := make(map[model.SymptomID]struct{})
	var results []*model.SymptomRecord

	for _, hit := range r.catalog.ExaminablesWithin(examinable.Embedding, r.threshold) {
		for _, s := range r.catalog.SymptomsLinkedTo(hit.Examinable.ID) {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			results = append(results, s)
		}
	}

	logging.From(ctx).Debug("resolved related symptoms",
		"examinable", examinable.Name,
		"count", len(results),
	)
	return results
}

// Resolution is the canonical examinable that grounds a criterion and its criteria.
type Resolution struct {
	Examinable *model.ExaminableRecord
	Similarity float64
	Criteria   []*model.CriteriaRecord
}

// Criterion returns the primary criterion
func (r *Resolution) Criterion() *model.CriteriaRecord {
	return r.Criteria[0]
}

// CriterionFor finds, among catalog examinables linked to symptom, the one closest to
// examinable and returns its criteria.
func (r *Resolver) CriterionFor(ctx context.Context, symptom model.Symptom, examinable *model.ExaminableWithEmbedding) (*Resolution, error) {
	closest, sim, ok := r.catalog.ClosestExaminableFor(symptom.Name, examinable.Embedding)
	if !ok {
		return nil, goerr.Wrap(model.ErrNoMatchingExaminable, "symptom has no linked examinable",
			goerr.V("symptom", symptom.Name), goerr.V("examinable", examinable.Name))
	}

	criteria := r.catalog.CriteriaOf(closest.ID)
	if len(criteria) == 0 {
		return nil, goerr.Wrap(model.ErrNoCriterion, "examinable has no criterion",
			goerr.V("symptom", symptom.Name), goerr.V("catalog_examinable", closest.Name))
	}

	return &Resolution{
		Examinable: closest,
		Similarity: sim,
		Criteria:   criteria,
	}, nil
}
