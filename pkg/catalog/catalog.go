// Package catalog holds an immutable, in-memory snapshot of the canonical symptom catalog.
package catalog

import (
	"context"
	"slices"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/repository"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"github.com/m-mizutani/medgraph/pkg/utils/vector"
)

// Catalog is safe for concurrent use. It never changes after Load or New returns.
type Catalog struct {
	symptoms    []*model.SymptomRecord
	examinables []*model.ExaminableRecord
	diseases    []*model.Disease

	symptomByID          map[model.SymptomID]*model.SymptomRecord
	symptomsByName       map[string][]*model.SymptomRecord
	examinableByID       map[model.ExaminableID]*model.ExaminableRecord
	criteriaByID         map[model.CriteriaID]*model.CriteriaRecord
	symptomsByExaminable map[model.ExaminableID][]*model.SymptomRecord
}

// ScoredExaminable is a catalog examinable with its similarity to a query vector
type ScoredExaminable struct {
	Examinable *model.ExaminableRecord
	Similarity float64
}

// Load reads the whole catalog from repo.
func Load(ctx context.Context, repo repository.Repository) (*Catalog, error) {
	symptoms, err := repo.ListSymptoms(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list symptoms")
	}
	examinables, err := repo.ListExaminables(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list examinables")
	}
	criteria, err := repo.ListCriteria(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list criteria")
	}
	diseases, err := repo.ListDiseases(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list diseases")
	}

	c, err := New(symptoms, examinables, criteria, diseases)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("catalog loaded",
		"symptoms", len(symptoms),
		"examinables", len(examinables),
		"criteria", len(criteria),
		"diseases", len(diseases),
	)
	return c, nil
}

// New builds a catalog and checks that every link points to an existing record.
func New(symptoms []*model.SymptomRecord, examinables []*model.ExaminableRecord, criteria []*model.CriteriaRecord, diseases []*model.Disease) (*Catalog, error) {
	c := &Catalog{
		symptoms:             slices.Clone(symptoms),
		examinables:          slices.Clone(examinables),
		diseases:             slices.Clone(diseases),
		symptomByID:          make(map[model.SymptomID]*model.SymptomRecord, len(symptoms)),
		symptomsByName:       make(map[string][]*model.SymptomRecord),
		examinableByID:       make(map[model.ExaminableID]*model.ExaminableRecord, len(examinables)),
		criteriaByID:         make(map[model.CriteriaID]*model.CriteriaRecord, len(criteria)),
		symptomsByExaminable: make(map[model.ExaminableID][]*model.SymptomRecord),
	}

	for _, cr := range criteria {
		c.criteriaByID[cr.ID] = cr
	}
	for _, e := range examinables {
		for _, id := range e.CriteriaIDs {
			if _, ok := c.criteriaByID[id]; !ok {
				return nil, goerr.New("examinable links unknown criteria",
					goerr.V("examinable", e.Name), goerr.V("criteria_id", id))
			}
		}
		c.examinableByID[e.ID] = e
	}
	for _, s := range symptoms {
		for _, id := range s.ExaminableIDs {
			if _, ok := c.examinableByID[id]; !ok {
				return nil, goerr.New("symptom links unknown examinable",
					goerr.V("symptom", s.Name), goerr.V("examinable_id", id))
			}
			c.symptomsByExaminable[id] = append(c.symptomsByExaminable[id], s)
		}
		c.symptomByID[s.ID] = s
		key := nameKey(s.Name)
		c.symptomsByName[key] = append(c.symptomsByName[key], s)
	}
	for _, d := range diseases {
		for _, id := range d.SymptomIDs {
			if _, ok := c.symptomByID[id]; !ok {
				return nil, goerr.New("disease links unknown symptom",
					goerr.V("disease", d.Name), goerr.V("symptom_id", id))
			}
		}
	}

	return c, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ExaminablesWithin returns examinables whose similarity to vec is strictly above threshold,
// most similar first.
func (c *Catalog) ExaminablesWithin(vec firestore.Vector32, threshold float64) []ScoredExaminable {
	var hits []ScoredExaminable
	for _, e := range c.examinables {
		sim := vector.CosineSimilarity(vec, e.Embedding)
		if sim > threshold {
			hits = append(hits, ScoredExaminable{Examinable: e, Similarity: sim})
		}
	}

	slices.SortStableFunc(hits, func(a, b ScoredExaminable) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})
	return hits
}

// SymptomsLinkedTo returns the symptoms linked to an examinable.
func (c *Catalog) SymptomsLinkedTo(id model.ExaminableID) []*model.SymptomRecord {
	return slices.Clone(c.symptomsByExaminable[id])
}

// ClosestExaminableFor returns, among the examinables linked to the symptom named symptomName,
// the one closest to vec. It returns false when the symptom is unknown or has no examinable.
func (c *Catalog) ClosestExaminableFor(symptomName string, vec firestore.Vector32) (*model.ExaminableRecord, float64, bool) {
	var (
		best    *model.ExaminableRecord
		bestSim float64
	)
	for _, s := range c.symptomsByName[nameKey(symptomName)] {
		for _, id := range s.ExaminableIDs {
			e := c.examinableByID[id]
			sim := vector.CosineSimilarity(vec, e.Embedding)
			if best == nil || sim > bestSim {
				best, bestSim = e, sim
			}
		}
	}
	return best, bestSim, best != nil
}

// CriteriaOf returns the criteria linked to an examinable, in link order.
func (c *Catalog) CriteriaOf(id model.ExaminableID) []*model.CriteriaRecord {
	e, ok := c.examinableByID[id]
	if !ok {
		return nil
	}
	result := make([]*model.CriteriaRecord, 0, len(e.CriteriaIDs))
	for _, cid := range e.CriteriaIDs {
		result = append(result, c.criteriaByID[cid])
	}
	return result
}

func (c *Catalog) Symptoms() []*model.SymptomRecord {
	return slices.Clone(c.symptoms)
}

// SymptomByName finds a symptom by name, ignoring case.
func (c *Catalog) SymptomByName(name string) (*model.SymptomRecord, bool) {
	found := c.symptomsByName[nameKey(name)]
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

func (c *Catalog) Symptom(id model.SymptomID) (*model.SymptomRecord, bool) {
	s, ok := c.symptomByID[id]
	return s, ok
}

// Diseases returns copies of the catalog diseases so callers may adjust prevalence.
func (c *Catalog) Diseases() []*model.Disease {
	result := make([]*model.Disease, len(c.diseases))
	for i, d := range c.diseases {
		copied := *d
		copied.SymptomIDs = slices.Clone(d.SymptomIDs)
		result[i] = &copied
	}
	return result
}

// SymptomsOf resolves the symptoms a disease presents.
func (c *Catalog) SymptomsOf(d *model.Disease) []*model.SymptomRecord {
	result := make([]*model.SymptomRecord, 0, len(d.SymptomIDs))
	for _, id := range d.SymptomIDs {
		if s, ok := c.symptomByID[id]; ok {
			result = append(result, s)
		}
	}
	return result
}
