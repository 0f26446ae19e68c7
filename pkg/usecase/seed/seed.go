// Package seed writes a canonical catalog described in YAML into the repository.
package seed

import (
	"context"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/repository"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

type Criteria struct {
	Name     string `yaml:"name"`
	Criteria string `yaml:"criteria"`
}

type Examinable struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Criteria    []Criteria `yaml:"criteria"`
}

type Symptom struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Examinables []Examinable `yaml:"examinables"`
}

type Disease struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Prevalence  float64  `yaml:"prevalence"`
	Symptoms    []string `yaml:"symptoms"`
}

// Catalog is the seed file layout. Examinables and criteria are shared by name.
type Catalog struct {
	Symptoms []Symptom `yaml:"symptoms"`
	Diseases []Disease `yaml:"diseases"`
}

func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, goerr.Wrap(err, "failed to decode seed catalog")
	}
	return &c, nil
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open seed catalog", goerr.V("path", path))
	}
	defer f.Close()
	return Parse(f)
}

// stableID derives the same ID for the same kind and name, so seeding again overwrites
// records instead of duplicating them.
func stableID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+nameKey(name))).String()
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type Summary struct {
	Symptoms    int
	Examinables int
	Criteria    int
	Diseases    int
}

type Seeder struct {
	llm  *llm.Client
	repo repository.Repository
	now  func() time.Time
}

func New(client *llm.Client, repo repository.Repository) *Seeder {
	return &Seeder{llm: client, repo: repo, now: time.Now}
}

// Seed embeds every entry of c and writes it with its links.
func (s *Seeder) Seed(ctx context.Context, c *Catalog) (*Summary, error) {
	now := s.now().UTC()

	criteria := make(map[string]*model.CriteriaRecord)
	examinables := make(map[string]*model.ExaminableRecord)
	var criteriaOrder []*model.CriteriaRecord
	var examinableOrder []*model.ExaminableRecord
	var symptoms []*model.SymptomRecord
	symptomIDs := make(map[string]model.SymptomID)

	for _, sym := range c.Symptoms {
		if sym.Name == "" {
			return nil, goerr.New("symptom has no name")
		}
		if _, ok := symptomIDs[nameKey(sym.Name)]; ok {
			return nil, goerr.New("duplicated symptom", goerr.V("symptom", sym.Name))
		}

		rec := &model.SymptomRecord{
			ID:          model.SymptomID(stableID("symptom", sym.Name)),
			Name:        sym.Name,
			Description: sym.Description,
			CreatedAt:   now,
		}

		for _, ex := range sym.Examinables {
			exRec, ok := examinables[nameKey(ex.Name)]
			if !ok {
				exRec = &model.ExaminableRecord{
					ID:          model.ExaminableID(stableID("examinable", ex.Name)),
					Name:        ex.Name,
					Description: ex.Description,
					CreatedAt:   now,
				}
				examinables[nameKey(ex.Name)] = exRec
				examinableOrder = append(examinableOrder, exRec)
			}

			for _, cr := range ex.Criteria {
				crRec, ok := criteria[nameKey(cr.Name)]
				if !ok {
					crRec = &model.CriteriaRecord{
						ID:        model.CriteriaID(stableID("criteria", cr.Name)),
						Name:      cr.Name,
						Criteria:  cr.Criteria,
						CreatedAt: now,
					}
					criteria[nameKey(cr.Name)] = crRec
					criteriaOrder = append(criteriaOrder, crRec)
				}
				if !slices.Contains(exRec.CriteriaIDs, crRec.ID) {
					exRec.CriteriaIDs = append(exRec.CriteriaIDs, crRec.ID)
				}
			}

			if !slices.Contains(rec.ExaminableIDs, exRec.ID) {
				rec.ExaminableIDs = append(rec.ExaminableIDs, exRec.ID)
			}
		}

		symptomIDs[nameKey(sym.Name)] = rec.ID
		symptoms = append(symptoms, rec)
	}

	var diseases []*model.Disease
	for _, d := range c.Diseases {
		rec := &model.Disease{
			ID:          model.DiseaseID(stableID("disease", d.Name)),
			Name:        d.Name,
			Description: d.Description,
			Prevalence:  d.Prevalence,
			CreatedAt:   now,
		}
		if rec.Prevalence == 0 {
			rec.Prevalence = model.DefaultPrevalence
		}
		for _, name := range d.Symptoms {
			id, ok := symptomIDs[nameKey(name)]
			if !ok {
				return nil, goerr.New("disease refers to unknown symptom", goerr.V("disease", d.Name), goerr.V("symptom", name))
			}
			rec.SymptomIDs = append(rec.SymptomIDs, id)
		}
		diseases = append(diseases, rec)
	}

	// linked records go first
	for _, rec := range criteriaOrder {
		emb, err := s.llm.Embed(ctx, rec.Name, rec.Criteria)
		if err != nil {
			return nil, err
		}
		rec.Embedding = emb
		if err := s.repo.PutCriteria(ctx, rec); err != nil {
			return nil, goerr.Wrap(err, "failed to put criteria", goerr.V("criteria", rec.Name))
		}
	}
	for _, rec := range examinableOrder {
		emb, err := s.llm.Embed(ctx, rec.Name, rec.Description)
		if err != nil {
			return nil, err
		}
		rec.Embedding = emb
		if err := s.repo.PutExaminable(ctx, rec); err != nil {
			return nil, goerr.Wrap(err, "failed to put examinable", goerr.V("examinable", rec.Name))
		}
	}
	for _, rec := range symptoms {
		emb, err := s.llm.Embed(ctx, rec.Name, rec.Description)
		if err != nil {
			return nil, err
		}
		rec.Embedding = emb
		if err := s.repo.PutSymptom(ctx, rec); err != nil {
			return nil, goerr.Wrap(err, "failed to put symptom", goerr.V("symptom", rec.Name))
		}
	}
	for _, rec := range diseases {
		if err := s.repo.PutDisease(ctx, rec); err != nil {
			return nil, goerr.Wrap(err, "failed to put disease", goerr.V("disease", rec.Name))
		}
	}

	summary := &Summary{
		Symptoms:    len(symptoms),
		Examinables: len(examinableOrder),
		Criteria:    len(criteriaOrder),
		Diseases:    len(diseases),
	}
	logging.From(ctx).Info("catalog seeded",
		"symptoms", summary.Symptoms,
		"examinables", summary.Examinables,
		"criteria", summary.Criteria,
		"diseases", summary.Diseases,
	)
	return summary, nil
}
