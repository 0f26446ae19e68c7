// Package diagnostic narrows a disease distribution by asking about one symptom at a time.
package diagnostic

import (
	"math"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
)

const (
	// MatchLikelihood applies when an answer agrees with whether a disease has the symptom.
	MatchLikelihood = 0.9
	// MismatchLikelihood applies otherwise.
	MismatchLikelihood = 0.1
)

// Engine keeps the posterior over candidate diseases. It is not safe for concurrent use.
type Engine struct {
	diseases []*model.Disease
	probs    []float64
	symptoms []model.SymptomID
}

// New starts from priors proportional to disease prevalence.
func New(diseases []*model.Disease) (*Engine, error) {
	if len(diseases) == 0 {
		return nil, goerr.New("no disease to diagnose")
	}

	var total float64
	for _, d := range diseases {
		if math.IsNaN(d.Prevalence) || math.IsInf(d.Prevalence, 0) {
			return nil, goerr.New("prevalence is not a finite number", goerr.V("disease", d.Name), goerr.V("prevalence", d.Prevalence))
		}
		if d.Prevalence < 0 {
			return nil, goerr.New("negative prevalence", goerr.V("disease", d.Name), goerr.V("prevalence", d.Prevalence))
		}
		total += d.Prevalence
	}
	if total <= 0 {
		return nil, goerr.New("total prevalence must be positive", goerr.V("total", total))
	}

	e := &Engine{
		diseases: slices.Clone(diseases),
		probs:    make([]float64, len(diseases)),
	}
	seen := make(map[model.SymptomID]struct{})
	for i, d := range diseases {
		e.probs[i] = d.Prevalence / total
		for _, id := range d.SymptomIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			e.symptoms = append(e.symptoms, id)
		}
	}
	return e, nil
}

// Symptoms returns every symptom of every disease in first-seen order.
func (e *Engine) Symptoms() []model.SymptomID {
	return slices.Clone(e.symptoms)
}

// UpdateProbabilities applies the answer about a symptom and renormalizes.
func (e *Engine) UpdateProbabilities(id model.SymptomID, present bool) {
	updated := make([]float64, len(e.probs))
	var total float64
	for i, d := range e.diseases {
		likelihood := MismatchLikelihood
		if d.HasSymptom(id) == present {
			likelihood = MatchLikelihood
		}
		updated[i] = e.probs[i] * likelihood
		total += updated[i]
	}
	if total == 0 {
		return
	}
	for i := range updated {
		updated[i] /= total
	}
	e.probs = updated
}

// Entropy is the Shannon entropy in bits. Zero probabilities are ignored.
func Entropy(probs []float64) float64 {
	var h float64
	for _, p := range probs {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

// partitionEntropy is the entropy of probs renormalized to the partition, weighted by its mass.
func partitionEntropy(probs []float64) float64 {
	var mass float64
	for _, p := range probs {
		mass += p
	}
	if mass == 0 {
		return 0
	}
	normalized := make([]float64, len(probs))
	for i, p := range probs {
		normalized[i] = p / mass
	}
	return mass * Entropy(normalized)
}

// Gain is the expected reduction of entropy by learning whether the symptom is present.
func (e *Engine) Gain(id model.SymptomID) float64 {
	var has, lacks []float64
	for i, d := range e.diseases {
		if d.HasSymptom(id) {
			has = append(has, e.probs[i])
		} else {
			lacks = append(lacks, e.probs[i])
		}
	}
	return Entropy(e.probs) - (partitionEntropy(has) + partitionEntropy(lacks))
}

// NextQuestion returns the symptom not in asked with the largest gain. Ties keep the earlier
// symptom. It looks one question ahead only.
func (e *Engine) NextQuestion(asked map[model.SymptomID]struct{}) (model.SymptomID, bool) {
	var best model.SymptomID
	bestGain := math.Inf(-1)
	found := false

	for _, id := range e.symptoms {
		if _, ok := asked[id]; ok {
			continue
		}
		if gain := e.Gain(id); gain > bestGain {
			best, bestGain, found = id, gain, true
		}
	}
	return best, found
}

// Posteriors returns the current probability of every disease.
func (e *Engine) Posteriors() map[model.DiseaseID]float64 {
	result := make(map[model.DiseaseID]float64, len(e.diseases))
	for i, d := range e.diseases {
		result[d.ID] = e.probs[i]
	}
	return result
}

// MostProbable returns the disease with the largest posterior and its probability.
func (e *Engine) MostProbable() (*model.Disease, float64) {
	best := 0
	for i := range e.probs {
		if e.probs[i] > e.probs[best] {
			best = i
		}
	}
	return e.diseases[best], e.probs[best]
}

// Ranking returns diseases ordered by posterior, most probable first.
func (e *Engine) Ranking() []*model.DiagnosisEntry {
	entries := make([]*model.DiagnosisEntry, len(e.diseases))
	for i, d := range e.diseases {
		entries[i] = &model.DiagnosisEntry{DiseaseID: d.ID, Name: d.Name, Score: e.probs[i]}
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
