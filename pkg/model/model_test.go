package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/medgraph/pkg/model"
)

func TestEmbeddingText(t *testing.T) {
	s := model.Symptom{Name: "Runny nose", Description: "Nasal discharge"}
	gt.Equal(t, s.EmbeddingText(), "Runny nose: Nasal discharge")

	c := model.Criteria{Name: "Lots of mucous", Criteria: "The amount of mucous is significant"}
	gt.Equal(t, c.EmbeddingText(), "Lots of mucous: The amount of mucous is significant")
}

func TestExamLabel(t *testing.T) {
	named := model.Exam{Name: "Nasal exam"}
	gt.Equal(t, named.Label(), "Nasal exam")

	unnamed := model.Exam{T: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	gt.Equal(t, unnamed.Label(), "exam@2024-01-02T03:04:05Z")
}

func TestSortSnapshots(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s1 := &model.Snapshot{T: base.Add(2 * time.Hour), Descriptions: []string{"late"}}
	s2 := &model.Snapshot{T: base, Descriptions: []string{"early"}}
	s3 := &model.Snapshot{T: base.Add(2 * time.Hour), Descriptions: []string{"late-2"}}

	input := []*model.Snapshot{s1, s2, s3}
	sorted := model.SortSnapshots(input)

	gt.A(t, sorted).Length(3)
	gt.Equal(t, sorted[0], s2)
	gt.Equal(t, sorted[1], s1)
	gt.Equal(t, sorted[2], s3)

	// input is left untouched
	gt.Equal(t, input[0], s1)
}

func TestEvaluationValidate(t *testing.T) {
	testCases := []struct {
		name       string
		confidence float64
		valid      bool
	}{
		{"zero", 0, true},
		{"one", 1, true},
		{"middle", 0.42, true},
		{"negative", -0.1, false},
		{"above one", 1.5, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev := &model.Evaluation{Confidence: tc.confidence}
			err := ev.Validate()
			if tc.valid {
				gt.NoError(t, err)
			} else {
				gt.Error(t, err)
				gt.True(t, errors.Is(err, model.ErrEvaluation))
			}
		})
	}
}

func TestIsResolutionError(t *testing.T) {
	gt.True(t, model.IsResolutionError(goerr.Wrap(model.ErrNoCriterion, "x")))
	gt.True(t, model.IsResolutionError(goerr.Wrap(model.ErrNoMatchingExaminable, "x")))
	gt.False(t, model.IsResolutionError(goerr.Wrap(model.ErrEvaluation, "x")))
}

func TestDiseaseHasSymptom(t *testing.T) {
	d := &model.Disease{SymptomIDs: []model.SymptomID{"1", "2"}}
	gt.True(t, d.HasSymptom("2"))
	gt.False(t, d.HasSymptom("3"))
}
