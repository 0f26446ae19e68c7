package catalog_test

import (
	"context"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/medgraph/pkg/catalog"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/repository"
)

func seed(t *testing.T) *repository.Memory {
	ctx := context.Background()
	repo := repository.NewMemory()

	gt.NoError(t, repo.PutCriteria(ctx, &model.CriteriaRecord{
		ID: "c-mucous", Name: "Lots of mucous", Criteria: "The amount of mucous is significant",
		Embedding: firestore.Vector32{0, 0, 1, 0},
	}))
	gt.NoError(t, repo.PutExaminable(ctx, &model.ExaminableRecord{
		ID: "e-mucous", Name: "Mucous", Description: "The substance that is discharged from the nose",
		Embedding: firestore.Vector32{1, 0, 0, 0}, CriteriaIDs: []model.CriteriaID{"c-mucous"},
	}))
	gt.NoError(t, repo.PutExaminable(ctx, &model.ExaminableRecord{
		ID: "e-nostril", Name: "Nostril", Description: "Opening of the nose",
		Embedding: firestore.Vector32{0.8, 0.6, 0, 0},
	}))
	gt.NoError(t, repo.PutExaminable(ctx, &model.ExaminableRecord{
		ID: "e-pulse", Name: "Pulse", Description: "Heart rate",
		Embedding: firestore.Vector32{0, 1, 0, 0},
	}))
	gt.NoError(t, repo.PutSymptom(ctx, &model.SymptomRecord{
		ID: "s-runny", Name: "Runny nose", Description: "Nasal discharge",
		Embedding:     firestore.Vector32{0, 0, 0, 1},
		ExaminableIDs: []model.ExaminableID{"e-nostril", "e-mucous"},
	}))
	gt.NoError(t, repo.PutSymptom(ctx, &model.SymptomRecord{
		ID: "s-tachy", Name: "Tachycardia", Description: "Fast heart rate",
		ExaminableIDs: []model.ExaminableID{"e-pulse"},
	}))
	gt.NoError(t, repo.PutDisease(ctx, &model.Disease{
		ID: "d-cold", Name: "Common cold", Prevalence: 0.4, SymptomIDs: []model.SymptomID{"s-runny"},
	}))
	return repo
}

func TestLoad(t *testing.T) {
	cat, err := catalog.Load(context.Background(), seed(t))
	gt.NoError(t, err)

	t.Run("examinables within threshold are ranked", func(t *testing.T) {
		hits := cat.ExaminablesWithin(firestore.Vector32{1, 0, 0, 0}, 0.5)
		gt.A(t, hits).Length(2)
		gt.Equal(t, hits[0].Examinable.Name, "Mucous")
		gt.Equal(t, hits[1].Examinable.Name, "Nostril")
		gt.True(t, hits[0].Similarity > hits[1].Similarity)
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		hits := cat.ExaminablesWithin(firestore.Vector32{1, 0, 0, 0}, 0.8)
		gt.A(t, hits).Length(1)
	})

	t.Run("symptoms linked to examinable", func(t *testing.T) {
		symptoms := cat.SymptomsLinkedTo("e-mucous")
		gt.A(t, symptoms).Length(1)
		gt.Equal(t, symptoms[0].Name, "Runny nose")
		gt.A(t, cat.SymptomsLinkedTo("unknown")).Length(0)
	})

	t.Run("closest examinable for symptom", func(t *testing.T) {
		e, sim, ok := cat.ClosestExaminableFor("runny nose", firestore.Vector32{1, 0, 0, 0})
		gt.True(t, ok)
		gt.Equal(t, e.Name, "Mucous")
		gt.True(t, sim > 0.99)

		_, _, ok = cat.ClosestExaminableFor("Headache", firestore.Vector32{1, 0, 0, 0})
		gt.False(t, ok)
	})

	t.Run("criteria of examinable", func(t *testing.T) {
		criteria := cat.CriteriaOf("e-mucous")
		gt.A(t, criteria).Length(1)
		gt.Equal(t, criteria[0].Name, "Lots of mucous")
		gt.A(t, cat.CriteriaOf("e-nostril")).Length(0)
	})

	t.Run("symptom by name", func(t *testing.T) {
		s, ok := cat.SymptomByName(" TACHYCARDIA")
		gt.True(t, ok)
		gt.Equal(t, s.ID, model.SymptomID("s-tachy"))

		_, ok = cat.SymptomByName("Headache")
		gt.False(t, ok)
	})

	t.Run("diseases are copies", func(t *testing.T) {
		diseases := cat.Diseases()
		gt.A(t, diseases).Length(1)
		diseases[0].Prevalence = 0.9
		gt.Equal(t, cat.Diseases()[0].Prevalence, 0.4)

		symptoms := cat.SymptomsOf(diseases[0])
		gt.A(t, symptoms).Length(1)
		gt.Equal(t, symptoms[0].ID, model.SymptomID("s-runny"))
	})
}

func TestNewRejectsDanglingLinks(t *testing.T) {
	_, err := catalog.New(
		[]*model.SymptomRecord{{ID: "s", Name: "Fever", ExaminableIDs: []model.ExaminableID{"missing"}}},
		nil, nil, nil,
	)
	gt.Error(t, err)

	_, err = catalog.New(nil, nil, nil,
		[]*model.Disease{{ID: "d", Name: "Flu", SymptomIDs: []model.SymptomID{"missing"}}},
	)
	gt.Error(t, err)
}
