package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/medgraph/pkg/model"
)

// Repository defines the persistence of the canonical catalog and built graphs
type Repository interface {
	// PutSymptom saves a catalog symptom. Writes are for seeding and administration only.
	PutSymptom(ctx context.Context, symptom *model.SymptomRecord) error
	PutExaminable(ctx context.Context, examinable *model.ExaminableRecord) error
	PutCriteria(ctx context.Context, criteria *model.CriteriaRecord) error
	PutDisease(ctx context.Context, disease *model.Disease) error

	ListSymptoms(ctx context.Context) ([]*model.SymptomRecord, error)
	ListExaminables(ctx context.Context) ([]*model.ExaminableRecord, error)
	ListCriteria(ctx context.Context) ([]*model.CriteriaRecord, error)
	ListDiseases(ctx context.Context) ([]*model.Disease, error)

	// SearchSimilarExaminables performs vector search with cosine distance below threshold,
	// closest first
	SearchSimilarExaminables(ctx context.Context, embedding firestore.Vector32, threshold float64, limit int) ([]*model.ExaminableRecord, error)

	// PutGraph saves metadata of a built graph
	PutGraph(ctx context.Context, graph *model.GraphRecord) error
	// GetGraph returns model.ErrNotFound when the graph does not exist
	GetGraph(ctx context.Context, id model.GraphID) (*model.GraphRecord, error)
}
