package repository

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionSymptoms    = "symptoms"
	collectionExaminables = "examinables"
	collectionCriteria    = "criteria"
	collectionDiseases    = "diseases"
	collectionGraphs      = "graphs"

	embeddingField = "Embedding"
)

// Firestore implements Repository on a Firestore database
type Firestore struct {
	client *firestore.Client
}

var _ Repository = &Firestore{}

// New creates a Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID), goerr.V("database_id", databaseID))
	}

	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func put(ctx context.Context, client *firestore.Client, collection, id string, v any) error {
	if id == "" {
		return goerr.New("document ID is empty", goerr.V("collection", collection))
	}
	if _, err := client.Collection(collection).Doc(id).Set(ctx, v); err != nil {
		return goerr.Wrap(err, "failed to put document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return nil
}

func list[T any](ctx context.Context, client *firestore.Client, collection string) ([]*T, error) {
	iter := client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var results []*T
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("collection", collection))
		}

		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document",
				goerr.V("collection", collection), goerr.V("id", doc.Ref.ID))
		}
		results = append(results, &v)
	}

	return results, nil
}

func (r *Firestore) PutSymptom(ctx context.Context, symptom *model.SymptomRecord) error {
	return put(ctx, r.client, collectionSymptoms, string(symptom.ID), symptom)
}

func (r *Firestore) PutExaminable(ctx context.Context, examinable *model.ExaminableRecord) error {
	return put(ctx, r.client, collectionExaminables, string(examinable.ID), examinable)
}

func (r *Firestore) PutCriteria(ctx context.Context, criteria *model.CriteriaRecord) error {
	return put(ctx, r.client, collectionCriteria, string(criteria.ID), criteria)
}

func (r *Firestore) PutDisease(ctx context.Context, disease *model.Disease) error {
	return put(ctx, r.client, collectionDiseases, string(disease.ID), disease)
}

func (r *Firestore) ListSymptoms(ctx context.Context) ([]*model.SymptomRecord, error) {
	return list[model.SymptomRecord](ctx, r.client, collectionSymptoms)
}

func (r *Firestore) ListExaminables(ctx context.Context) ([]*model.ExaminableRecord, error) {
	return list[model.ExaminableRecord](ctx, r.client, collectionExaminables)
}

func (r *Firestore) ListCriteria(ctx context.Context) ([]*model.CriteriaRecord, error) {
	return list[model.CriteriaRecord](ctx, r.client, collectionCriteria)
}

func (r *Firestore) ListDiseases(ctx context.Context) ([]*model.Disease, error) {
	return list[model.Disease](ctx, r.client, collectionDiseases)
}

func (r *Firestore) SearchSimilarExaminables(ctx context.Context, embedding firestore.Vector32, threshold float64, limit int) ([]*model.ExaminableRecord, error) {
	query := r.client.Collection(collectionExaminables).FindNearest(
		embeddingField,
		embedding,
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceThreshold: &threshold,
		},
	)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search similar examinables", goerr.V("threshold", threshold))
	}

	results := make([]*model.ExaminableRecord, 0, len(docs))
	for _, doc := range docs {
		var v model.ExaminableRecord
		if err := doc.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode examinable", goerr.V("id", doc.Ref.ID))
		}
		results = append(results, &v)
	}
	return results, nil
}

func (r *Firestore) PutGraph(ctx context.Context, graph *model.GraphRecord) error {
	return put(ctx, r.client, collectionGraphs, string(graph.ID), graph)
}

func (r *Firestore) GetGraph(ctx context.Context, id model.GraphID) (*model.GraphRecord, error) {
	doc, err := r.client.Collection(collectionGraphs).Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(model.ErrNotFound, "graph not found", goerr.V("graph_id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get graph", goerr.V("graph_id", id))
	}

	var graph model.GraphRecord
	if err := doc.DataTo(&graph); err != nil {
		return nil, goerr.Wrap(err, "failed to decode graph", goerr.V("graph_id", id))
	}
	return &graph, nil
}
