package build

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/adapter"
	"github.com/m-mizutani/medgraph/pkg/graph"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/repository"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
)

// Publisher stores built graphs. The graph itself goes to object storage and its metadata to
// the repository.
type Publisher struct {
	repo    repository.Repository
	storage adapter.Storage
}

func NewPublisher(repo repository.Repository, storage adapter.Storage) *Publisher {
	return &Publisher{repo: repo, storage: storage}
}

func (p *Publisher) Publish(ctx context.Context, result *Result, diagnosis []*model.DiagnosisEntry) (*model.GraphRecord, error) {
	record := &model.GraphRecord{
		ID:            model.NewGraphID(),
		SnapshotCount: result.SnapshotCount,
		Symptoms:      result.SymptomNames(),
		Diagnosis:     diagnosis,
		CreatedAt:     time.Now().UTC(),
	}
	record.StorageKey = adapter.GraphObjectKey(record.ID)

	w, err := p.storage.Put(ctx, record.StorageKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open graph object", goerr.V("key", record.StorageKey))
	}
	if err := json.NewEncoder(w).Encode(result.Graph); err != nil {
		_ = w.Close()
		return nil, goerr.Wrap(err, "failed to write graph", goerr.V("key", record.StorageKey))
	}
	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to commit graph object", goerr.V("key", record.StorageKey))
	}

	if err := p.repo.PutGraph(ctx, record); err != nil {
		return nil, goerr.Wrap(err, "failed to save graph record", goerr.V("id", record.ID))
	}

	logging.From(ctx).Info("published graph", "id", record.ID, "key", record.StorageKey)
	return record, nil
}

// Load returns a published graph record and its graph.
func (p *Publisher) Load(ctx context.Context, id model.GraphID) (*model.GraphRecord, *graph.Graph, error) {
	record, err := p.repo.GetGraph(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	r, err := p.storage.Get(ctx, record.StorageKey)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to open graph object", goerr.V("key", record.StorageKey))
	}
	defer r.Close()

	g := graph.New()
	if err := json.NewDecoder(r).Decode(g); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to decode graph", goerr.V("key", record.StorageKey))
	}
	return record, g, nil
}
