package repository

import (
	"context"
	"slices"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/utils/vector"
)

// Memory is an in-process Repository for tests and file-backed runs. Records are listed
// in insertion order.
type Memory struct {
	mu          sync.RWMutex
	symptoms    []*model.SymptomRecord
	examinables []*model.ExaminableRecord
	criteria    []*model.CriteriaRecord
	diseases    []*model.Disease
	graphs      map[model.GraphID]*model.GraphRecord
}

var _ Repository = &Memory{}

func NewMemory() *Memory {
	return &Memory{
		graphs: make(map[model.GraphID]*model.GraphRecord),
	}
}

// upsert replaces the record with the same ID or appends it
func upsert[T any](records []*T, v *T, sameID func(a, b *T) bool) []*T {
	for i, r := range records {
		if sameID(r, v) {
			records[i] = v
			return records
		}
	}
	return append(records, v)
}

func (m *Memory) PutSymptom(ctx context.Context, symptom *model.SymptomRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symptoms = upsert(m.symptoms, symptom, func(a, b *model.SymptomRecord) bool { return a.ID == b.ID })
	return nil
}

func (m *Memory) PutExaminable(ctx context.Context, examinable *model.ExaminableRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.examinables = upsert(m.examinables, examinable, func(a, b *model.ExaminableRecord) bool { return a.ID == b.ID })
	return nil
}

func (m *Memory) PutCriteria(ctx context.Context, criteria *model.CriteriaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria = upsert(m.criteria, criteria, func(a, b *model.CriteriaRecord) bool { return a.ID == b.ID })
	return nil
}

func (m *Memory) PutDisease(ctx context.Context, disease *model.Disease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diseases = upsert(m.diseases, disease, func(a, b *model.Disease) bool { return a.ID == b.ID })
	return nil
}

func (m *Memory) ListSymptoms(ctx context.Context) ([]*model.SymptomRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.symptoms), nil
}

func (m *Memory) ListExaminables(ctx context.Context) ([]*model.ExaminableRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.examinables), nil
}

func (m *Memory) ListCriteria(ctx context.Context) ([]*model.CriteriaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.criteria), nil
}

func (m *Memory) ListDiseases(ctx context.Context) ([]*model.Disease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.diseases), nil
}

func (m *Memory) SearchSimilarExaminables(ctx context.Context, embedding firestore.Vector32, threshold float64, limit int) ([]*model.ExaminableRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		record   *model.ExaminableRecord
		distance float64
	}
	var hits []scored
	for _, e := range m.examinables {
		d := vector.CosineDistance(embedding, e.Embedding)
		if d <= threshold {
			hits = append(hits, scored{record: e, distance: d})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		default:
			return 0
		}
	})

	results := make([]*model.ExaminableRecord, 0, len(hits))
	for _, h := range hits {
		if limit > 0 && len(results) >= limit {
			break
		}
		results = append(results, h.record)
	}
	return results, nil
}

func (m *Memory) PutGraph(ctx context.Context, graph *model.GraphRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graph.ID] = graph
	return nil
}

func (m *Memory) GetGraph(ctx context.Context, id model.GraphID) (*model.GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	graph, ok := m.graphs[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "graph not found", goerr.V("graph_id", id))
	}
	return graph, nil
}
