package model

import (
	"time"

	"github.com/google/uuid"
)

type GraphID string

// NewGraphID generates a new unique GraphID
func NewGraphID() GraphID {
	return GraphID(uuid.New().String())
}

// GraphRecord is the metadata of a built knowledge graph.
type GraphRecord struct {
	ID            GraphID
	SnapshotCount int
	Symptoms      []string
	Diagnosis     []*DiagnosisEntry
	CreatedAt     time.Time

	// Raw graph is kept in object storage due to the document size limit of firestore
	StorageKey string
}

// DiagnosisEntry is one ranked disease for a set of patient symptoms.
type DiagnosisEntry struct {
	DiseaseID DiseaseID `json:"disease_id"`
	Name      string    `json:"name"`
	Score     float64   `json:"score"`
}
