package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type SymptomID string

func NewSymptomID() SymptomID { return SymptomID(uuid.New().String()) }

type ExaminableID string

func NewExaminableID() ExaminableID { return ExaminableID(uuid.New().String()) }

type CriteriaID string

func NewCriteriaID() CriteriaID { return CriteriaID(uuid.New().String()) }

type DiseaseID string

func NewDiseaseID() DiseaseID { return DiseaseID(uuid.New().String()) }

// SymptomRecord is a canonical symptom of the catalog.
type SymptomRecord struct {
	ID            SymptomID
	Name          string
	Description   string
	Embedding     firestore.Vector32
	ExaminableIDs []ExaminableID
	CreatedAt     time.Time
}

func (r *SymptomRecord) Symptom() Symptom {
	return Symptom{Name: r.Name, Description: r.Description}
}

func (r *SymptomRecord) WithEmbedding() *SymptomWithEmbedding {
	return &SymptomWithEmbedding{Symptom: r.Symptom(), Embedding: r.Embedding}
}

// ExaminableRecord is a canonical examinable of the catalog.
type ExaminableRecord struct {
	ID          ExaminableID
	Name        string
	Description string
	Embedding   firestore.Vector32
	CriteriaIDs []CriteriaID
	CreatedAt   time.Time
}

func (r *ExaminableRecord) WithEmbedding() *ExaminableWithEmbedding {
	return &ExaminableWithEmbedding{
		Examinable: Examinable{Name: r.Name, Description: r.Description},
		Embedding:  r.Embedding,
	}
}

// CriteriaRecord is a canonical criterion of the catalog.
type CriteriaRecord struct {
	ID        CriteriaID
	Name      string
	Criteria  string
	Embedding firestore.Vector32
	CreatedAt time.Time
}

func (r *CriteriaRecord) WithEmbedding() *CriteriaWithEmbedding {
	return &CriteriaWithEmbedding{
		Criteria:  Criteria{Name: r.Name, Criteria: r.Criteria},
		Embedding: r.Embedding,
	}
}

// DefaultPrevalence is used for diseases stored without a prevalence.
const DefaultPrevalence = 0.1

// Disease is a diagnosable condition and the symptoms it presents.
type Disease struct {
	ID          DiseaseID
	Name        string
	Description string
	Prevalence  float64
	SymptomIDs  []SymptomID
	CreatedAt   time.Time
}

func (d *Disease) HasSymptom(id SymptomID) bool {
	for _, s := range d.SymptomIDs {
		if s == id {
			return true
		}
	}
	return false
}
