package model

import (
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
)

// Exam is a timestamped free-text record of an examination.
type Exam struct {
	T           time.Time `json:"t" yaml:"t"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
}

func (e Exam) EmbeddingText() string { return EmbeddingText(e.Label(), e.Description) }

// Label returns the exam name, or a name derived from its timestamp when unnamed.
func (e Exam) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return "exam@" + e.T.UTC().Format(time.RFC3339)
}

// Snapshot is one point in time of a patient record.
type Snapshot struct {
	T            time.Time `json:"t" yaml:"t"`
	Descriptions []string  `json:"descriptions" yaml:"descriptions"`
	Exams        []Exam    `json:"exams" yaml:"exams"`
}

// SortSnapshots returns a copy of snapshots ordered by ascending T. Equal timestamps keep input order.
func SortSnapshots(snapshots []*Snapshot) []*Snapshot {
	sorted := slices.Clone(snapshots)
	slices.SortStableFunc(sorted, func(a, b *Snapshot) int {
		return a.T.Compare(b.T)
	})
	return sorted
}

// Evaluation is the verdict of a criterion applied to an exam.
type Evaluation struct {
	Explanation string  `json:"explanation" jsonschema:"Reasoning that led to the verdict"`
	Confidence  float64 `json:"confidence" jsonschema:"Confidence of the verdict between 0 and 1"`
	Positive    bool    `json:"positive" jsonschema:"true if the exam satisfies the criterion and supports the symptom"`
}

// Validate checks the confidence range.
func (e *Evaluation) Validate() error {
	if e.Confidence < 0 || e.Confidence > 1 {
		return goerr.Wrap(ErrEvaluation, "confidence out of range", goerr.V("confidence", e.Confidence))
	}
	return nil
}

// Summary renders the evaluation in context, which is the text used for its embedding.
func (e *Evaluation) Summary(symptom *Symptom, examinable *Examinable, criteria *Criteria) string {
	verdict := "negative"
	if e.Positive {
		verdict = "positive"
	}
	return fmt.Sprintf("%s: %s (confidence %.2f) on %s by %s: %s",
		symptom.Name, verdict, e.Confidence, examinable.Name, criteria.Name, e.Explanation)
}

type EvaluationWithEmbedding struct {
	Evaluation
	Exam       Exam                    `json:"exam"`
	Symptom    SymptomWithEmbedding    `json:"symptom"`
	Examinable ExaminableWithEmbedding `json:"examinable"`
	Criteria   CriteriaWithEmbedding   `json:"criteria"`
	Embedding  firestore.Vector32      `json:"embedding"`
}
