package evaluate

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
)

//go:embed prompt/evaluate.md
var evaluateInstruction string

type evaluateInput struct {
	Exam       model.Exam       `json:"exam"`
	Symptom    model.Symptom    `json:"symptom"`
	Examinable model.Examinable `json:"examinable"`
	Criterion  model.Criteria   `json:"criterion"`
}

// Evaluator applies a criterion to an exam with the language model.
type Evaluator struct {
	llm *llm.Client
}

func New(client *llm.Client) *Evaluator {
	return &Evaluator{llm: client}
}

// Evaluate decides whether exam satisfies criteria for symptom. The result carries its inputs
// and an embedding of its summary.
func (x *Evaluator) Evaluate(ctx context.Context, exam model.Exam, symptom *model.SymptomWithEmbedding, examinable *model.ExaminableWithEmbedding, criteria *model.CriteriaWithEmbedding) (*model.EvaluationWithEmbedding, error) {
	raw, err := json.Marshal(evaluateInput{
		Exam:       exam,
		Symptom:    symptom.Symptom,
		Examinable: examinable.Examinable,
		Criterion:  criteria.Criteria,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal evaluation input")
	}

	ev, err := llm.Generate[model.Evaluation](ctx, x.llm, evaluateInstruction, string(raw))
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrEvaluation, err), "failed to evaluate criterion",
			goerr.V("symptom", symptom.Name), goerr.V("criteria", criteria.Name))
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	summary := ev.Summary(&symptom.Symptom, &examinable.Examinable, &criteria.Criteria)
	embedding, err := x.llm.EmbedText(ctx, summary)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrEvaluation, err), "failed to embed evaluation", goerr.V("summary", summary))
	}

	logging.From(ctx).Debug("evaluated criterion",
		"exam", exam.Label(),
		"symptom", symptom.Name,
		"criteria", criteria.Name,
		"positive", ev.Positive,
		"confidence", ev.Confidence,
	)

	return &model.EvaluationWithEmbedding{
		Evaluation: *ev,
		Exam:       exam,
		Symptom:    *symptom,
		Examinable: *examinable,
		Criteria:   *criteria,
		Embedding:  embedding,
	}, nil
}
