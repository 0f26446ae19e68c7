package extract

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
)

var (
	//go:embed prompt/symptoms.md
	symptomsInstruction string

	//go:embed prompt/examinables.md
	examinablesInstruction string

	//go:embed prompt/exam.md
	examPromptRaw string
)

var examPromptTmpl = template.Must(template.New("exam").Parse(examPromptRaw))

type symptomsOutput struct {
	Symptoms []model.Symptom `json:"symptoms" jsonschema:"Symptoms found in the description"`
}

type examinablesOutput struct {
	Examinables []model.Examinable `json:"examinables" jsonschema:"Examinables covered by the exam"`
}

// Extractor turns free text into embedded symptoms and examinables.
type Extractor struct {
	llm *llm.Client
}

func New(client *llm.Client) *Extractor {
	return &Extractor{llm: client}
}

// Symptoms extracts symptoms from a clinical description. No symptom is a valid result.
func (x *Extractor) Symptoms(ctx context.Context, description string) ([]*model.SymptomWithEmbedding, error) {
	out, err := llm.Generate[symptomsOutput](ctx, x.llm, symptomsInstruction, description)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract symptoms")
	}

	results := make([]*model.SymptomWithEmbedding, 0, len(out.Symptoms))
	for _, s := range out.Symptoms {
		embedding, err := x.llm.Embed(ctx, s.Name, s.Description)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed symptom", goerr.V("symptom", s.Name))
		}
		results = append(results, &model.SymptomWithEmbedding{Symptom: s, Embedding: embedding})
	}
	return results, nil
}

// Examinables extracts what an exam observes. No examinable is a valid result.
func (x *Extractor) Examinables(ctx context.Context, exam model.Exam) ([]*model.ExaminableWithEmbedding, error) {
	var buf bytes.Buffer
	if err := examPromptTmpl.Execute(&buf, exam); err != nil {
		return nil, goerr.Wrap(err, "failed to execute exam prompt template")
	}

	out, err := llm.Generate[examinablesOutput](ctx, x.llm, examinablesInstruction, buf.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract examinables", goerr.V("exam", exam.Label()))
	}

	results := make([]*model.ExaminableWithEmbedding, 0, len(out.Examinables))
	for _, e := range out.Examinables {
		embedding, err := x.llm.Embed(ctx, e.Name, e.Description)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed examinable", goerr.V("examinable", e.Name))
		}
		results = append(results, &model.ExaminableWithEmbedding{Examinable: e, Embedding: embedding})
	}
	return results, nil
}
