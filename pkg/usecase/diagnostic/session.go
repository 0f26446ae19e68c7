package diagnostic

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
)

const DefaultMaxQuestions = 6

type Answer int

const (
	AnswerUnknown Answer = iota
	AnswerYes
	AnswerNo
)

func (a Answer) String() string {
	switch a {
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	default:
		return "unknown"
	}
}

// Asker asks the patient whether a symptom is present.
type Asker interface {
	Ask(ctx context.Context, symptom *model.SymptomRecord) (Answer, error)
}

type AskerFunc func(ctx context.Context, symptom *model.SymptomRecord) (Answer, error)

func (f AskerFunc) Ask(ctx context.Context, symptom *model.SymptomRecord) (Answer, error) {
	return f(ctx, symptom)
}

// SymptomLookup resolves symptom IDs to records for asking.
type SymptomLookup interface {
	Symptom(id model.SymptomID) (*model.SymptomRecord, bool)
}

type Turn struct {
	Symptom *model.SymptomRecord
	Answer  Answer
}

type Outcome struct {
	Disease     *model.Disease
	Probability float64
	Ranking     []*model.DiagnosisEntry
	Turns       []Turn
}

// Session runs the question loop over an Engine.
type Session struct {
	engine       *Engine
	lookup       SymptomLookup
	maxQuestions int
	asked        map[model.SymptomID]struct{}
	turns        []Turn
}

type SessionOption func(*Session)

func WithMaxQuestions(n int) SessionOption {
	return func(s *Session) {
		s.maxQuestions = n
	}
}

func NewSession(engine *Engine, lookup SymptomLookup, opts ...SessionOption) *Session {
	s := &Session{
		engine:       engine,
		lookup:       lookup,
		maxQuestions: DefaultMaxQuestions,
		asked:        make(map[model.SymptomID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Confirm records symptoms known to be present before questioning starts. They are never
// asked and do not count against the question budget.
func (s *Session) Confirm(ids ...model.SymptomID) {
	for _, id := range ids {
		if _, ok := s.asked[id]; ok {
			continue
		}
		s.asked[id] = struct{}{}
		s.engine.UpdateProbabilities(id, true)
	}
}

func (s *Session) symptom(id model.SymptomID) *model.SymptomRecord {
	if s.lookup != nil {
		if rec, ok := s.lookup.Symptom(id); ok {
			return rec
		}
	}
	return &model.SymptomRecord{ID: id, Name: string(id)}
}

// Run asks until the budget is spent or every symptom has been asked. An unknown answer uses
// up the question without changing the posterior.
func (s *Session) Run(ctx context.Context, asker Asker) (*Outcome, error) {
	for range s.maxQuestions {
		id, ok := s.engine.NextQuestion(s.asked)
		if !ok {
			break
		}
		rec := s.symptom(id)

		answer, err := asker.Ask(ctx, rec)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to ask symptom", goerr.V("symptom", rec.Name))
		}

		s.asked[id] = struct{}{}
		s.turns = append(s.turns, Turn{Symptom: rec, Answer: answer})
		switch answer {
		case AnswerYes:
			s.engine.UpdateProbabilities(id, true)
		case AnswerNo:
			s.engine.UpdateProbabilities(id, false)
		}

		logging.From(ctx).Debug("answered", "symptom", rec.Name, "answer", answer.String())
	}

	disease, p := s.engine.MostProbable()
	return &Outcome{
		Disease:     disease,
		Probability: p,
		Ranking:     s.engine.Ranking(),
		Turns:       s.turns,
	}, nil
}
