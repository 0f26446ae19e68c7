package diagnostic_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/medgraph/pkg/catalog"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/usecase/diagnostic"
)

const (
	fever       model.SymptomID = "1"
	cough       model.SymptomID = "2"
	musclePain  model.SymptomID = "3"
	sneezing    model.SymptomID = "4"
	itching     model.SymptomID = "5"
	wateryEyes  model.SymptomID = "6"
	lossOfSmell model.SymptomID = "7"
	headache    model.SymptomID = "8"
)

func diseases() []*model.Disease {
	return []*model.Disease{
		{ID: "flu", Name: "Flu", Prevalence: 0.3, SymptomIDs: []model.SymptomID{fever, cough, musclePain}},
		{ID: "allergy", Name: "Allergy", Prevalence: 0.4, SymptomIDs: []model.SymptomID{sneezing, itching, wateryEyes}},
		{ID: "covid", Name: "COVID-19", Prevalence: 0.3, SymptomIDs: []model.SymptomID{fever, cough, lossOfSmell, headache}},
	}
}

func newCatalog(t *testing.T) *catalog.Catalog {
	names := map[model.SymptomID]string{
		fever: "Fever", cough: "Cough", musclePain: "Muscle pain", sneezing: "Sneezing",
		itching: "Itching", wateryEyes: "Watery eyes", lossOfSmell: "Loss of smell", headache: "Headache",
	}
	var symptoms []*model.SymptomRecord
	for _, id := range []model.SymptomID{fever, cough, musclePain, sneezing, itching, wateryEyes, lossOfSmell, headache} {
		symptoms = append(symptoms, &model.SymptomRecord{ID: id, Name: names[id]})
	}
	cat, err := catalog.New(symptoms, nil, nil, diseases())
	gt.NoError(t, err)
	return cat
}

func newEngine(t *testing.T) *diagnostic.Engine {
	e, err := diagnostic.New(diseases())
	gt.NoError(t, err)
	return e
}

func sum(posteriors map[model.DiseaseID]float64) float64 {
	var total float64
	for _, p := range posteriors {
		total += p
	}
	return total
}

func TestNew(t *testing.T) {
	e := newEngine(t)

	p := e.Posteriors()
	gt.Number(t, math.Abs(p["flu"]-0.3)).Less(1e-9)
	gt.Number(t, math.Abs(p["allergy"]-0.4)).Less(1e-9)
	gt.Number(t, math.Abs(p["covid"]-0.3)).Less(1e-9)

	gt.Equal(t, e.Symptoms(), []model.SymptomID{fever, cough, musclePain, sneezing, itching, wateryEyes, lossOfSmell, headache})

	t.Run("priors are normalized", func(t *testing.T) {
		e, err := diagnostic.New([]*model.Disease{
			{ID: "a", Prevalence: 2},
			{ID: "b", Prevalence: 6},
		})
		gt.NoError(t, err)
		gt.Equal(t, e.Posteriors()["a"], 0.25)
		gt.Equal(t, e.Posteriors()["b"], 0.75)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := diagnostic.New(nil)
		gt.Error(t, err)

		_, err = diagnostic.New([]*model.Disease{{ID: "a"}, {ID: "b"}})
		gt.Error(t, err)

		_, err = diagnostic.New([]*model.Disease{{ID: "a", Prevalence: -1}, {ID: "b", Prevalence: 2}})
		gt.Error(t, err)

		_, err = diagnostic.New([]*model.Disease{{ID: "a", Prevalence: math.NaN()}, {ID: "b", Prevalence: 0.5}})
		gt.Error(t, err)

		_, err = diagnostic.New([]*model.Disease{{ID: "a", Prevalence: math.Inf(1)}, {ID: "b", Prevalence: 0.5}})
		gt.Error(t, err)
	})
}

func TestUpdateProbabilitiesFever(t *testing.T) {
	e := newEngine(t)
	prior := e.Posteriors()

	e.UpdateProbabilities(fever, true)
	post := e.Posteriors()

	gt.Number(t, post["allergy"]).Less(prior["allergy"])
	gt.Number(t, post["flu"]).Greater(prior["flu"])
	gt.Number(t, post["covid"]).Greater(prior["covid"])
	gt.Number(t, math.Abs(sum(post)-1)).Less(1e-9)

	// 0.27 / 0.58
	gt.Number(t, math.Abs(post["flu"]-0.27/0.58)).Less(1e-9)
}

func TestPosteriorNormalization(t *testing.T) {
	e := newEngine(t)
	steps := []struct {
		id      model.SymptomID
		present bool
	}{
		{fever, true}, {sneezing, false}, {headache, true}, {musclePain, false},
		{cough, true}, {itching, true}, {lossOfSmell, false}, {wateryEyes, true},
		{fever, false}, {fever, true},
	}
	for i, step := range steps {
		e.UpdateProbabilities(step.id, step.present)
		total := sum(e.Posteriors())
		gt.True(t, math.Abs(total-1) < 1e-9).Describe(fmt.Sprintf("step %d: sum %v", i, total))
	}
}

func TestUpdateProbabilitiesUnknownSymptom(t *testing.T) {
	e := newEngine(t)
	prior := e.Posteriors()

	// a symptom no disease has favors nothing when absent, and everything equally when present
	e.UpdateProbabilities("unknown", false)
	post := e.Posteriors()
	for id, p := range prior {
		gt.Number(t, math.Abs(post[id]-p)).Less(1e-9)
	}
}

func TestEntropy(t *testing.T) {
	testCases := []struct {
		name   string
		probs  []float64
		expect float64
	}{
		{name: "certain", probs: []float64{1, 0}, expect: 0},
		{name: "fair coin", probs: []float64{0.5, 0.5}, expect: 1},
		{name: "four way", probs: []float64{0.25, 0.25, 0.25, 0.25}, expect: 2},
		{name: "empty", probs: nil, expect: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Number(t, math.Abs(diagnostic.Entropy(tc.probs)-tc.expect)).Less(1e-9)
		})
	}
}

func TestGainDisjointDiseases(t *testing.T) {
	e, err := diagnostic.New([]*model.Disease{
		{ID: "a", Prevalence: 0.7, SymptomIDs: []model.SymptomID{"x"}},
		{ID: "b", Prevalence: 0.3, SymptomIDs: []model.SymptomID{"y"}},
	})
	gt.NoError(t, err)

	gt.Number(t, e.Gain("x")).Greater(0)
	gt.Number(t, e.Gain("y")).Greater(0)
	// a question nobody's symptom tells nothing
	gt.Number(t, math.Abs(e.Gain("z"))).Less(1e-12)
}

func TestNextQuestion(t *testing.T) {
	e := newEngine(t)
	asked := map[model.SymptomID]struct{}{}

	id, ok := e.NextQuestion(asked)
	gt.True(t, ok)
	for _, other := range e.Symptoms() {
		gt.Number(t, e.Gain(id)).GreaterOrEqual(e.Gain(other))
	}

	t.Run("skips asked symptoms", func(t *testing.T) {
		asked := map[model.SymptomID]struct{}{id: {}}
		next, ok := e.NextQuestion(asked)
		gt.True(t, ok)
		gt.NotEqual(t, next, id)
	})

	t.Run("none left", func(t *testing.T) {
		all := map[model.SymptomID]struct{}{}
		for _, s := range e.Symptoms() {
			all[s] = struct{}{}
		}
		_, ok := e.NextQuestion(all)
		gt.False(t, ok)
	})

	t.Run("ties keep the earlier symptom", func(t *testing.T) {
		e, err := diagnostic.New([]*model.Disease{
			{ID: "a", Prevalence: 1, SymptomIDs: []model.SymptomID{"p", "q"}},
			{ID: "b", Prevalence: 1},
		})
		gt.NoError(t, err)
		id, ok := e.NextQuestion(nil)
		gt.True(t, ok)
		gt.Equal(t, id, model.SymptomID("p"))
	})
}

func TestMostProbable(t *testing.T) {
	e := newEngine(t)
	d, _ := e.MostProbable()
	gt.Equal(t, d.Name, "Allergy")

	e.UpdateProbabilities(fever, true)
	e.UpdateProbabilities(lossOfSmell, true)
	d, p := e.MostProbable()
	gt.Equal(t, d.Name, "COVID-19")
	gt.Number(t, p).Greater(0.5)

	ranking := e.Ranking()
	gt.A(t, ranking).Length(3)
	gt.Equal(t, ranking[0].Name, "COVID-19")
	gt.Equal(t, ranking[2].Name, "Allergy")
}

// answerAs answers consistently with a patient who has the disease.
func answerAs(d *model.Disease) diagnostic.Asker {
	return diagnostic.AskerFunc(func(ctx context.Context, s *model.SymptomRecord) (diagnostic.Answer, error) {
		if d.HasSymptom(s.ID) {
			return diagnostic.AnswerYes, nil
		}
		return diagnostic.AnswerNo, nil
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	for _, d := range diseases() {
		t.Run(d.Name, func(t *testing.T) {
			s := diagnostic.NewSession(newEngine(t), newCatalog(t))
			outcome, err := s.Run(ctx, answerAs(d))
			gt.NoError(t, err)
			gt.Equal(t, outcome.Disease.ID, d.ID)
			gt.A(t, outcome.Turns).Longer(0)
			gt.Number(t, len(outcome.Turns)).LessOrEqual(diagnostic.DefaultMaxQuestions)
		})
	}

	t.Run("questions carry catalog names", func(t *testing.T) {
		var asked []string
		asker := diagnostic.AskerFunc(func(ctx context.Context, s *model.SymptomRecord) (diagnostic.Answer, error) {
			asked = append(asked, s.Name)
			return diagnostic.AnswerNo, nil
		})
		s := diagnostic.NewSession(newEngine(t), newCatalog(t), diagnostic.WithMaxQuestions(1))
		_, err := s.Run(ctx, asker)
		gt.NoError(t, err)
		gt.A(t, asked).Length(1)
		gt.NotEqual(t, asked[0], "")
		gt.NotEqual(t, asked[0], "1")
	})

	t.Run("unknown answers leave posteriors as they are", func(t *testing.T) {
		e := newEngine(t)
		prior := e.Posteriors()
		asker := diagnostic.AskerFunc(func(context.Context, *model.SymptomRecord) (diagnostic.Answer, error) {
			return diagnostic.AnswerUnknown, nil
		})
		outcome, err := diagnostic.NewSession(e, newCatalog(t)).Run(ctx, asker)
		gt.NoError(t, err)
		gt.A(t, outcome.Turns).Length(diagnostic.DefaultMaxQuestions)
		gt.Equal(t, outcome.Disease.Name, "Allergy")
		for id, p := range e.Posteriors() {
			gt.Number(t, math.Abs(prior[id]-p)).Less(1e-12)
		}
	})

	t.Run("stops when every symptom is asked", func(t *testing.T) {
		outcome, err := diagnostic.NewSession(newEngine(t), nil, diagnostic.WithMaxQuestions(100)).
			Run(ctx, answerAs(diseases()[0]))
		gt.NoError(t, err)
		gt.A(t, outcome.Turns).Length(8)
		gt.Equal(t, outcome.Turns[0].Symptom.Name, string(outcome.Turns[0].Symptom.ID))
	})

	t.Run("confirmed symptoms are not asked", func(t *testing.T) {
		s := diagnostic.NewSession(newEngine(t), newCatalog(t), diagnostic.WithMaxQuestions(100))
		s.Confirm(lossOfSmell, fever)
		outcome, err := s.Run(ctx, answerAs(diseases()[2]))
		gt.NoError(t, err)
		gt.A(t, outcome.Turns).Length(6)
		for _, turn := range outcome.Turns {
			gt.NotEqual(t, turn.Symptom.ID, lossOfSmell)
			gt.NotEqual(t, turn.Symptom.ID, fever)
		}
		gt.Equal(t, outcome.Disease.Name, "COVID-19")
	})

	t.Run("asker failure", func(t *testing.T) {
		asker := diagnostic.AskerFunc(func(context.Context, *model.SymptomRecord) (diagnostic.Answer, error) {
			return diagnostic.AnswerUnknown, errors.New("closed")
		})
		_, err := diagnostic.NewSession(newEngine(t), nil).Run(ctx, asker)
		gt.Error(t, err)
	})
}
