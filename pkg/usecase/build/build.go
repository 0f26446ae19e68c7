// Package build folds patient snapshots into a knowledge graph.
package build

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/graph"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/usecase/evaluate"
	"github.com/m-mizutani/medgraph/pkg/usecase/extract"
	"github.com/m-mizutani/medgraph/pkg/usecase/resolve"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"github.com/m-mizutani/medgraph/pkg/utils/vector"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

// Result is the graph built from snapshots and the symptoms supported by them.
type Result struct {
	Graph         *graph.Graph
	Symptoms      []*model.SymptomWithEmbedding
	SnapshotCount int
}

// SymptomNames returns names of the accumulated symptoms.
func (r *Result) SymptomNames() []string {
	names := make([]string, len(r.Symptoms))
	for i, s := range r.Symptoms {
		names[i] = s.Name
	}
	return names
}

// SnapshotErrorHandler decides what happens when every unit of a snapshot failed. Returning nil
// skips the snapshot, returning an error aborts the build with it.
type SnapshotErrorHandler func(ctx context.Context, snapshot *model.Snapshot, err error) error

// AbortOnFailure is the default SnapshotErrorHandler.
func AbortOnFailure(ctx context.Context, snapshot *model.Snapshot, err error) error {
	return err
}

// SkipFailedSnapshot logs the failure and continues with the next snapshot.
func SkipFailedSnapshot(ctx context.Context, snapshot *model.Snapshot, err error) error {
	logging.From(ctx).Error("skip failed snapshot", "error", err, "snapshot", snapshot.T)
	return nil
}

type Builder struct {
	llm       *llm.Client
	extractor *extract.Extractor
	evaluator *evaluate.Evaluator
	resolver  *resolve.Resolver

	concurrency     int
	onSnapshotError SnapshotErrorHandler
}

type Option func(*Builder)

// WithConcurrency limits concurrent units within a snapshot.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithSnapshotErrorHandler(h SnapshotErrorHandler) Option {
	return func(b *Builder) {
		b.onSnapshotError = h
	}
}

func New(client *llm.Client, resolver *resolve.Resolver, opts ...Option) *Builder {
	b := &Builder{
		llm:             client,
		extractor:       extract.New(client),
		evaluator:       evaluate.New(client),
		resolver:        resolver,
		concurrency:     DefaultConcurrency,
		onSnapshotError: AbortOnFailure,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// examResult is what one exam contributes to the fold.
type examResult struct {
	exam        model.Exam
	embedding   firestore.Vector32
	evaluations []*model.EvaluationWithEmbedding
}

// unitResult holds the outcome of one description or one exam. Exactly one of symptoms or
// exam is meaningful unless err is set.
type unitResult struct {
	symptoms []*model.SymptomWithEmbedding
	exam     *examResult
	err      error
}

// BuildGraph processes snapshots in ascending time order and returns the accumulated graph.
// The input slice is not modified.
func (b *Builder) BuildGraph(ctx context.Context, snapshots []*model.Snapshot) (*Result, error) {
	result := &Result{Graph: graph.New()}

	for _, snapshot := range model.SortSnapshots(snapshots) {
		ctx := logging.With(ctx, logging.From(ctx).With("snapshot", snapshot.T))

		units := b.processSnapshot(ctx, snapshot)
		if err := snapshotError(snapshot, units); err != nil {
			if err := b.onSnapshotError(ctx, snapshot, err); err != nil {
				return nil, err
			}
			continue
		}

		fold(result, units)
		result.SnapshotCount++
	}

	return result, nil
}

func snapshotError(snapshot *model.Snapshot, units []*unitResult) error {
	if len(units) == 0 {
		return nil
	}
	var last error
	for _, u := range units {
		if u.err == nil {
			return nil
		}
		last = u.err
	}
	return goerr.Wrap(model.ErrSnapshotFailed, "every unit of snapshot failed",
		goerr.V("snapshot", snapshot.T),
		goerr.V("units", len(units)),
		goerr.V("last_error", last.Error()))
}

// processSnapshot runs every description and exam of snapshot concurrently and joins them.
// Results are positioned by input order regardless of completion order.
func (b *Builder) processSnapshot(ctx context.Context, snapshot *model.Snapshot) []*unitResult {
	units := make([]*unitResult, len(snapshot.Descriptions)+len(snapshot.Exams))

	var eg errgroup.Group
	eg.SetLimit(b.concurrency)

	for i, desc := range snapshot.Descriptions {
		eg.Go(func() error {
			symptoms, err := b.extractor.Symptoms(ctx, desc)
			if err != nil {
				logging.From(ctx).Warn("failed to process description", "error", err)
			}
			units[i] = &unitResult{symptoms: symptoms, err: err}
			return nil
		})
	}

	offset := len(snapshot.Descriptions)
	for i, exam := range snapshot.Exams {
		eg.Go(func() error {
			res, err := b.processExam(ctx, exam)
			if err != nil {
				logging.From(ctx).Warn("failed to process exam", "error", err, "exam", exam.Label())
			}
			units[offset+i] = &unitResult{exam: res, err: err}
			return nil
		})
	}

	_ = eg.Wait()
	return units
}

type evaluationTask struct {
	examinable *model.ExaminableWithEmbedding
	symptom    *model.SymptomRecord
}

func (b *Builder) processExam(ctx context.Context, exam model.Exam) (*examResult, error) {
	examinables, err := b.extractor.Examinables(ctx, exam)
	if err != nil {
		return nil, err
	}

	var tasks []evaluationTask
	for _, examinable := range examinables {
		for _, symptom := range b.resolver.RelatedSymptoms(ctx, examinable) {
			tasks = append(tasks, evaluationTask{examinable: examinable, symptom: symptom})
		}
	}

	evaluations := make([]*model.EvaluationWithEmbedding, len(tasks))
	errs := make([]error, len(tasks))
	var eg errgroup.Group
	eg.SetLimit(b.concurrency)
	for i, task := range tasks {
		eg.Go(func() error {
			ev, err := b.evaluateTask(ctx, exam, task)
			if err != nil {
				logging.From(ctx).Warn("failed to evaluate symptom",
					"error", err,
					"exam", exam.Label(),
					"symptom", task.symptom.Name,
					"examinable", task.examinable.Name,
				)
				errs[i] = err
				return nil
			}
			evaluations[i] = ev
			return nil
		})
	}
	_ = eg.Wait()

	if err := evaluationsError(exam, evaluations, errs); err != nil {
		return nil, err
	}

	res := &examResult{exam: exam}
	for _, ev := range evaluations {
		if ev != nil && ev.Positive {
			res.evaluations = append(res.evaluations, ev)
		}
	}

	if len(res.evaluations) > 0 {
		emb, err := b.llm.Embed(ctx, exam.Label(), exam.Description)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed exam", goerr.V("exam", exam.Label()))
		}
		res.embedding = emb
	}

	return res, nil
}

// evaluationsError fails the exam when at least one evaluation was attempted and none succeeded.
// Resolution misses are neither.
func evaluationsError(exam model.Exam, evaluations []*model.EvaluationWithEmbedding, errs []error) error {
	var failed int
	var last error
	for i, err := range errs {
		if evaluations[i] != nil {
			return nil
		}
		if err != nil {
			failed++
			last = err
		}
	}
	if failed == 0 {
		return nil
	}
	return goerr.Wrap(last, "every evaluation of exam failed",
		goerr.V("exam", exam.Label()),
		goerr.V("failed", failed))
}

func (b *Builder) evaluateTask(ctx context.Context, exam model.Exam, task evaluationTask) (*model.EvaluationWithEmbedding, error) {
	symptom := task.symptom.WithEmbedding()

	resolution, err := b.resolver.CriterionFor(ctx, symptom.Symptom, task.examinable)
	if err != nil {
		if model.IsResolutionError(err) {
			logging.From(ctx).Warn("no criterion for symptom",
				"error", err,
				"symptom", symptom.Name,
				"examinable", task.examinable.Name,
			)
			return nil, nil
		}
		return nil, err
	}

	criteria := resolution.Criterion().WithEmbedding()
	return b.evaluator.Evaluate(ctx, exam, symptom, task.examinable, criteria)
}

// fold applies the outcome of a snapshot to the result. It is the only place the graph is
// mutated.
func fold(result *Result, units []*unitResult) {
	for _, u := range units {
		if u.err != nil {
			continue
		}

		for _, s := range u.symptoms {
			result.Graph.AddNode(graph.NewSymptomNode(s))
			result.addSymptom(s)
		}

		if u.exam == nil {
			continue
		}
		for _, ev := range u.exam.evaluations {
			examNode, _ := result.Graph.AddNode(graph.NewExamNode(u.exam.exam, u.exam.embedding))
			symptomNode, _ := result.Graph.AddNode(graph.NewSymptomNode(&ev.Symptom))
			result.Graph.AddEdge(graph.NewEvaluationEdge(examNode, symptomNode, ev))
			result.addSymptom(&ev.Symptom)
		}
	}
}

// addSymptom appends s unless a symptom with the same meaning is already listed.
func (r *Result) addSymptom(s *model.SymptomWithEmbedding) {
	for _, existing := range r.Symptoms {
		if vector.CosineSimilarity(existing.Embedding, s.Embedding) > graph.IdentityThreshold {
			return
		}
	}
	r.Symptoms = append(r.Symptoms, s)
}
