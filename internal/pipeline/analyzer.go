// Package pipeline answers sales questions: it classifies the text, builds a
// plan, executes it and composes the response.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/salesiq/internal/composer"
	"github.com/kalambet/salesiq/internal/executor"
	"github.com/kalambet/salesiq/internal/intent"
	"github.com/kalambet/salesiq/internal/metrics"
	"github.com/kalambet/salesiq/internal/plan"
	"github.com/kalambet/salesiq/internal/storage"
)

// Query is one question. History is accepted for API compatibility and is
// not read.
type Query struct {
	Text    string   `json:"text"`
	History []string `json:"history,omitempty"`
}

// Answer is the outcome of one question. On failure Failure is set and
// Response is empty; Intent and Plan hold whatever was produced before the
// failing stage.
type Answer struct {
	ID         string                  `json:"id"`
	Question   string                  `json:"question"`
	IntentKind intent.Kind             `json:"intent_kind"`
	Intent     intent.Intent           `json:"intent"`
	Plan       string                  `json:"plan,omitempty"`
	Response   composer.ResponseBundle `json:"response"`
	Failure    *Failure                `json:"failure,omitempty"`
	Duration   time.Duration           `json:"duration_ns"`
}

// Explanation is the classification and plan for a question, without
// executing it.
type Explanation struct {
	IntentKind intent.Kind   `json:"intent_kind"`
	Intent     intent.Intent `json:"intent"`
	Plan       string        `json:"plan"`
	Dialect    string        `json:"dialect"`
}

// Recorder persists answered questions. *storage.Store implements it.
type Recorder interface {
	SaveAsk(ctx context.Context, a storage.Ask) error
}

const defaultBatchConcurrency = 4

// Analyzer wires the stages together. It keeps no per-request state.
type Analyzer struct {
	generator   *plan.Generator
	executor    executor.Executor
	composer    *composer.Composer
	recorder    Recorder
	concurrency int
}

// NewAnalyzer creates an Analyzer. recorder may be nil to skip the audit
// log. concurrency bounds AnswerBatch (default 4 if <= 0).
func NewAnalyzer(gen *plan.Generator, exec executor.Executor, comp *composer.Composer, recorder Recorder, concurrency int) *Analyzer {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	return &Analyzer{
		generator:   gen,
		executor:    exec,
		composer:    comp,
		recorder:    recorder,
		concurrency: concurrency,
	}
}

// Explain classifies text and generates its plan without running it.
func (a *Analyzer) Explain(text string) (Explanation, error) {
	in := intent.Classify(text)
	p, err := a.generator.Generate(in)
	if err != nil {
		return Explanation{IntentKind: in.Kind(), Intent: in}, planFailure(err)
	}
	return Explanation{
		IntentKind: in.Kind(),
		Intent:     in,
		Plan:       p.Query,
		Dialect:    a.generator.Dialect().Name(),
	}, nil
}

// Answer runs the full pipeline for q. The returned error is the answer's
// *Failure, if any.
func (a *Analyzer) Answer(ctx context.Context, q Query) (Answer, error) {
	start := time.Now()
	ans := a.answer(ctx, q)
	ans.Duration = time.Since(start)

	outcome := metrics.OutcomeOK
	if ans.Failure != nil {
		outcome = ans.Failure.Kind.outcome()
	}
	metrics.AsksTotal.WithLabelValues(string(ans.IntentKind), outcome).Inc()
	metrics.AskDuration.WithLabelValues(string(ans.IntentKind)).Observe(ans.Duration.Seconds())

	a.record(ctx, ans, outcome)

	if ans.Failure != nil {
		slog.Warn("question failed",
			"id", ans.ID,
			"intent", ans.IntentKind,
			"failure", ans.Failure.Kind,
			"error", ans.Failure.Err,
		)
		return ans, ans.Failure
	}
	slog.Debug("question answered",
		"id", ans.ID,
		"intent", ans.IntentKind,
		"visualizations", len(ans.Response.Visualizations),
		"duration", ans.Duration,
	)
	return ans, nil
}

func (a *Analyzer) answer(ctx context.Context, q Query) Answer {
	in := intent.Classify(q.Text)
	ans := Answer{
		ID:         uuid.NewString(),
		Question:   q.Text,
		IntentKind: in.Kind(),
		Intent:     in,
	}

	p, err := a.generator.Generate(in)
	if err != nil {
		ans.Failure = planFailure(err)
		return ans
	}
	ans.Plan = p.Query

	rows, err := a.executor.Execute(ctx, p.Query)
	if err != nil {
		ans.Failure = executionFailure(err)
		return ans
	}

	ans.Response = a.composer.Compose(in, rows)
	return ans
}

func (a *Analyzer) record(ctx context.Context, ans Answer, outcome string) {
	if a.recorder == nil {
		return
	}
	ask := storage.Ask{
		ID:         ans.ID,
		CreatedAt:  time.Now().UTC(),
		Question:   ans.Question,
		Intent:     string(ans.IntentKind),
		Plan:       ans.Plan,
		Outcome:    outcome,
		DurationMS: ans.Duration.Milliseconds(),
	}
	if ans.Failure != nil && ans.Failure.Err != nil {
		ask.Error = ans.Failure.Err.Error()
	}
	// The audit write must not be cut short by a cancelled request.
	if err := a.recorder.SaveAsk(context.WithoutCancel(ctx), ask); err != nil {
		slog.Warn("failed to record ask", "id", ans.ID, "error", err)
	}
}

// AnswerBatch answers qs concurrently and returns answers in input order.
// Individual failures are reported on each Answer. The error is non-nil only
// when ctx ends first; questions not yet started are left zero.
func (a *Analyzer) AnswerBatch(ctx context.Context, qs []Query) ([]Answer, error) {
	answers := make([]Answer, len(qs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, q := range qs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			answers[i], _ = a.Answer(gctx, q)
			return nil
		})
	}
	return answers, g.Wait()
}
