// Package runner executes scenarios in isolated sessions: a fresh page per
// attempt, a scenario-level deadline, bounded parallelism across scenarios
// and retries that record a postmortem trace.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/profilecheck/internal/artifact"
	"github.com/v0xg/profilecheck/internal/browser"
	"github.com/v0xg/profilecheck/internal/config"
	"github.com/v0xg/profilecheck/internal/flow"
	"github.com/v0xg/profilecheck/internal/scenario"
	"github.com/v0xg/profilecheck/internal/trace"
)

// Status is the final state of a scenario.
type Status string

const (
	Passed Status = "passed"
	Failed Status = "failed"
	// Flaky scenarios failed at least once and then passed on a retry.
	Flaky Status = "flaky"
)

// Page is a session the runner owns for one attempt.
type Page interface {
	browser.Page
	Close() error
}

// Opener creates the isolated session for one attempt. rec is non-nil when
// the attempt is traced.
type Opener func(ctx context.Context, rec *trace.Recorder) (Page, error)

// Result is the outcome of one scenario across all its attempts.
type Result struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Status    Status              `json:"status"`
	Attempts  int                 `json:"attempts"`
	Duration  time.Duration       `json:"duration_ns"`
	Err       error               `json:"-"`
	Error     string              `json:"error,omitempty"`
	Artifacts []artifact.Artifact `json:"artifacts,omitempty"`
	Trace     string              `json:"trace,omitempty"`
}

// Runner runs scenarios against sessions produced by an Opener.
type Runner struct {
	cfg  *config.Config
	open Opener
	sink artifact.Sink
	log  *zap.Logger
}

// New returns a Runner. DebugArtifacts of every scenario go to sink.
func New(cfg *config.Config, open Opener, sink artifact.Sink, log *zap.Logger) *Runner {
	return &Runner{cfg: cfg, open: open, sink: sink, log: log.Named("runner")}
}

// Run executes scenarios with at most cfg.Workers in flight and returns
// their results in input order. A failing scenario never affects another.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) []Result {
	results := make([]Result, len(scenarios))

	var g errgroup.Group
	g.SetLimit(max(1, r.cfg.Workers))
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = r.runScenario(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) runScenario(ctx context.Context, sc scenario.Scenario) Result {
	log := r.log.With(zap.String("scenario", sc.ID))
	start := time.Now()
	res := Result{ID: sc.ID, Title: sc.Title}
	col := &artifact.Collector{Sink: r.sink}

	log.Info("scenario started", zap.String("title", sc.Title))
	for attempt := 0; attempt <= r.cfg.Retries; attempt++ {
		if ctx.Err() != nil {
			if res.Err == nil {
				res.Err = ctx.Err()
			}
			break
		}
		res.Attempts++
		err := r.attempt(ctx, sc, attempt, col, &res, log)
		if err == nil {
			res.Err = nil
			break
		}
		res.Err = err
		log.Warn("attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	res.Duration = time.Since(start)
	res.Artifacts = col.Artifacts()
	switch {
	case res.Err != nil:
		res.Status = Failed
		res.Error = res.Err.Error()
		log.Error("scenario failed", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	case res.Attempts > 1:
		res.Status = Flaky
		log.Warn("scenario passed on retry", zap.Int("attempts", res.Attempts))
	default:
		res.Status = Passed
		log.Info("scenario passed", zap.Duration("duration", res.Duration))
	}
	return res
}

func (r *Runner) attempt(ctx context.Context, sc scenario.Scenario, attempt int, sink artifact.Sink, res *Result, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Scenario)
	defer cancel()

	var rec *trace.Recorder
	if r.cfg.TraceAttempt(attempt) {
		rec = trace.NewRecorder(trace.Options{})
	}

	page, err := r.open(ctx, rec)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("close session", zap.Error(err))
		}
	}()

	f := flow.New(page, flow.Options{
		BaseURL:  r.cfg.BaseURL,
		Username: r.cfg.Username,
		Password: r.cfg.Password,
		Timeouts: r.cfg.Timeouts,
	}, sink, log)

	err = run(ctx, f, sc)
	if rec != nil {
		if path, terr := r.writeTrace(sc.ID, rec); terr != nil {
			log.Warn("trace not written", zap.Error(terr))
		} else if path != "" {
			res.Trace = path
			log.Info("trace written", zap.String("path", path))
		}
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("scenario timed out after %s: %w", r.cfg.Timeouts.Scenario, err)
	}
	return err
}

func run(ctx context.Context, f *flow.Flow, sc scenario.Scenario) error {
	if _, err := f.Authenticate(ctx); err != nil {
		return err
	}
	if err := f.OpenProfile(ctx); err != nil {
		return err
	}
	return sc.Run(ctx, f)
}

// writeTrace encodes rec to <report dir>/<id>-trace.gif. An empty recorder
// writes nothing.
func (r *Runner) writeTrace(id string, rec *trace.Recorder) (string, error) {
	if rec.Len() == 0 {
		return "", nil
	}
	path := filepath.Join(r.cfg.ReportDir, id+"-trace.gif")
	if _, err := rec.WriteGIF(path); err != nil {
		return "", err
	}
	return path, nil
}
