// Package flow implements the login and profile-update flow against a page
// the flow does not control. Every element lookup is an ordered strategy
// chain with first-match semantics; only exhaustion of a whole chain is an
// error.
package flow

import (
	"context"
	"time"

	"github.com/v0xg/profilecheck/internal/artifact"
	"github.com/v0xg/profilecheck/internal/browser"
	"github.com/v0xg/profilecheck/internal/config"
	"go.uber.org/zap"
)

// Options carries the target and the credentials of one scenario.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Timeouts config.Timeouts
}

// Flow drives one Session. It is not safe for concurrent use; scenarios
// that run in parallel each get their own Flow.
type Flow struct {
	page browser.Page
	opts Options
	sink artifact.Sink
	log  *zap.Logger

	profileLinkSeen bool
}

// New returns a Flow over page. Failed lookups are reported to sink.
func New(page browser.Page, opts Options, sink artifact.Sink, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{page: page, opts: opts, sink: sink, log: log}
}

// Options returns the options the flow was built with.
func (f *Flow) Options() Options {
	return f.opts
}

func (f *Flow) url(path string) string {
	return f.opts.BaseURL + path
}

// capture stores a DebugArtifact, logging instead of failing.
func (f *Flow) capture(ctx context.Context, name string) *artifact.Artifact {
	if f.sink == nil {
		return nil
	}
	a, err := f.sink.Capture(ctx, f.page, name)
	if err != nil {
		f.log.Warn("debug artifact not written", zap.String("artifact", name), zap.Error(err))
		return nil
	}
	return &a
}

const pollInterval = 100 * time.Millisecond

// poll evaluates cond until it holds or timeout elapses.
func poll(ctx context.Context, timeout time.Duration, cond func(context.Context) bool) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if cond(ctx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
