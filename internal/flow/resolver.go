package flow

import (
	"context"

	"github.com/v0xg/profilecheck/internal/browser"
	"go.uber.org/zap"
)

// chain builds the strategy chain for spec: label, then each selector,
// then the positional fallback.
func (f *Flow) chain(spec FieldSpec) []locator {
	chain := []locator{byLabel(f.page, spec.Label)}

	wait := f.opts.Timeouts.Selector
	if spec.Immediate {
		wait = 0
	}
	for _, sel := range spec.Selectors {
		chain = append(chain, bySelector(f.page, sel, wait))
	}

	if spec.FallbackIndex >= 0 {
		chain = append(chain, byIndex(f.page, spec.scope(), spec.FallbackIndex))
	}
	return chain
}

// ResolveAndFill writes value into the field described by spec. When every
// strategy is exhausted it captures a DebugArtifact and returns a
// *FieldNotResolvedError.
func (f *Flow) ResolveAndFill(ctx context.Context, spec FieldSpec, value string) error {
	log := f.log.With(zap.String("field", spec.Name))

	strategy, ok := firstMatch(ctx, log, f.chain(spec), fill(value))
	if ok {
		log.Debug("field filled", zap.String("strategy", strategy))
		return nil
	}
	return f.notResolved(ctx, spec)
}

// readValue returns the current value of the field described by spec.
func (f *Flow) readValue(ctx context.Context, spec FieldSpec) (string, bool) {
	var value string
	read := func(ctx context.Context, el browser.Element) error {
		v, err := el.Value(ctx)
		value = v
		return err
	}
	_, ok := firstMatch(ctx, f.log.With(zap.String("field", spec.Name)), f.chain(spec), read)
	return value, ok
}

func (f *Flow) notResolved(ctx context.Context, spec FieldSpec) error {
	err := &FieldNotResolvedError{Label: spec.Label}
	err.Artifact = f.capture(ctx, "setfield")
	f.log.Error("field not resolved", zap.String("field", spec.Name), zap.String("label", spec.Label))
	return err
}

// FillFields fills values in order, stopping at the first unresolved field.
func (f *Flow) FillFields(ctx context.Context, values ...FieldValue) error {
	for _, v := range values {
		if err := f.ResolveAndFill(ctx, v.Field, v.Value); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot reads the current value of each field, so a scenario can later
// assert they were left untouched.
func (f *Flow) Snapshot(ctx context.Context, specs ...FieldSpec) ([]FieldValue, error) {
	out := make([]FieldValue, 0, len(specs))
	for _, spec := range specs {
		var value string
		found := poll(ctx, f.opts.Timeouts.Assertion, func(ctx context.Context) bool {
			v, ok := f.readValue(ctx, spec)
			value = v
			return ok
		})
		if !found {
			return nil, f.notResolved(ctx, spec)
		}
		out = append(out, spec.Set(value))
	}
	return out, nil
}
