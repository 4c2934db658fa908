package flow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Outcome is what a submission is expected to produce.
type Outcome int

const (
	Success Outcome = iota
	FieldRequiredError
	PasswordFormatError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case FieldRequiredError:
		return "field required error"
	case PasswordFormatError:
		return "password format error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Expectation is checked by AssertOutcome after a submission.
type Expectation struct {
	Outcome Outcome
	// Field is the field whose required message is expected.
	Field FieldSpec
	// Persisted must read back with these values after a reload.
	Persisted []FieldValue
	// Unchanged holds values captured before mutation that must survive
	// the save untouched.
	Unchanged []FieldValue
}

func ExpectSuccess(persisted ...FieldValue) Expectation {
	return Expectation{Outcome: Success, Persisted: persisted}
}

func ExpectFieldRequired(field FieldSpec) Expectation {
	return Expectation{Outcome: FieldRequiredError, Field: field}
}

func ExpectPasswordFormat() Expectation {
	return Expectation{Outcome: PasswordFormatError}
}

// WithUnchanged adds values that must be left as they were.
func (e Expectation) WithUnchanged(values []FieldValue) Expectation {
	e.Unchanged = append(append([]FieldValue(nil), e.Unchanged...), values...)
	return e
}

// AssertOutcome checks the page state after a submission. A success is
// followed by a reload and a read-back of every persisted and unchanged
// field; an error outcome additionally requires the success message to stay
// hidden.
func (f *Flow) AssertOutcome(ctx context.Context, exp Expectation) error {
	log := f.log.Named("verify").With(zap.Stringer("outcome", exp.Outcome))

	switch exp.Outcome {
	case Success:
		if err := f.expectText(ctx, "success message", SuccessPattern); err != nil {
			return err
		}
		for _, m := range errorMessages(exp) {
			if err := f.expectNoText(ctx, m.what, m.pattern); err != nil {
				return err
			}
		}
		if len(exp.Persisted) == 0 && len(exp.Unchanged) == 0 {
			return nil
		}
		if err := f.page.Reload(ctx); err != nil {
			return fmt.Errorf("verify persistence: %w", err)
		}
		f.page.WaitIdle(ctx)
		for _, v := range exp.Persisted {
			if err := f.expectValue(ctx, "persisted", v); err != nil {
				return err
			}
		}
		for _, v := range exp.Unchanged {
			if err := f.expectValue(ctx, "unchanged", v); err != nil {
				return err
			}
		}

	case FieldRequiredError:
		if exp.Field.Required == "" {
			return fmt.Errorf("field %s has no required-message pattern", exp.Field.Name)
		}
		if err := f.expectText(ctx, exp.Field.Name+" required message", exp.Field.Required); err != nil {
			return err
		}
		if err := f.expectNoText(ctx, "success message", SuccessPattern); err != nil {
			return err
		}

	case PasswordFormatError:
		if err := f.expectText(ctx, "password rule message", PasswordRulePattern); err != nil {
			return err
		}
		if err := f.expectNoText(ctx, "success message", SuccessPattern); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown outcome %s", exp.Outcome)
	}

	log.Info("outcome verified")
	return nil
}

type message struct {
	what    string
	pattern string
}

// errorMessages lists the validation messages a successful save must not
// show: the password rule and the required message of every profile field
// the expectation touches, plus the first and last name.
func errorMessages(exp Expectation) []message {
	out := []message{{"password rule message", PasswordRulePattern}}
	seen := map[string]bool{}
	add := func(spec FieldSpec) {
		if spec.Required == "" || seen[spec.Required] {
			return
		}
		seen[spec.Required] = true
		out = append(out, message{spec.Name + " required message", spec.Required})
	}
	add(FirstName)
	add(LastName)
	for _, v := range exp.Persisted {
		add(v.Field)
	}
	for _, v := range exp.Unchanged {
		add(v.Field)
	}
	return out
}

func (f *Flow) expectText(ctx context.Context, what, pattern string) error {
	ok := poll(ctx, f.opts.Timeouts.Assertion, func(ctx context.Context) bool {
		_, found, err := f.page.FindText(ctx, pattern)
		return err == nil && found
	})
	if ok {
		return nil
	}
	return &AssertionTimeoutError{
		What:     what,
		Expected: fmt.Sprintf("visible text /%s/", pattern),
		Actual:   "not visible",
		After:    f.opts.Timeouts.Assertion,
	}
}

// expectNoText waits for text matching pattern to be hidden; it passes at
// once when the text is absent.
func (f *Flow) expectNoText(ctx context.Context, what, pattern string) error {
	var seen string
	ok := poll(ctx, f.opts.Timeouts.Assertion, func(ctx context.Context) bool {
		text, found, err := f.page.FindText(ctx, pattern)
		if err != nil {
			return false
		}
		seen = text
		return !found
	})
	if ok {
		return nil
	}
	return &AssertionTimeoutError{
		What:     what,
		Expected: fmt.Sprintf("no visible text /%s/", pattern),
		Actual:   fmt.Sprintf("%q visible", seen),
		After:    f.opts.Timeouts.Assertion,
	}
}

func (f *Flow) expectValue(ctx context.Context, what string, want FieldValue) error {
	actual := "field not found"
	ok := poll(ctx, f.opts.Timeouts.Assertion, func(ctx context.Context) bool {
		v, found := f.readValue(ctx, want.Field)
		if !found {
			return false
		}
		actual = fmt.Sprintf("%q", v)
		return v == want.Value
	})
	if ok {
		return nil
	}
	return &AssertionTimeoutError{
		What:     fmt.Sprintf("%s %s", what, want.Field.Name),
		Expected: fmt.Sprintf("%q", want.Value),
		Actual:   actual,
		After:    f.opts.Timeouts.Assertion,
	}
}
