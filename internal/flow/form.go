package flow

import (
	"context"

	"go.uber.org/zap"
)

const saveButtonPattern = `save|update|guardar`

// FillPasswordFields fills the current password and, when creds.New is
// set, the new and confirmation fields. It never fails: a field that cannot
// be found is logged and skipped, and the scenario's own assertions catch
// the consequences.
func (f *Flow) FillPasswordFields(ctx context.Context, creds CredentialSet) {
	f.fillLenient(ctx, CurrentPassword, creds.Current)
	if creds.New == "" {
		return
	}
	f.fillLenient(ctx, NewPassword, creds.New)
	f.fillLenient(ctx, ConfirmPassword, creds.New)
}

func (f *Flow) fillLenient(ctx context.Context, spec FieldSpec, value string) {
	log := f.log.Named("form").With(zap.String("field", spec.Name))
	strategy, ok := firstMatch(ctx, log, f.chain(spec), fill(value))
	if !ok {
		log.Warn("password field not filled, continuing")
		return
	}
	log.Debug("password field filled", zap.String("strategy", strategy))
}

// Submit clicks the profile form's save button, waiting up to the action
// timeout for it to become clickable.
func (f *Flow) Submit(ctx context.Context) error {
	saved := poll(ctx, f.opts.Timeouts.Action, func(ctx context.Context) bool {
		_, ok := firstMatch(ctx, f.log.Named("form"), []locator{byButton(f.page, saveButtonPattern)}, click)
		return ok
	})
	if !saved {
		f.capture(ctx, "submit")
		return ErrSubmitNotFound
	}
	f.page.WaitIdle(ctx)
	return nil
}
