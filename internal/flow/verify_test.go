package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/profilecheck/internal/browser/browsertest"
)

// profileSession logs into app and opens the profile form.
func profileSession(t *testing.T, app *browsertest.App) *harness {
	t.Helper()
	h := newHarness(t, app.Page)
	ctx := context.Background()
	_, err := h.flow.Authenticate(ctx)
	require.NoError(t, err)
	require.NoError(t, h.flow.OpenProfile(ctx))
	return h
}

func TestAssertSuccessPersists(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	h := profileSession(t, app)
	ctx := context.Background()

	values := []FieldValue{FirstName.Set("Juan"), LastName.Set("Pérez"), Hobby.Set("Automovilismo")}
	require.NoError(t, h.flow.FillFields(ctx, values...))
	require.NoError(t, h.flow.Submit(ctx))

	require.NoError(t, h.flow.AssertOutcome(ctx, ExpectSuccess(values...)))
	assert.Equal(t, 1, app.Page.Reloads())
	assert.Equal(t, "Juan", app.Saved("firstName"))
}

func TestAssertSuccessDetectsLostValue(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	app.DropOnSave = []string{"hobby"}
	h := profileSession(t, app)
	ctx := context.Background()

	values := []FieldValue{FirstName.Set("Juan"), Hobby.Set("Karting")}
	require.NoError(t, h.flow.FillFields(ctx, values...))
	require.NoError(t, h.flow.Submit(ctx))

	err := h.flow.AssertOutcome(ctx, ExpectSuccess(values...))
	var at *AssertionTimeoutError
	require.True(t, errors.As(err, &at), "got %v", err)
	assert.Equal(t, "persisted hobby", at.What)
	assert.Equal(t, `"Karting"`, at.Expected)
	assert.Equal(t, `"Reading"`, at.Actual)
}

func TestAssertSuccessWithoutMessage(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	h := profileSession(t, app)
	ctx := context.Background()

	require.NoError(t, h.flow.FillFields(ctx, FirstName.Set("")))
	require.NoError(t, h.flow.Submit(ctx))

	err := h.flow.AssertOutcome(ctx, ExpectSuccess())
	var at *AssertionTimeoutError
	require.True(t, errors.As(err, &at))
	assert.Equal(t, "success message", at.What)
	assert.Equal(t, testTimeouts().Assertion, at.After)
	assert.Zero(t, app.Page.Reloads())
}

func TestAssertFieldRequired(t *testing.T) {
	for _, tt := range []struct {
		name  string
		field FieldSpec
	}{
		{"first name", FirstName},
		{"last name", LastName},
	} {
		t.Run(tt.name, func(t *testing.T) {
			app := browsertest.NewApp(base, "alice", "Secret!1")
			h := profileSession(t, app)
			ctx := context.Background()

			require.NoError(t, h.flow.FillFields(ctx, tt.field.Set("")))
			require.NoError(t, h.flow.Submit(ctx))
			require.NoError(t, h.flow.AssertOutcome(ctx, ExpectFieldRequired(tt.field)))
			assert.Zero(t, app.Saves())
		})
	}
}

func TestAssertErrorFailsWhenSaved(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	h := profileSession(t, app)
	ctx := context.Background()

	require.NoError(t, h.flow.Submit(ctx))
	err := h.flow.AssertOutcome(ctx, ExpectFieldRequired(FirstName))
	var at *AssertionTimeoutError
	require.True(t, errors.As(err, &at))
	assert.Equal(t, "firstName required message", at.What)
}

func TestAssertErrorRequiresSuccessHidden(t *testing.T) {
	page := browsertest.New()
	h := newHarness(t, page)
	page.SetTexts(browsertest.MsgFirstRequired, browsertest.MsgSaved)

	err := h.flow.AssertOutcome(context.Background(), ExpectFieldRequired(FirstName))
	var at *AssertionTimeoutError
	require.True(t, errors.As(err, &at))
	assert.Equal(t, "success message", at.What)
	assert.Contains(t, at.Actual, "saved")
}

func TestAssertFieldRequiredWithoutPattern(t *testing.T) {
	h := newHarness(t, browsertest.New())
	err := h.flow.AssertOutcome(context.Background(), ExpectFieldRequired(Address))
	assert.EqualError(t, err, "field address has no required-message pattern")
}

func TestAssertPasswordFormat(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	h := profileSession(t, app)
	ctx := context.Background()

	h.flow.FillPasswordFields(ctx, CredentialSet{Current: "Secret!1", New: "prueba123"})
	require.NoError(t, h.flow.Submit(ctx))
	require.NoError(t, h.flow.AssertOutcome(ctx, ExpectPasswordFormat()))
	assert.Equal(t, "Secret!1", app.Password())
}

func TestAssertUnchanged(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	h := profileSession(t, app)
	ctx := context.Background()

	snap, err := h.flow.Snapshot(ctx, FirstName, LastName, Address)
	require.NoError(t, err)
	changed := []FieldValue{Phone.Set("+349000111222"), Hobby.Set("Restauración")}
	require.NoError(t, h.flow.FillFields(ctx, changed...))
	require.NoError(t, h.flow.Submit(ctx))

	require.NoError(t, h.flow.AssertOutcome(ctx, ExpectSuccess(changed...).WithUnchanged(snap)))
}

func TestWithUnchangedDoesNotAlias(t *testing.T) {
	exp := ExpectSuccess().WithUnchanged([]FieldValue{FirstName.Set("a")})
	a := exp.WithUnchanged([]FieldValue{LastName.Set("b")})
	b := exp.WithUnchanged([]FieldValue{Address.Set("c")})
	assert.Len(t, exp.Unchanged, 1)
	assert.Equal(t, LastName.Name, a.Unchanged[1].Field.Name)
	assert.Equal(t, Address.Name, b.Unchanged[1].Field.Name)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "password format error", PasswordFormatError.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

func TestAssertSuccessRequiresErrorsHidden(t *testing.T) {
	for _, tt := range []struct {
		name  string
		texts []string
		what  string
	}{
		{"first name required", []string{browsertest.MsgSaved, browsertest.MsgFirstRequired}, "firstName required message"},
		{"last name required", []string{browsertest.MsgSaved, browsertest.MsgLastRequired}, "lastName required message"},
		{"password rule", []string{browsertest.MsgSaved, browsertest.MsgPasswordRule}, "password rule message"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.New()
			h := newHarness(t, page)
			page.SetTexts(tt.texts...)

			err := h.flow.AssertOutcome(context.Background(), ExpectSuccess(Phone.Set("+349000111222")))
			var at *AssertionTimeoutError
			require.True(t, errors.As(err, &at), "got %v", err)
			assert.Equal(t, tt.what, at.What)
			assert.Zero(t, page.Reloads())
		})
	}
}

func TestFirstNameRequiredIsFieldSpecific(t *testing.T) {
	for _, tt := range []struct {
		text  string
		match bool
	}{
		{browsertest.MsgFirstRequired, true},
		{"Name is required", true},
		{"El nombre es obligatorio", true},
		{browsertest.MsgLastRequired, false},
		{"Username is required", false},
	} {
		t.Run(tt.text, func(t *testing.T) {
			page := browsertest.New()
			h := newHarness(t, page)
			page.SetTexts(tt.text)

			err := h.flow.AssertOutcome(context.Background(), ExpectFieldRequired(FirstName))
			if tt.match {
				assert.NoError(t, err)
				return
			}
			var at *AssertionTimeoutError
			require.True(t, errors.As(err, &at), "got %v", err)
			assert.Equal(t, "firstName required message", at.What)
		})
	}
}
