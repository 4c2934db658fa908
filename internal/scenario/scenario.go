// Package scenario is the catalog of profile-update acceptance scenarios.
// Every scenario starts on an authenticated profile form and runs its steps
// strictly in sequence.
package scenario

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/v0xg/profilecheck/internal/flow"
)

// Scenario is one independently runnable acceptance check.
type Scenario struct {
	ID          string
	Title       string
	Description string
	// Run executes the scenario body. The runner has already authenticated
	// the session and opened the profile form.
	Run func(ctx context.Context, f *flow.Flow) error
}

// Name is the ID and title as printed by reporters.
func (s Scenario) Name() string {
	return s.ID + " " + s.Title
}

// NewPassword is the compliant password CP-01 changes the account to.
const NewPassword = "@Prueba123"

// All returns the catalog in execution order.
func All() []Scenario {
	return []Scenario{
		{
			ID:          "CP-01",
			Title:       "successful profile update with valid data",
			Description: "Update every profile field and the password with valid values; the change must survive a reload.",
			Run:         updateAll,
		},
		{
			ID:          "CP-02",
			Title:       "first name is required",
			Description: "Saving with an empty first name is rejected with a required-field message.",
			Run: requiredField(flow.FirstName,
				flow.LastName.Set("González"),
				flow.Address.Set("Av. Siempre Viva 742"),
				flow.Phone.Set("+34111222333"),
				flow.Hobby.Set("SimRacing"),
			),
		},
		{
			ID:          "CP-03",
			Title:       "last name is required",
			Description: "Saving with an empty last name is rejected with a required-field message.",
			Run: requiredField(flow.LastName,
				flow.FirstName.Set("Ana"),
				flow.Address.Set("Pza. Mayor 1"),
				flow.Phone.Set("+34987654321"),
				flow.Hobby.Set("Karting"),
			),
		},
		{
			ID:          "CP-04",
			Title:       "password with invalid format is rejected",
			Description: "A new password without an uppercase letter or a symbol is rejected.",
			Run:         invalidPassword,
		},
		{
			ID:          "CP-05",
			Title:       "partial update keeps untouched fields",
			Description: "Change only phone and hobby; both persist and the other fields keep their values.",
			Run:         partialUpdate,
		},
	}
}

func updateAll(ctx context.Context, f *flow.Flow) error {
	values := []flow.FieldValue{
		flow.FirstName.Set("Juan"),
		flow.LastName.Set("Pérez"),
		flow.Address.Set("Calle Falsa 123"),
		flow.Phone.Set("+34123456789"),
		flow.Hobby.Set("Automovilismo"),
	}
	if err := f.FillFields(ctx, values...); err != nil {
		return err
	}
	f.FillPasswordFields(ctx, flow.CredentialSet{Current: f.Options().Password, New: NewPassword})
	if err := f.Submit(ctx); err != nil {
		return err
	}
	return f.AssertOutcome(ctx, flow.ExpectSuccess(values...))
}

// requiredField clears field, fills the rest and expects field's
// required-message.
func requiredField(field flow.FieldSpec, rest ...flow.FieldValue) func(context.Context, *flow.Flow) error {
	return func(ctx context.Context, f *flow.Flow) error {
		if err := f.ResolveAndFill(ctx, field, ""); err != nil {
			return err
		}
		if err := f.FillFields(ctx, rest...); err != nil {
			return err
		}
		f.FillPasswordFields(ctx, flow.CredentialSet{Current: f.Options().Password})
		if err := f.Submit(ctx); err != nil {
			return err
		}
		return f.AssertOutcome(ctx, flow.ExpectFieldRequired(field))
	}
}

func invalidPassword(ctx context.Context, f *flow.Flow) error {
	err := f.FillFields(ctx,
		flow.FirstName.Set("Carlos"),
		flow.LastName.Set("Lopez"),
		flow.Address.Set("Calle 8"),
		flow.Phone.Set("+34123400000"),
		flow.Hobby.Set("Mecánica"),
	)
	if err != nil {
		return err
	}
	f.FillPasswordFields(ctx, flow.CredentialSet{Current: f.Options().Password, New: "prueba123"})
	if err := f.Submit(ctx); err != nil {
		return err
	}
	return f.AssertOutcome(ctx, flow.ExpectPasswordFormat())
}

func partialUpdate(ctx context.Context, f *flow.Flow) error {
	before, err := f.Snapshot(ctx, flow.FirstName, flow.LastName, flow.Address)
	if err != nil {
		return err
	}
	changed := []flow.FieldValue{
		flow.Phone.Set("+349000111222"),
		flow.Hobby.Set("Restauración"),
	}
	if err := f.FillFields(ctx, changed...); err != nil {
		return err
	}
	f.FillPasswordFields(ctx, flow.CredentialSet{Current: f.Options().Password})
	if err := f.Submit(ctx); err != nil {
		return err
	}
	return f.AssertOutcome(ctx, flow.ExpectSuccess(changed...).WithUnchanged(before))
}

// Select narrows all to the given IDs (case-insensitive, in catalog order)
// and then to the scenarios whose name matches grep. Unknown IDs are an
// error.
func Select(all []Scenario, ids []string, grep string) ([]Scenario, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[strings.ToUpper(id)] = false
	}

	var re *regexp.Regexp
	if grep != "" {
		var err error
		if re, err = regexp.Compile("(?i)" + grep); err != nil {
			return nil, fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}

	var out []Scenario
	for _, s := range all {
		if len(want) > 0 {
			if _, ok := want[s.ID]; !ok {
				continue
			}
			want[s.ID] = true
		}
		if re != nil && !re.MatchString(s.Name()) {
			continue
		}
		out = append(out, s)
	}

	var unknown []string
	for _, id := range ids {
		if !want[strings.ToUpper(id)] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown scenario %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
