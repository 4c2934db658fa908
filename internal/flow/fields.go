package flow

// Positional fallback scopes, queried in document order.
const (
	TextInputs     = `input[type="text"], input:not([type])`
	PasswordInputs = `input[type="password"]`
)

// NoFallback disables the positional strategy of a FieldSpec.
const NoFallback = -1

// FieldSpec describes how to find one form field.
type FieldSpec struct {
	// Name identifies the field in logs and reports.
	Name string
	// Label is matched case-insensitively against the field's label text.
	Label string
	// Selectors are tried left to right after the label.
	Selectors []string
	// Immediate probes selectors without waiting for them to appear.
	Immediate bool
	// FallbackScope is the query FallbackIndex indexes into; TextInputs
	// when empty.
	FallbackScope string
	// FallbackIndex picks the nth match of FallbackScope as a last resort.
	// Use NoFallback to disable it.
	FallbackIndex int
	// Required matches the validation message shown when the field is
	// submitted empty.
	Required string
}

func (s FieldSpec) scope() string {
	if s.FallbackScope == "" {
		return TextInputs
	}
	return s.FallbackScope
}

// FieldValue pairs a field with a value written to or read from it.
type FieldValue struct {
	Field FieldSpec
	Value string
}

// Set is shorthand for FieldValue{Field: s, Value: v}.
func (s FieldSpec) Set(v string) FieldValue {
	return FieldValue{Field: s, Value: v}
}

// CredentialSet is the password material of one scenario. New is optional.
type CredentialSet struct {
	Current string
	New     string
}

// Profile form fields.
var (
	FirstName = FieldSpec{
		Name:          "firstName",
		Label:         `first name|name|nombre`,
		Selectors:     []string{`input[name="firstName"]`, `input[id*="first"]`},
		FallbackIndex: 0,
		Required:      `first name.*required|nombre.*obligatorio|(^|\n)\s*name.*required`,
	}
	LastName = FieldSpec{
		Name:          "lastName",
		Label:         `last name|surname|apellido`,
		Selectors:     []string{`input[name="lastName"]`, `input[id*="last"]`},
		FallbackIndex: 1,
		Required:      `last name.*required|apellido.*obligatorio`,
	}
	Address = FieldSpec{
		Name:          "address",
		Label:         `address|dirección`,
		Selectors:     []string{`input[name="address"]`, `input[id*="address"]`},
		FallbackIndex: 2,
	}
	Phone = FieldSpec{
		Name:          "phone",
		Label:         `phone|teléfono|telephone`,
		Selectors:     []string{`input[name="phone"]`, `input[id*="phone"]`},
		FallbackIndex: 3,
	}
	Hobby = FieldSpec{
		Name:          "hobby",
		Label:         `hobby|interest`,
		Selectors:     []string{`input[name="hobby"]`, `input[id*="hobby"]`},
		FallbackIndex: 4,
	}
)

// Password fields fall back to the nth password input on the page.
var (
	CurrentPassword = FieldSpec{
		Name:          "currentPassword",
		Label:         `current password|current pwd`,
		Selectors:     []string{`input[name*="current"]`, `input[id*="current"]`, `input[name="password"]`},
		Immediate:     true,
		FallbackScope: PasswordInputs,
		FallbackIndex: 0,
	}
	NewPassword = FieldSpec{
		Name:          "newPassword",
		Label:         `new password`,
		Selectors:     []string{`input[name*="new"]`, `input[id*="new"]`},
		Immediate:     true,
		FallbackScope: PasswordInputs,
		FallbackIndex: 1,
	}
	ConfirmPassword = FieldSpec{
		Name:          "confirmPassword",
		Label:         `confirm password`,
		Selectors:     []string{`input[name*="confirm"]`, `input[id*="confirm"]`},
		Immediate:     true,
		FallbackScope: PasswordInputs,
		FallbackIndex: 2,
	}
)

// Feedback patterns.
const (
	SuccessPattern      = `success|saved|actualizado`
	PasswordRulePattern = `password.*(uppercase|mayúscula|special|carácter especial)|contraseña.*(mayúscula|especial)`
)
