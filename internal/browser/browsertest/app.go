package browsertest

import (
	"context"
	"strings"
	"sync"
)

// Profile field names, in form order.
var ProfileFields = []string{"firstName", "lastName", "address", "phone", "hobby"}

var profileLabels = map[string]string{
	"firstName": "First Name",
	"lastName":  "Last Name",
	"address":   "Address",
	"phone":     "Phone",
	"hobby":     "Hobby",
}

const (
	textInputs     = `input[type="text"], input:not([type])`
	passwordInputs = `input[type="password"]`
	profileForm    = `form#profileForm, form[name="profile"]`
)

// Messages rendered by App.
const (
	MsgSaved           = "The profile has been saved successfully"
	MsgFirstRequired   = "First name is required"
	MsgLastRequired    = "Last name is required"
	MsgPasswordRule    = "Password must contain at least one uppercase letter and one special character"
	MsgCurrentMismatch = "Current password is wrong"
	MsgInvalidLogin    = "Invalid username/password"
)

// App simulates the application under test on top of a Page: a login form
// at /login, a home page linking to the profile, and a profile form that
// validates, saves and reloads its values from server-side state.
type App struct {
	Base string
	Page *Page

	mu       sync.Mutex
	username string
	password string
	saved    map[string]string
	saves    int

	// DropOnSave lists fields the server silently fails to persist.
	DropOnSave []string

	fields    map[string]*Element
	passwords [3]*Element
}

// NewApp serves the application at base.
func NewApp(base, username, password string) *App {
	a := &App{
		Base:     strings.TrimSuffix(base, "/"),
		Page:     New(),
		username: username,
		password: password,
		saved: map[string]string{
			"firstName": "Test",
			"lastName":  "User",
			"address":   "Initial St 1",
			"phone":     "+34000000000",
			"hobby":     "Reading",
		},
		fields: map[string]*Element{},
	}
	a.Page.Route(a.Base+"/", a.anonHome())
	a.Page.Route(a.Base+"/login", a.loginDOM())
	a.Page.OnReload = func(*Page) { a.reload() }
	return a
}

// Saved returns the persisted value of field.
func (a *App) Saved(field string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saved[field]
}

// Password returns the account's current password.
func (a *App) Password() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.password
}

// Saves counts accepted submissions.
func (a *App) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

func (a *App) anonHome() *DOM {
	d := NewDOM()
	d.Links = []*Element{{ID: "login-link", Text: "Login", Href: a.Base + "/login"}}
	return d
}

func (a *App) loginDOM() *DOM {
	user := &Element{ID: "username"}
	pass := &Element{ID: "password"}
	submit := &Element{ID: "login-submit", Text: "Login"}
	submit.OnClick = func(p *Page) {
		a.mu.Lock()
		username, password := a.username, a.password
		a.mu.Unlock()
		ok := user.CurrentValue() == username && pass.CurrentValue() == password
		if !ok {
			p.SetTexts(MsgInvalidLogin)
			return
		}
		a.loggedIn()
		_ = p.Navigate(context.Background(), a.Base+"/")
	}
	pass.OnEnter = func(p *Page) { submit.OnClick(p) }

	d := NewDOM().
		Add(user, `input[name="username"]`, textInputs).
		Add(pass, passwordInputs)
	d.Buttons = []*Element{submit}
	d.Add(submit, `button[type="submit"]`)
	return d
}

func (a *App) loggedIn() {
	home := NewDOM()
	home.Links = []*Element{{ID: "profile-link", Text: "Profile", Href: a.Base + "/profile"}}
	home.Texts = []string{"Hi, " + a.username}
	a.Page.Route(a.Base+"/", home)
	a.Page.Route(a.Base+"/profile", a.profileDOM())
}

func (a *App) profileDOM() *DOM {
	d := NewDOM()
	d.Add(&Element{ID: "profileForm"}, profileForm)

	a.mu.Lock()
	for _, name := range ProfileFields {
		el := &Element{ID: name, Label: profileLabels[name], value: a.saved[name]}
		a.fields[name] = el
		d.Labeled = append(d.Labeled, el)
		d.Add(el, `input[name="`+name+`"]`, textInputs)
	}
	for i, label := range []string{"Current Password", "New Password", "Confirm Password"} {
		el := &Element{ID: strings.ToLower(strings.ReplaceAll(label, " ", "-")), Label: label}
		a.passwords[i] = el
		d.Labeled = append(d.Labeled, el)
		d.Add(el, passwordInputs)
	}
	a.mu.Unlock()

	save := &Element{ID: "save", Text: "Save"}
	save.OnClick = func(p *Page) { p.SetTexts(a.submit()) }
	d.Buttons = []*Element{save}
	return d
}

// submit validates the form and returns the message it renders.
func (a *App) submit() string {
	a.Page.mu.Lock()
	values := map[string]string{}
	for name, el := range a.fields {
		values[name] = el.value
	}
	current, next, confirm := a.passwords[0].value, a.passwords[1].value, a.passwords[2].value
	a.Page.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case values["firstName"] == "":
		return MsgFirstRequired
	case values["lastName"] == "":
		return MsgLastRequired
	}
	if next != "" || confirm != "" {
		if current != a.password {
			return MsgCurrentMismatch
		}
		if next != confirm || !strongPassword(next) {
			return MsgPasswordRule
		}
		a.password = next
	}
	for name, v := range values {
		if !contains(a.DropOnSave, name) {
			a.saved[name] = v
		}
	}
	a.saves++
	return MsgSaved
}

// reload re-renders the profile form from persisted state.
func (a *App) reload() {
	a.mu.Lock()
	saved := make(map[string]string, len(a.saved))
	for k, v := range a.saved {
		saved[k] = v
	}
	a.mu.Unlock()

	a.Page.mu.Lock()
	defer a.Page.mu.Unlock()
	for name, el := range a.fields {
		el.value = saved[name]
	}
	for _, el := range a.passwords {
		if el != nil {
			el.value = ""
		}
	}
	a.Page.cur.Texts = nil
}

func strongPassword(s string) bool {
	return strings.ToLower(s) != s && strings.ContainsAny(s, "!@#$%^&*()-_=+[]{};:,.<>?/")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
