package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/profilecheck/internal/browser/browsertest"
)

func TestAuthenticateViaKnownPath(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	h := newHarness(t, app.Page)

	res, err := h.flow.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViaPath, res.Via)
	assert.Equal(t, base+"/login", res.LoginURL)
	assert.Equal(t, submitSelector, res.Submit)
	assert.True(t, res.ProfileLinkSeen)
	assert.Equal(t, base+"/", app.Page.URL())
}

func TestAuthenticateViaHomeLink(t *testing.T) {
	page := browsertest.New()
	user := &browsertest.Element{ID: "user"}
	pass := &browsertest.Element{ID: "pass"}
	loggedIn := false
	pass.OnEnter = func(*browsertest.Page) { loggedIn = true }
	login := browsertest.NewDOM().
		Add(user, `input[type="email"]`).
		Add(pass, `input[type="password"]`)
	page.Route(base+"/auth", login)

	home := browsertest.NewDOM()
	home.Links = []*browsertest.Element{{ID: "signin", Text: "Sign in", Href: base + "/auth"}}
	page.Route(base+"/", home)
	h := newHarness(t, page)

	res, err := h.flow.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViaLink, res.Via)
	assert.Equal(t, "enter", res.Submit)
	assert.True(t, loggedIn)
	assert.Equal(t, "alice", user.CurrentValue())
	assert.Equal(t, "Secret!1", pass.CurrentValue())

	navs := page.Navigations()
	require.GreaterOrEqual(t, len(navs), 5)
	for i, p := range loginPaths {
		assert.Equal(t, base+p, navs[i])
	}
	assert.Equal(t, base+"/", navs[len(loginPaths)])

	// No profile link ever showed up, so the flow fell back to the profile URL.
	assert.False(t, res.ProfileLinkSeen)
	assert.Equal(t, base+profilePath, navs[len(navs)-1])
}

func TestAuthenticateSkipsUnreachablePaths(t *testing.T) {
	page := browsertest.New()
	page.FailNavigate[base+"/login"] = errors.New("net::ERR_CONNECTION_RESET")
	user := &browsertest.Element{ID: "user"}
	pass := &browsertest.Element{ID: "pass"}
	submit := &browsertest.Element{ID: "submit"}
	page.Route(base+"/signin", browsertest.NewDOM().
		Add(user, `input[name="username"]`).
		Add(pass, `input[type="password"]`).
		Add(submit, submitSelector))
	h := newHarness(t, page)

	res, err := h.flow.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViaPath, res.Via)
	assert.Equal(t, base+"/signin", res.LoginURL)
	assert.Equal(t, 1, submit.Clicks())
}

func TestAuthenticateUnreachableLoginLink(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	app.Page.FailNavigate[base+"/login"] = errors.New("net::ERR_CONNECTION_RESET")
	h := newHarness(t, app.Page)

	// The home page's login link points at the unreachable path too.
	_, err := h.flow.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrNoLoginFormFound)
}

func TestAuthenticateNoLoginForm(t *testing.T) {
	page := browsertest.New()
	h := newHarness(t, page)

	_, err := h.flow.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrNoLoginFormFound)
	assert.Empty(t, h.artifacts.Artifacts())
}

func TestAuthenticateCredentialFieldsNotFound(t *testing.T) {
	page := browsertest.New()
	pass := &browsertest.Element{ID: "pin"}
	page.Route(base+"/login", browsertest.NewDOM().Add(pass, `input[type="password"]`))
	h := newHarness(t, page)

	_, err := h.flow.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrCredentialFieldsNotFound)

	arts := h.artifacts.Artifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "login", arts[0].Name)
	assert.Contains(t, err.Error(), arts[0].HTML)
	for _, f := range h.debugFiles(t) {
		assert.True(t, strings.HasPrefix(f, "login-"), f)
	}
}

func TestAuthenticateSubmitsByButtonText(t *testing.T) {
	page := browsertest.New()
	user := &browsertest.Element{ID: "user"}
	pass := &browsertest.Element{ID: "pass"}
	btn := &browsertest.Element{ID: "go", Text: "Entrar"}
	d := browsertest.NewDOM().
		Add(user, `input[name="user"]`).
		Add(pass, `input[type="password"]`)
	d.Buttons = []*browsertest.Element{btn}
	page.Route(base+"/login", d)
	h := newHarness(t, page)

	res, err := h.flow.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "button /entrar/", res.Submit)
	assert.Equal(t, 1, btn.Clicks())
}

func TestOpenProfileFollowsLink(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "Secret!1")
	h := newHarness(t, app.Page)
	ctx := context.Background()
	_, err := h.flow.Authenticate(ctx)
	require.NoError(t, err)

	require.NoError(t, h.flow.OpenProfile(ctx))
	assert.Equal(t, base+profilePath, app.Page.URL())
	assert.Empty(t, h.artifacts.Artifacts())
}

func TestOpenProfileNotAuthenticated(t *testing.T) {
	app := browsertest.NewApp(base, "alice", "wrong-password")
	h := newHarness(t, app.Page)
	ctx := context.Background()

	res, err := h.flow.Authenticate(ctx)
	require.NoError(t, err)
	assert.False(t, res.ProfileLinkSeen)

	err = h.flow.OpenProfile(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	arts := h.artifacts.Artifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "profile", arts[0].Name)
}

func TestOpenProfileLenientWhenLinkClicked(t *testing.T) {
	page := browsertest.New()
	home := browsertest.NewDOM()
	home.Links = []*browsertest.Element{{ID: "p", Text: "Profile", Href: base + "/me"}}
	page.Route(base+"/", home)
	h := newHarness(t, page)
	ctx := context.Background()
	require.NoError(t, page.Navigate(ctx, base+"/"))

	require.NoError(t, h.flow.OpenProfile(ctx))
	assert.Equal(t, base+"/me", page.URL())
	assert.Len(t, h.artifacts.Artifacts(), 1)
}
