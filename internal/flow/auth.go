package flow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var (
	loginPaths        = []string{"/login", "/signin", "/account/login", "/user/login"}
	loginLinkPatterns = []string{`login`, `sign in`, `signin`, `entrar`, `iniciar sesión`}

	usernameSelectors = []string{
		`input[name="login"]`,
		`input[name="username"]`,
		`input[name="user"]`,
		`input[id*="user"]`,
		`input[type="email"]`,
		`input[placeholder*="user"]`,
		`input[placeholder*="email"]`,
	}
	passwordSelectors = []string{`input[type="password"]`, `input[name*="pass"]`, `input[id*="pass"]`}

	submitButtonPatterns = []string{`login`, `sign in`, `entrar`}
)

const (
	passwordInput       = `input[type="password"]`
	submitSelector      = `button[type="submit"]`
	profileLinkPattern  = `profile`
	profilePath         = "/profile"
	profileFormSelector = `form#profileForm, form[name="profile"]`
)

// How the login form was reached.
const (
	ViaPath    = "path"
	ViaLink    = "link"
	ViaCurrent = "current page"
)

// AuthResult describes how a session was authenticated.
type AuthResult struct {
	Via             string // ViaPath, ViaLink or ViaCurrent
	LoginURL        string // the probed path, when Via is ViaPath
	Submit          string // strategy that submitted the form
	ProfileLinkSeen bool
}

// Authenticate logs the session in with the configured credentials. Each
// probe swallows its own failure; only exhausting every strategy is fatal.
func (f *Flow) Authenticate(ctx context.Context) (AuthResult, error) {
	log := f.log.Named("auth")
	var res AuthResult

	via, loginURL, err := f.findLoginForm(ctx, log)
	if err != nil {
		return res, err
	}
	res.Via, res.LoginURL = via, loginURL
	log.Info("login form located", zap.String("via", via), zap.String("url", loginURL))

	userChain := f.selectorChain(usernameSelectors)
	passChain := f.selectorChain(passwordSelectors)
	_, userOK := firstMatch(ctx, log, userChain, fill(f.opts.Username))
	_, passOK := firstMatch(ctx, log, passChain, fill(f.opts.Password))
	if !userOK || !passOK {
		a := f.capture(ctx, "login")
		log.Error("credential fields not found", zap.Bool("username", userOK), zap.Bool("password", passOK))
		if a != nil {
			return res, fmt.Errorf("%w (debug: %s)", ErrCredentialFieldsNotFound, a.HTML)
		}
		return res, ErrCredentialFieldsNotFound
	}

	res.Submit, err = f.submitLogin(ctx, log)
	if err != nil {
		return res, err
	}

	res.ProfileLinkSeen = poll(ctx, f.opts.Timeouts.Assertion, func(ctx context.Context) bool {
		_, ok := byLink(f.page, profileLinkPattern).find(ctx)
		return ok
	})
	f.profileLinkSeen = res.ProfileLinkSeen
	if !res.ProfileLinkSeen {
		// Best effort only; a failed login surfaces when the profile is opened.
		log.Warn("profile link not visible after login, navigating to profile")
		if err := f.page.Navigate(ctx, f.url(profilePath)); err != nil {
			log.Warn("profile navigation failed", zap.Error(err))
		}
	}
	return res, nil
}

// findLoginForm brings the page to a login form: known paths first, then
// login links on the home page, then whatever page is current.
func (f *Flow) findLoginForm(ctx context.Context, log *zap.Logger) (string, string, error) {
	for _, path := range loginPaths {
		if err := f.page.Navigate(ctx, f.url(path)); err != nil {
			log.Debug("login path unreachable", zap.String("path", path), zap.Error(err))
			continue
		}
		if f.hasPasswordField(ctx) {
			return ViaPath, f.url(path), nil
		}
		log.Debug("no password field", zap.String("path", path))
	}

	if err := f.page.Navigate(ctx, f.url("/")); err != nil {
		return "", "", fmt.Errorf("open home page: %w", err)
	}
	for _, pattern := range loginLinkPatterns {
		links, err := f.page.Links(ctx, pattern)
		if err != nil || len(links) == 0 {
			continue
		}
		if err := links[0].Click(ctx); err != nil {
			log.Debug("login link click failed", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		f.page.WaitIdle(ctx)
		if f.hasPasswordField(ctx) {
			return ViaLink, "", nil
		}
	}

	els, err := f.page.QueryAll(ctx, passwordInput)
	if err != nil || len(els) == 0 {
		return "", "", ErrNoLoginFormFound
	}
	return ViaCurrent, "", nil
}

func (f *Flow) hasPasswordField(ctx context.Context) bool {
	_, err := f.page.Query(ctx, passwordInput, f.opts.Timeouts.Probe)
	return err == nil
}

func (f *Flow) selectorChain(selectors []string) []locator {
	chain := make([]locator, 0, len(selectors))
	for _, sel := range selectors {
		chain = append(chain, bySelector(f.page, sel, f.opts.Timeouts.Field))
	}
	return chain
}

// submitLogin clicks the first submit-like button, or presses Enter in the
// password field when there is none.
func (f *Flow) submitLogin(ctx context.Context, log *zap.Logger) (string, error) {
	chain := []locator{bySelector(f.page, submitSelector, 0)}
	for _, p := range submitButtonPatterns {
		chain = append(chain, byButton(f.page, p))
	}
	if strategy, ok := firstMatch(ctx, log, chain, click); ok {
		return strategy, nil
	}

	els, err := f.page.QueryAll(ctx, passwordInput)
	if err != nil || len(els) == 0 {
		return "", fmt.Errorf("submit login: %w", ErrCredentialFieldsNotFound)
	}
	if err := els[0].PressEnter(ctx); err != nil {
		return "", fmt.Errorf("submit login: %w", err)
	}
	return "enter", nil
}

// OpenProfile brings the session to the profile form, preferring the
// in-app link over a direct navigation. A missing form is only logged and
// captured, unless nothing ever indicated a logged-in session.
func (f *Flow) OpenProfile(ctx context.Context) error {
	log := f.log.Named("auth")

	linked := false
	if links, err := f.page.Links(ctx, profileLinkPattern); err == nil && len(links) > 0 {
		if err := links[0].Click(ctx); err == nil {
			linked = true
		} else {
			log.Debug("profile link click failed", zap.Error(err))
		}
	}
	if !linked {
		if err := f.page.Navigate(ctx, f.url(profilePath)); err != nil {
			return fmt.Errorf("open profile: %w", err)
		}
	}

	if _, err := f.page.Query(ctx, profileFormSelector, f.opts.Timeouts.Probe); err == nil {
		return nil
	}

	a := f.capture(ctx, "profile")
	if !linked && !f.profileLinkSeen {
		if a != nil {
			return fmt.Errorf("%w: no profile link and no profile form (debug: %s)", ErrNotAuthenticated, a.HTML)
		}
		return fmt.Errorf("%w: no profile link and no profile form", ErrNotAuthenticated)
	}
	log.Warn("profile form not visible, continuing")
	return nil
}
