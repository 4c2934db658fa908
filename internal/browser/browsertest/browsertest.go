// Package browsertest provides an in-memory browser.Page for tests. A Page
// holds one DOM per URL; navigating swaps the current DOM, and elements can
// carry click hooks to model form submissions and in-app links.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/v0xg/profilecheck/internal/browser"
)

// DOM is the content of one URL.
type DOM struct {
	// Selectors maps a CSS selector to its matches in document order.
	Selectors map[string][]*Element
	// Labeled, Links and Buttons are matched by Label / Text.
	Labeled []*Element
	Links   []*Element
	Buttons []*Element
	// Texts is the rendered text of the page.
	Texts []string
	HTML  string
}

// NewDOM returns an empty DOM.
func NewDOM() *DOM {
	return &DOM{Selectors: map[string][]*Element{}}
}

// Add registers el under each selector.
func (d *DOM) Add(el *Element, selectors ...string) *DOM {
	for _, s := range selectors {
		d.Selectors[s] = append(d.Selectors[s], el)
	}
	return d
}

// Element is a fake DOM element.
type Element struct {
	ID     string
	Label  string
	Text   string
	Hidden bool
	// Href makes a click navigate there.
	Href string
	// OnClick runs after a click.
	OnClick func(p *Page)
	// OnEnter runs when Enter is pressed in the element.
	OnEnter func(p *Page)
	// FillErr makes every fill fail.
	FillErr error

	page   *Page
	value  string
	fills  int
	clicks int
}

func (e *Element) Fill(ctx context.Context, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.Hidden {
		return fmt.Errorf("element %s is not visible", e.ID)
	}
	if e.FillErr != nil {
		return e.FillErr
	}
	e.value = value
	e.fills++
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	e.page.mu.Lock()
	if e.Hidden {
		e.page.mu.Unlock()
		return fmt.Errorf("element %s is not visible", e.ID)
	}
	e.clicks++
	e.page.mu.Unlock()

	if e.Href != "" {
		if err := e.page.Navigate(ctx, e.Href); err != nil {
			return err
		}
	}
	if e.OnClick != nil {
		e.OnClick(e.page)
	}
	return nil
}

func (e *Element) PressEnter(ctx context.Context) error {
	if e.OnEnter != nil {
		e.OnEnter(e.page)
	}
	return nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.value, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return !e.Hidden, nil
}

// SetValue presets the element's value.
func (e *Element) SetValue(v string) *Element {
	e.value = v
	return e
}

// CurrentValue returns the value without a context.
func (e *Element) CurrentValue() string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.value
}

// Fills and Clicks count successful interactions.
func (e *Element) Fills() int {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.fills
}

func (e *Element) Clicks() int {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.clicks
}

// Page implements browser.Page over a set of DOMs keyed by URL.
type Page struct {
	mu sync.Mutex

	doms    map[string]*DOM
	cur     *DOM
	url     string
	navs    []string
	reloads int

	// FailNavigate makes navigation to a URL fail.
	FailNavigate map[string]error
	// OnReload runs after every reload.
	OnReload func(p *Page)
	// ShotErr makes screenshots fail.
	ShotErr error
	// Closed is set by Close.
	Closed bool
}

var _ browser.Page = (*Page)(nil)

// New returns a Page on an empty about:blank DOM.
func New() *Page {
	p := &Page{doms: map[string]*DOM{}, FailNavigate: map[string]error{}}
	p.cur = NewDOM()
	p.url = "about:blank"
	return p
}

// Route registers the DOM served at url and binds its elements to p.
func (p *Page) Route(url string, d *DOM) *DOM {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doms[url] = d
	bind := func(els []*Element) {
		for _, el := range els {
			el.page = p
		}
	}
	for _, els := range d.Selectors {
		bind(els)
	}
	bind(d.Labeled)
	bind(d.Links)
	bind(d.Buttons)
	return d
}

// Bind attaches elements created after Route to p.
func (p *Page) Bind(els ...*Element) {
	for _, el := range els {
		el.page = p
	}
}

// Current returns the active DOM.
func (p *Page) Current() *DOM {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// SetTexts replaces the rendered text of the active DOM.
func (p *Page) SetTexts(texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.Texts = texts
}

// URL returns the current URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Navigations returns every URL navigated to, in order.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

// Reloads counts reloads.
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// Close marks the page closed.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navs = append(p.navs, url)
	if err := p.FailNavigate[url]; err != nil {
		return err
	}
	p.url = url
	if d, ok := p.doms[url]; ok {
		p.cur = d
	} else {
		p.cur = NewDOM()
	}
	return nil
}

func (p *Page) WaitIdle(ctx context.Context) {}

func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.reloads++
	hook := p.OnReload
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

var errNotFound = errors.New("no visible element")

func (p *Page) Query(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.cur.Selectors[selector] {
		if !el.Hidden {
			return el, nil
		}
	}
	return nil, fmt.Errorf("wait for %s: %w", selector, errNotFound)
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return elements(p.cur.Selectors[selector], nil), nil
}

func (p *Page) ByLabel(ctx context.Context, pattern string) ([]browser.Element, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return elements(p.cur.Labeled, func(el *Element) bool { return el.Label != "" && re.MatchString(el.Label) }), nil
}

func (p *Page) Links(ctx context.Context, pattern string) ([]browser.Element, error) {
	return p.byText(func(d *DOM) []*Element { return d.Links }, pattern)
}

func (p *Page) Buttons(ctx context.Context, pattern string) ([]browser.Element, error) {
	return p.byText(func(d *DOM) []*Element { return d.Buttons }, pattern)
}

func (p *Page) byText(pick func(*DOM) []*Element, pattern string) ([]browser.Element, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return elements(pick(p.cur), func(el *Element) bool { return !el.Hidden && re.MatchString(el.Text) }), nil
}

func (p *Page) FindText(ctx context.Context, pattern string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	re, err := compile(pattern)
	if err != nil {
		return "", false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.cur.Texts {
		if m := re.FindString(t); m != "" {
			return m, true, nil
		}
	}
	return "", false, nil
}

// Screenshot returns a minimal valid PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if p.ShotErr != nil {
		return nil, p.ShotErr
	}
	return append([]byte(nil), blankPNG...), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur.HTML != "" {
		return p.cur.HTML, nil
	}
	return "<html><body></body></html>", nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

func elements(els []*Element, keep func(*Element) bool) []browser.Element {
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		if keep == nil || keep(el) {
			out = append(out, el)
		}
	}
	return out
}

// blankPNG is a 1x1 transparent image.
var blankPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
