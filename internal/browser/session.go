package browser

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/v0xg/profilecheck/internal/trace"
	"go.uber.org/zap"
)

// idleWindow is how long the network must be quiet to count as idle.
const idleWindow = 500 * time.Millisecond

// Session is one browser tab bound to one incognito context.
type Session struct {
	page          *rod.Page
	incognito     *rod.Browser
	rec           *trace.Recorder
	actionTimeout time.Duration
	log           *zap.Logger
}

var _ Page = (*Session)(nil)

// Close disposes the tab and its incognito context.
func (s *Session) Close() error {
	_ = s.page.Close()
	return s.incognito.Close()
}

// bounded returns the page bound to ctx with the action timeout applied.
func (s *Session) bounded(ctx context.Context, d time.Duration) (*rod.Page, context.CancelFunc) {
	if d <= 0 {
		d = s.actionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return s.page.Context(ctx), cancel
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	p, cancel := s.bounded(ctx, 0)
	defer cancel()

	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	s.record(ctx, nil)
	return nil
}

func (s *Session) WaitIdle(ctx context.Context) {
	// Don't hang on persistent connections (WebSockets, polling, etc.)
	p, cancel := s.bounded(ctx, 5*time.Second)
	defer cancel()
	p.WaitRequestIdle(idleWindow, nil, nil, nil)()
}

func (s *Session) Reload(ctx context.Context) error {
	p, cancel := s.bounded(ctx, 0)
	defer cancel()

	if err := p.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("reload: wait load: %w", err)
	}
	s.record(ctx, nil)
	return nil
}

func (s *Session) Query(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	p, cancel := s.bounded(ctx, timeout)
	defer cancel()

	el, err := p.ElementByJS(rod.Eval(jsFirstVisible, selector))
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", selector, err)
	}
	return s.wrap(el), nil
}

func (s *Session) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return s.wrapAll(els), nil
}

func (s *Session) ByLabel(ctx context.Context, pattern string) ([]Element, error) {
	return s.elementsByJS(ctx, rod.Eval(jsByLabel, pattern))
}

func (s *Session) Links(ctx context.Context, pattern string) ([]Element, error) {
	return s.elementsByJS(ctx, rod.Eval(jsByRole, linkSelector, pattern))
}

func (s *Session) Buttons(ctx context.Context, pattern string) ([]Element, error) {
	return s.elementsByJS(ctx, rod.Eval(jsByRole, buttonSelector, pattern))
}

func (s *Session) elementsByJS(ctx context.Context, opts *rod.EvalOptions) ([]Element, error) {
	p, cancel := s.bounded(ctx, 0)
	defer cancel()

	els, err := p.ElementsByJS(opts)
	if err != nil {
		return nil, err
	}
	return s.wrapAll(els), nil
}

func (s *Session) FindText(ctx context.Context, pattern string) (string, bool, error) {
	p, cancel := s.bounded(ctx, 0)
	defer cancel()

	res, err := p.Eval(jsFindText, pattern)
	if err != nil {
		return "", false, fmt.Errorf("find text: %w", err)
	}
	return res.Value.Get("text").Str(), res.Value.Get("found").Bool(), nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// record adds a trace frame, marking the centre of el when given.
func (s *Session) record(ctx context.Context, el *rod.Element) {
	if s.rec == nil {
		return
	}
	var mark *image.Point
	if el != nil {
		if x, y, err := elementCenter(el); err == nil {
			mark = &image.Point{X: x, Y: y}
		}
	}
	data, err := s.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		s.log.Debug("trace frame skipped", zap.Error(err))
		return
	}
	if err := s.rec.Record(data, mark); err != nil {
		s.log.Debug("trace frame rejected", zap.Error(err))
	}
}

func (s *Session) wrap(el *rod.Element) *element {
	return &element{el: el, s: s}
}

func (s *Session) wrapAll(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, s.wrap(el))
	}
	return out
}

type element struct {
	el *rod.Element
	s  *Session
}

func (e *element) bounded(ctx context.Context) (*rod.Element, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, e.s.actionTimeout)
	return e.el.Context(ctx), cancel
}

// Fill replaces the element's value, like a user selecting all and typing.
func (e *element) Fill(ctx context.Context, value string) error {
	el, cancel := e.bounded(ctx)
	defer cancel()

	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	if value == "" {
		if _, err := el.Eval(jsClearValue); err != nil {
			return fmt.Errorf("fill: clear: %w", err)
		}
	} else {
		if err := el.SelectAllText(); err != nil {
			return fmt.Errorf("fill: select: %w", err)
		}
		if err := el.Input(value); err != nil {
			return fmt.Errorf("fill: input: %w", err)
		}
	}
	e.s.record(ctx, e.el)
	return nil
}

func (e *element) Click(ctx context.Context) error {
	el, cancel := e.bounded(ctx)
	defer cancel()

	e.s.record(ctx, e.el)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (e *element) PressEnter(ctx context.Context) error {
	el, cancel := e.bounded(ctx)
	defer cancel()

	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	e.s.record(ctx, e.el)
	return nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	el, cancel := e.bounded(ctx)
	defer cancel()

	v, err := el.Property("value")
	if err != nil {
		return "", fmt.Errorf("read value: %w", err)
	}
	return v.Str(), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	el, cancel := e.bounded(ctx)
	defer cancel()
	return el.Visible()
}

func elementCenter(el *rod.Element) (int, int, error) {
	box, err := el.Shape()
	if err != nil {
		return 0, 0, err
	}

	if len(box.Quads) == 0 {
		return 0, 0, fmt.Errorf("element has no shape")
	}

	quad := box.Quads[0]
	x := int((quad[0] + quad[2] + quad[4] + quad[6]) / 4)
	y := int((quad[1] + quad[3] + quad[5] + quad[7]) / 4)

	return x, y, nil
}
