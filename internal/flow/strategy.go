package flow

import (
	"context"
	"time"

	"github.com/v0xg/profilecheck/internal/browser"
	"go.uber.org/zap"
)

// locator is one attempt of a strategy chain. It reports whether it found
// an element instead of raising, so "not found" is ordinary control flow.
type locator struct {
	name string
	find func(ctx context.Context) (browser.Element, bool)
}

// firstMatch tries each locator in order and hands the element to use. The
// first locator whose element use accepts wins and the rest are skipped.
func firstMatch(ctx context.Context, log *zap.Logger, chain []locator, use func(context.Context, browser.Element) error) (string, bool) {
	for _, l := range chain {
		if ctx.Err() != nil {
			return "", false
		}
		el, ok := l.find(ctx)
		if !ok {
			log.Debug("strategy missed", zap.String("strategy", l.name))
			continue
		}
		if err := use(ctx, el); err != nil {
			log.Debug("strategy element unusable", zap.String("strategy", l.name), zap.Error(err))
			continue
		}
		return l.name, true
	}
	return "", false
}

func fill(value string) func(context.Context, browser.Element) error {
	return func(ctx context.Context, el browser.Element) error {
		return el.Fill(ctx, value)
	}
}

func click(ctx context.Context, el browser.Element) error {
	return el.Click(ctx)
}

func first(els []browser.Element, err error) (browser.Element, bool) {
	if err != nil || len(els) == 0 {
		return nil, false
	}
	return els[0], true
}

func byLabel(p browser.Page, pattern string) locator {
	return locator{
		name: "label /" + pattern + "/",
		find: func(ctx context.Context) (browser.Element, bool) {
			return first(p.ByLabel(ctx, pattern))
		},
	}
}

// bySelector waits up to wait for a visible match; with no wait it only
// checks what is already in the document.
func bySelector(p browser.Page, selector string, wait time.Duration) locator {
	return locator{
		name: selector,
		find: func(ctx context.Context) (browser.Element, bool) {
			if wait <= 0 {
				return first(p.QueryAll(ctx, selector))
			}
			el, err := p.Query(ctx, selector, wait)
			return el, err == nil
		},
	}
}

func byIndex(p browser.Page, selector string, index int) locator {
	return locator{
		name: "positional " + selector,
		find: func(ctx context.Context) (browser.Element, bool) {
			els, err := p.QueryAll(ctx, selector)
			if err != nil || index < 0 || len(els) <= index {
				return nil, false
			}
			return els[index], true
		},
	}
}

func byButton(p browser.Page, pattern string) locator {
	return locator{
		name: "button /" + pattern + "/",
		find: func(ctx context.Context) (browser.Element, bool) {
			return first(p.Buttons(ctx, pattern))
		},
	}
}

func byLink(p browser.Page, pattern string) locator {
	return locator{
		name: "link /" + pattern + "/",
		find: func(ctx context.Context) (browser.Element, bool) {
			return first(p.Links(ctx, pattern))
		},
	}
}
