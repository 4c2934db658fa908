// Package browser drives a headless Chromium through rod. A Browser is
// launched once per run; every scenario gets its own Session on a fresh
// incognito context so cookies and storage never leak between scenarios.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/v0xg/profilecheck/internal/trace"
	"go.uber.org/zap"
)

// Options configures the browser behavior
type Options struct {
	Headless      bool
	Stealth       bool   // apply go-rod/stealth evasions to every page
	Bin           string // Chromium binary; looked up (or downloaded) when empty
	Width         int
	Height        int
	ActionTimeout time.Duration
	Log           *zap.Logger
}

// Browser wraps the rod browser and the launcher that started it.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
}

// Launch starts Chromium and connects to it.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	l := launcher.New().Context(ctx).Headless(opts.Headless)
	if bin != "" {
		l = l.Bin(bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().Context(ctx).ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	opts.Log.Info("browser launched", zap.String("control_url", u), zap.Bool("headless", opts.Headless))

	return &Browser{browser: b, launcher: l, opts: opts}, nil
}

// Open creates an isolated Session. When rec is non-nil every navigation,
// fill and click is recorded into it.
func (b *Browser) Open(ctx context.Context, rec *trace.Recorder) (*Session, error) {
	inc, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito context: %w", err)
	}

	var page *rod.Page
	if b.opts.Stealth {
		page, err = stealth.Page(inc)
	} else {
		page, err = inc.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = inc.Close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if b.opts.Width > 0 && b.opts.Height > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.opts.Width,
			Height:            b.opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			b.opts.Log.Warn("set viewport", zap.Error(err))
		}
	}

	return &Session{
		page:          page,
		incognito:     inc,
		rec:           rec,
		actionTimeout: b.opts.ActionTimeout,
		log:           b.opts.Log,
	}, nil
}

// Close shuts the browser down and removes its temporary profile.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}
