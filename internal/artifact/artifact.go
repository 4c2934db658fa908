// Package artifact writes DebugArtifacts: a full-page screenshot plus the
// serialized page markup, captured when a lookup strategy chain is exhausted.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshotter is the part of a page an artifact is captured from.
type Snapshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Sink is the on-failure reporter injected into the flow.
type Sink interface {
	Capture(ctx context.Context, page Snapshotter, name string) (Artifact, error)
}

// Artifact points at one screenshot/markup pair on disk. PNG is empty when
// the screenshot could not be taken.
type Artifact struct {
	Name       string    `json:"name"`
	PNG        string    `json:"png,omitempty"`
	HTML       string    `json:"html"`
	CapturedAt time.Time `json:"captured_at"`
}

// Writer stores artifacts as {name}-{epochMillis}.png/.html inside Dir. The
// directory is created on first capture and only ever appended to.
type Writer struct {
	Dir string
	log *zap.Logger
	now func() time.Time
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string, log *zap.Logger) *Writer {
	return &Writer{Dir: dir, log: log, now: time.Now}
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Capture writes one artifact pair. A failed screenshot is logged and
// skipped; only a failure to store the markup is returned.
func (w *Writer) Capture(ctx context.Context, page Snapshotter, name string) (Artifact, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create debug dir: %w", err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("read page markup: %w", err)
	}

	base := unsafeName.ReplaceAllString(name, "_")
	at := w.now()
	htmlPath, stamp, err := createUnique(w.Dir, base, at.UnixMilli(), []byte(html))
	if err != nil {
		return Artifact{}, err
	}
	a := Artifact{Name: name, HTML: htmlPath, CapturedAt: at}

	png, err := page.Screenshot(ctx)
	if err != nil {
		w.log.Warn("debug screenshot failed", zap.String("artifact", name), zap.Error(err))
	} else {
		pngPath := filepath.Join(w.Dir, fmt.Sprintf("%s-%d.png", base, stamp))
		if err := os.WriteFile(pngPath, png, 0o644); err != nil {
			w.log.Warn("write debug screenshot", zap.String("path", pngPath), zap.Error(err))
		} else {
			a.PNG = pngPath
		}
	}

	w.log.Info("debug artifact written", zap.String("html", a.HTML), zap.String("png", a.PNG))
	return a, nil
}

// createUnique claims {base}-{stamp}.html, bumping stamp on collision so
// parallel scenarios never overwrite each other.
func createUnique(dir, base string, stamp int64, data []byte) (string, int64, error) {
	for i := 0; i < 1000; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%s-%d.html", base, stamp))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			stamp++
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("create %s: %w", path, err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return "", 0, fmt.Errorf("write %s: %w", path, werr)
		}
		if cerr != nil {
			return "", 0, fmt.Errorf("close %s: %w", path, cerr)
		}
		return path, stamp, nil
	}
	return "", 0, fmt.Errorf("no free artifact name for %s in %s", base, dir)
}

// Collector records every artifact captured through it, so a scenario can
// list its own artifacts while sharing the underlying Writer.
type Collector struct {
	Sink Sink

	mu        sync.Mutex
	artifacts []Artifact
}

// Capture implements Sink.
func (c *Collector) Capture(ctx context.Context, page Snapshotter, name string) (Artifact, error) {
	a, err := c.Sink.Capture(ctx, page, name)
	if err != nil {
		return a, err
	}
	c.mu.Lock()
	c.artifacts = append(c.artifacts, a)
	c.mu.Unlock()
	return a, nil
}

// Artifacts returns a copy of what has been captured so far.
func (c *Collector) Artifacts() []Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Artifact(nil), c.artifacts...)
}
