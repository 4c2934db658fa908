package runner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/profilecheck/internal/artifact"
	"github.com/v0xg/profilecheck/internal/browser/browsertest"
	"github.com/v0xg/profilecheck/internal/config"
	"github.com/v0xg/profilecheck/internal/flow"
	"github.com/v0xg/profilecheck/internal/scenario"
	"github.com/v0xg/profilecheck/internal/trace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	base     = "http://app.test"
	username = "Dav0903"
	password = "@Prueba321"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		BaseURL:  base,
		Username: username,
		Password: password,
		Timeouts: config.Timeouts{
			Scenario:  5 * time.Second,
			Assertion: 300 * time.Millisecond,
			Action:    300 * time.Millisecond,
			Probe:     20 * time.Millisecond,
			Field:     20 * time.Millisecond,
			Selector:  20 * time.Millisecond,
		},
		Retries:   1,
		Trace:     config.TraceOnFirstRetry,
		Workers:   1,
		DebugDir:  filepath.Join(dir, "debug"),
		ReportDir: filepath.Join(dir, "report"),
	}
}

func newRunner(t *testing.T, cfg *config.Config, open Opener) *Runner {
	log := zaptest.NewLogger(t)
	return New(cfg, open, artifact.NewWriter(cfg.DebugDir, log), log)
}

// appOpener serves a fresh compliant app per attempt; tweak adjusts the
// app for the nth attempt (0-based).
func appOpener(tweak func(n int, app *browsertest.App)) (Opener, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context, rec *trace.Recorder) (Page, error) {
		n := int(calls.Add(1)) - 1
		app := browsertest.NewApp(base, username, password)
		if tweak != nil {
			tweak(n, app)
		}
		return app.Page, nil
	}, &calls
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRunPasses(t *testing.T) {
	cfg := testConfig(t)
	open, calls := appOpener(nil)

	results := newRunner(t, cfg, open).Run(context.Background(), scenario.All())
	require.Len(t, results, 5)
	for i, res := range results {
		assert.Equal(t, scenario.All()[i].ID, res.ID)
		assert.Equal(t, Passed, res.Status, "%s: %v", res.ID, res.Err)
		assert.Equal(t, 1, res.Attempts)
		assert.Empty(t, res.Trace)
	}
	assert.EqualValues(t, 5, calls.Load())
}

func TestRunRetriesAndTraces(t *testing.T) {
	cfg := testConfig(t)
	frame := pngFrame(t)
	var traced []bool
	var mu sync.Mutex
	open := func(ctx context.Context, rec *trace.Recorder) (Page, error) {
		mu.Lock()
		first := len(traced) == 0
		traced = append(traced, rec != nil)
		mu.Unlock()

		app := browsertest.NewApp(base, username, password)
		if first {
			app.DropOnSave = []string{"phone"}
		}
		if rec != nil {
			assert.NoError(t, rec.Record(frame, &image.Point{X: 10, Y: 10}))
			assert.NoError(t, rec.Record(frame, nil))
		}
		return app.Page, nil
	}

	sel, err := scenario.Select(scenario.All(), []string{"CP-05"}, "")
	require.NoError(t, err)
	results := newRunner(t, cfg, open).Run(context.Background(), sel)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, Flaky, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.NoError(t, res.Err)
	assert.Equal(t, []bool{false, true}, traced)

	require.Equal(t, filepath.Join(cfg.ReportDir, "CP-05-trace.gif"), res.Trace)
	f, err := os.Open(res.Trace)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
}

func TestRunFailsAfterRetries(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trace = config.TraceOff
	open, calls := appOpener(func(_ int, app *browsertest.App) {
		app.DropOnSave = []string{"hobby"}
	})

	sel, err := scenario.Select(scenario.All(), []string{"CP-05"}, "")
	require.NoError(t, err)
	res := newRunner(t, cfg, open).Run(context.Background(), sel)[0]

	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.EqualValues(t, 2, calls.Load())
	var at *flow.AssertionTimeoutError
	require.True(t, errors.As(res.Err, &at))
	assert.Equal(t, res.Err.Error(), res.Error)
	assert.Empty(t, res.Trace)
}

func TestRunCollectsArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retries = 0
	open := func(ctx context.Context, rec *trace.Recorder) (Page, error) {
		return browsertest.New(), nil
	}

	res := newRunner(t, cfg, open).Run(context.Background(), scenario.All()[:1])[0]
	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, flow.ErrNoLoginFormFound)

	open2, _ := appOpener(nil)
	missing := scenario.Scenario{ID: "X-01", Title: "missing field", Run: func(ctx context.Context, f *flow.Flow) error {
		return f.ResolveAndFill(ctx, flow.FieldSpec{Name: "nickname", Label: "nickname", FallbackIndex: flow.NoFallback}, "x")
	}}
	res = newRunner(t, cfg, open2).Run(context.Background(), []scenario.Scenario{missing})[0]
	require.Equal(t, Failed, res.Status)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "setfield", res.Artifacts[0].Name)
	assert.FileExists(t, res.Artifacts[0].HTML)
}

func TestRunOpenError(t *testing.T) {
	cfg := testConfig(t)
	boom := errors.New("browser crashed")
	open := func(ctx context.Context, rec *trace.Recorder) (Page, error) {
		return nil, boom
	}

	res := newRunner(t, cfg, open).Run(context.Background(), scenario.All()[:1])[0]
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.ErrorIs(t, res.Err, boom)
}

func TestRunScenarioTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retries = 0
	cfg.Timeouts.Scenario = 300 * time.Millisecond
	open, _ := appOpener(nil)
	stuck := scenario.Scenario{ID: "X-02", Title: "stuck", Run: func(ctx context.Context, f *flow.Flow) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	res := newRunner(t, cfg, open).Run(context.Background(), []scenario.Scenario{stuck})[0]
	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Contains(t, res.Error, "scenario timed out after 300ms")
}

func TestRunClosesSessions(t *testing.T) {
	cfg := testConfig(t)
	var pages []*browsertest.Page
	var mu sync.Mutex
	open := func(ctx context.Context, rec *trace.Recorder) (Page, error) {
		app := browsertest.NewApp(base, username, password)
		mu.Lock()
		pages = append(pages, app.Page)
		mu.Unlock()
		return app.Page, nil
	}

	newRunner(t, cfg, open).Run(context.Background(), scenario.All()[1:3])
	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.True(t, p.Closed)
	}
}

func TestRunBoundsParallelism(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 2
	var inFlight, peak atomic.Int32
	open, _ := appOpener(nil)
	slow := func(id string) scenario.Scenario {
		return scenario.Scenario{ID: id, Run: func(ctx context.Context, f *flow.Flow) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			return nil
		}}
	}

	scs := []scenario.Scenario{slow("A"), slow("B"), slow("C"), slow("D"), slow("E")}
	results := newRunner(t, cfg, open).Run(context.Background(), scs)
	require.Len(t, results, 5)
	for i, res := range results {
		assert.Equal(t, scs[i].ID, res.ID)
		assert.Equal(t, Passed, res.Status)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(2), peak.Load())
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	open, calls := appOpener(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newRunner(t, cfg, open).Run(ctx, scenario.All()[:2])
	for _, res := range results {
		assert.Equal(t, Failed, res.Status)
		assert.Zero(t, res.Attempts)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Zero(t, calls.Load())
}
