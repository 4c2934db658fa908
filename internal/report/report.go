// Package report renders scenario results: a list on the terminal, a
// self-contained HTML page and a machine-readable results.json.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/v0xg/profilecheck/internal/runner"
)

// Run is one invocation of the suite.
type Run struct {
	ID        string          `json:"id"`
	BaseURL   string          `json:"base_url"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration_ns"`
	Results   []runner.Result `json:"results"`
}

// NewRun stamps results with a fresh run ID.
func NewRun(baseURL string, started time.Time, results []runner.Result) Run {
	return Run{
		ID:        uuid.NewString(),
		BaseURL:   baseURL,
		StartedAt: started,
		Duration:  time.Since(started),
		Results:   results,
	}
}

// Summary counts results per status.
type Summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Flaky  int `json:"flaky"`
}

func Summarize(results []runner.Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case runner.Passed:
			s.Passed++
		case runner.Flaky:
			s.Flaky++
		default:
			s.Failed++
		}
	}
	return s
}

func (s Summary) String() string {
	out := fmt.Sprintf("%d passed", s.Passed)
	if s.Flaky > 0 {
		out += fmt.Sprintf(", %d flaky", s.Flaky)
	}
	if s.Failed > 0 {
		out += fmt.Sprintf(", %d failed", s.Failed)
	}
	return out
}

// Failed reports whether any scenario failed.
func Failed(results []runner.Result) bool {
	return Summarize(results).Failed > 0
}

var marks = map[runner.Status]string{
	runner.Passed: "✓",
	runner.Flaky:  "~",
	runner.Failed: "✘",
}

// List prints one line per scenario followed by its error and artifacts
// when it did not pass cleanly, then the summary.
func List(w io.Writer, results []runner.Result) {
	for i, r := range results {
		mark, ok := marks[r.Status]
		if !ok {
			mark = "?"
		}
		fmt.Fprintf(w, "  %s  %d %s %s (%s)\n", mark, i+1, r.ID, r.Title, r.Duration.Round(time.Millisecond))
		if r.Status == runner.Passed {
			continue
		}
		if r.Attempts > 1 {
			fmt.Fprintf(w, "       attempts: %d\n", r.Attempts)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "       %s\n", r.Error)
		}
		for _, a := range r.Artifacts {
			fmt.Fprintf(w, "       artifact: %s\n", a.HTML)
		}
		if r.Trace != "" {
			fmt.Fprintf(w, "       trace: %s\n", r.Trace)
		}
	}
	fmt.Fprintf(w, "\n  %s\n", Summarize(results))
}

// WriteJSON stores run as indented JSON at path.
func WriteJSON(path string, run Run) error {
	data, err := json.MarshalIndent(struct {
		Run
		Summary Summary `json:"summary"`
	}{run, Summarize(run.Results)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Write stores index.html and results.json in dir and returns their paths.
func Write(dir string, run Run) (string, string, error) {
	htmlPath := filepath.Join(dir, "index.html")
	jsonPath := filepath.Join(dir, "results.json")
	if err := WriteHTML(htmlPath, run); err != nil {
		return "", "", err
	}
	if err := WriteJSON(jsonPath, run); err != nil {
		return "", "", err
	}
	return htmlPath, jsonPath, nil
}
