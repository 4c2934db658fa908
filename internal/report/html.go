package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/nfnt/resize"

	"github.com/v0xg/profilecheck/internal/runner"
)

const (
	thumbWidth  = 320
	thumbHeight = 240
)

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(d time.Duration) string { return d.Round(time.Millisecond).String() },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>profilecheck {{.Run.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
.passed { color: #1a7f37; } .failed { color: #cf222e; } .flaky { color: #9a6700; }
.scenario { border: 1px solid #ddd; border-radius: 4px; padding: .5em 1em; margin: .5em 0; }
pre { white-space: pre-wrap; background: #f6f8fa; padding: .5em; }
img { border: 1px solid #ccc; margin: .25em; }
</style>
</head>
<body>
<h1>profilecheck</h1>
<p>Run <code>{{.Run.ID}}</code> against <a href="{{.Run.BaseURL}}">{{.Run.BaseURL}}</a>,
started {{.Run.StartedAt.Format "2006-01-02 15:04:05"}}, took {{ms .Run.Duration}}.</p>
<p>{{.Summary}}</p>
{{range .Scenarios}}
<div class="scenario">
<h2 class="{{.Status}}">{{.ID}} {{.Title}} <small>{{.Status}} in {{ms .Duration}}{{if gt .Attempts 1}}, {{.Attempts}} attempts{{end}}</small></h2>
{{if .Error}}<pre>{{.Error}}</pre>{{end}}
{{range .Shots}}
<figure>
{{if .Thumb}}<a href="{{.PNG}}"><img src="{{.Thumb}}" alt="{{.Name}}"></a>{{end}}
<figcaption>{{.Name}}: <a href="{{.HTML}}">markup</a>{{if .PNG}}, <a href="{{.PNG}}">screenshot</a>{{end}}</figcaption>
</figure>
{{end}}
{{if .Trace}}<p>Trace: <a href="{{.Trace}}"><img src="{{.Trace}}" alt="trace" width="{{$.TraceWidth}}"></a></p>{{end}}
</div>
{{end}}
</body>
</html>
`))

type shot struct {
	Name  string
	PNG   string
	HTML  string
	Thumb template.URL
}

type scenarioView struct {
	runner.Result
	Shots []shot
}

// WriteHTML renders run to path. Screenshots are embedded as thumbnails;
// links point at the original files relative to the report.
func WriteHTML(path string, run Run) error {
	dir := filepath.Dir(path)
	view := struct {
		Run        Run
		Summary    Summary
		Scenarios  []scenarioView
		TraceWidth int
	}{Run: run, Summary: Summarize(run.Results), TraceWidth: thumbWidth * 2}

	for _, r := range run.Results {
		sv := scenarioView{Result: r}
		sv.Trace = relative(dir, r.Trace)
		for _, a := range r.Artifacts {
			s := shot{Name: a.Name, HTML: relative(dir, a.HTML), PNG: relative(dir, a.PNG)}
			if a.PNG != "" {
				if uri, err := thumbnail(a.PNG); err == nil {
					s.Thumb = uri
				}
			}
			sv.Shots = append(sv.Shots, s)
		}
		view.Scenarios = append(view.Scenarios, sv)
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, view); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// thumbnail returns the PNG at path scaled into a data URI.
func thumbnail(path string) (template.URL, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	small := resize.Thumbnail(thumbWidth, thumbHeight, img, resize.Bilinear)

	var buf bytes.Buffer
	if err := png.Encode(&buf, small); err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

func relative(dir, path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(absDir, abs); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
