// Package report writes the markdown record of a chat session.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// TimeLayout is how the session start time is printed.
const TimeLayout = "Mon 02-Jan-2006 15:04 MST"

const fence = "```"

var headerTmpl = template.Must(template.New("header").Parse(
	`# LLM Chat Session with ragbench

<p align="center">{{.Time}}</p>

## Experiment settings

` + fence + `yaml
{{.Settings}}
` + fence + `

## Chat

`))

var turnTmpl = template.Must(template.New("turn").Funcs(template.FuncMap{
	"list": func(v []string) string { return "[" + strings.Join(v, ", ") + "]" },
}).Parse(
	`Q: {{.Question}}

A: {{.Answer}}

{{range .Sources}}Source document: {{.Document}}, Pages used: {{list .Pages}}

{{end}}`))

// Source names a document and the pages of it an answer drew on.
type Source struct {
	Document string
	Pages    []string
}

// Writer appends chat turns to a markdown file, writing the header on
// first use.
type Writer struct {
	path     string
	settings string
	now      func() time.Time
}

// New returns a Writer for path. settings is the composed configuration
// as YAML.
func New(path, settings string) *Writer {
	return &Writer{path: path, settings: strings.TrimRight(settings, "\n"), now: time.Now}
}

// AppendTurn adds one question and answer with its sources.
func (w *Writer) AppendTurn(question, answer string, sources []Source) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	_, err := os.Stat(w.path)
	fresh := errors.Is(err, os.ErrNotExist)
	if err != nil && !fresh {
		return err
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if fresh {
		err := headerTmpl.Execute(f, struct{ Time, Settings string }{
			Time:     w.now().Format(TimeLayout),
			Settings: w.settings,
		})
		if err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
	}
	err = turnTmpl.Execute(f, struct {
		Question, Answer string
		Sources          []Source
	}{question, strings.TrimSpace(answer), sources})
	if err != nil {
		return fmt.Errorf("write report turn: %w", err)
	}
	return f.Close()
}
