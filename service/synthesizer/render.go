package synthesizer

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/viant/deepresearch/model"
)

//go:embed report.md.tmpl
var defaultTemplate string

var funcMap = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"duration": func(d time.Duration) string {
		return d.Round(time.Second).String()
	},
	"join": func(types []model.SourceType) string {
		var parts []string
		for _, t := range types {
			parts = append(parts, string(t))
		}
		return strings.Join(parts, ", ")
	},
}

// ParseTemplate parses a report template; an empty text yields the built-in
// markdown layout. Templates get date, duration and join helpers.
func ParseTemplate(text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultTemplate
	}
	tmpl, err := template.New("report").Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return tmpl, nil
}

// Render executes tmpl against doc.
func Render(tmpl *template.Template, doc *model.ReportDocument) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
