// Package renderer turns position reports into markdown or CSV.
//
// Markdown reports are assembled from text/template files embedded in the
// package: an assembly template (e.g. "positions.md") includes partials named
// after it (e.g. "positions_lots.md").
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed *.md
var templates embed.FS

// RenderPositions renders the current positions, and the sold history when present.
func RenderPositions(p *Positions) string {
	partials := map[string]string{
		"positions_securities": "positions_securities.md",
		"positions_lots":       "positions_lots.md",
		"positions_sold":       "positions_sold.md",
		"positions_missing":    "positions_missing.md",
	}
	if !p.WithSold {
		partials["positions_sold"] = ""
	}
	return renderTemplate("positions", "positions.md", partials, p)
}

// RenderTaxFree renders the tax free lots.
func RenderTaxFree(t *TaxFree) string {
	partials := map[string]string{
		"taxfree_securities": "taxfree_securities.md",
		"taxfree_lots":       "taxfree_lots.md",
		"positions_missing":  "positions_missing.md",
	}
	return renderTemplate("taxfree", "taxfree.md", partials, t)
}

// RenderTickers renders the ticker mapping table.
func RenderTickers(t *Tickers) string {
	return renderTemplate("tickers", "tickers.md", nil, t)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		// An empty file name is a valid case, resulting in an empty template.
		if file != "" {
			var readErr error
			content, readErr = fs.ReadFile(templates, file)
			if readErr != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, readErr)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
