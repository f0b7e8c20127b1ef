package services

import (
	"html/template"
	"log"
	"strings"

	"github.com/kris96tian/MOFAX-Online/app"
	"github.com/kris96tian/MOFAX-Online/domain/model"
	"github.com/kris96tian/MOFAX-Online/ui/templates/fragments"
)

// RenderService turns service results into htmx fragments
type RenderService struct {
	templates *template.Template
}

func NewRenderService(templates *template.Template) *RenderService {
	return &RenderService{
		templates: templates,
	}
}

// TableView is the data behind the table fragment
type TableView struct {
	Title   string
	Table   *model.Table
	Total   int
	Preview bool
}

func (s *RenderService) render(name string, data interface{}, fallback string) string {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[ERROR] Failed to render %s template: %v", name, err)
		return fallback
	}
	return buf.String()
}

func (s *RenderService) RenderSummary(summary *app.Summary) string {
	return s.render(fragments.Summary, summary,
		`<div class="panel error">Error rendering model summary</div>`)
}

func (s *RenderService) RenderStructure(structure *app.Structure) string {
	return s.render(fragments.Structure, structure,
		`<div class="panel error">Error rendering model structure</div>`)
}

// RenderTable shows t; total is the row count before truncation
func (s *RenderService) RenderTable(title string, t *model.Table, total int) string {
	return s.render(fragments.Table, TableView{
		Title:   title,
		Table:   t,
		Total:   total,
		Preview: total > t.Len(),
	}, `<div class="panel error">Error rendering table</div>`)
}

func (s *RenderService) RenderError(status int, message string) string {
	data := struct {
		Status  int
		Message string
	}{status, message}
	return s.render(fragments.Error, data,
		`<div class="alert alert-error">`+template.HTMLEscapeString(message)+`</div>`)
}

func (s *RenderService) RenderAbout(body template.HTML) string {
	return s.render(fragments.About, body, `<div class="panel">About is unavailable</div>`)
}
