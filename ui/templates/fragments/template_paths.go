// Package fragments provides template names for the htmx fragments
package fragments

import "strings"

// Template names, as registered from ui/templates
const (
	// Page
	Index = "index.html"

	// Model panels
	Summary   = "fragments/summary.html"
	Structure = "fragments/structure.html"

	// Data panels
	Table = "fragments/table.html"

	// Status
	Error = "fragments/error.html"
	About = "fragments/about.html"
)

// GetAllTemplatePaths returns all template paths for registration
func GetAllTemplatePaths() []string {
	return []string{
		Index,
		Summary,
		Structure,
		Table,
		Error,
		About,
	}
}

// GetTemplateCategory returns the category for a given template path
func GetTemplateCategory(templatePath string) string {
	switch {
	case strings.HasPrefix(templatePath, "fragments/"):
		return "fragment"
	case strings.HasSuffix(templatePath, ".html"):
		return "page"
	default:
		return "unknown"
	}
}
