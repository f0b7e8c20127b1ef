package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kris96tian/MOFAX-Online/app"
	"github.com/kris96tian/MOFAX-Online/internal/metrics"
	"github.com/kris96tian/MOFAX-Online/ui/middleware"
	"github.com/kris96tian/MOFAX-Online/ui/services"
	"github.com/kris96tian/MOFAX-Online/ui/templates/fragments"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

//go:embed templates/*.html templates/fragments/*.html static content
var embeddedFiles embed.FS

// Options configures the web server
type Options struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool
}

// Server represents the web server for the MOFA+ dashboard
type Server struct {
	router    *gin.Engine
	service   *app.ExplorationService
	metrics   *metrics.Metrics
	templates *template.Template
	render    *services.RenderService
	about     template.HTML
	opts      Options
	http      *http.Server
}

// NewServer parses the embedded templates and registers every route
func NewServer(service *app.ExplorationService, m *metrics.Metrics, opts Options) (*Server, error) {
	s := &Server{
		router:  gin.New(),
		service: service,
		metrics: m,
		opts:    opts,
	}

	templates, err := parseTemplates(embeddedFiles)
	if err != nil {
		return nil, err
	}
	s.templates = templates
	s.render = services.NewRenderService(templates)

	about, err := fs.ReadFile(embeddedFiles, "content/about.md")
	if err != nil {
		return nil, fmt.Errorf("failed to read about page: %w", err)
	}
	s.about = renderMarkdown(about)

	s.setupMiddleware()
	s.setupRoutes()
	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"fmtFloat": func(x float64) string {
			if math.IsNaN(x) {
				return "NaN"
			}
			return strconv.FormatFloat(x, 'g', 4, 64)
		},
		"join":       strings.Join,
		"add":        func(a, b int) int { return a + b },
		"chartTitle": app.ChartTitle,
		"list":       func(xs ...string) []string { return xs },
	}
}

func parseTemplates(files fs.FS) (*template.Template, error) {
	templatesFS, err := fs.Sub(files, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create templates filesystem: %w", err)
	}

	t := template.New("").Funcs(templateFuncs())
	for _, name := range fragments.GetAllTemplatePaths() {
		content, err := fs.ReadFile(templatesFS, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		if _, err := t.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
	}
	log.Printf("[TemplateInit] Parsed %d templates", len(fragments.GetAllTemplatePaths()))
	return t, nil
}

func renderMarkdown(md []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	return template.HTML(markdown.ToHTML(md, p, r))
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Logger(), gin.Recovery())
	s.router.Use(middleware.ErrorHandler(s.renderError))

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		log.Printf("[setupMiddleware] Error creating static filesystem: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.opts.EnableMetrics && s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	pages := s.router.Group("/", middleware.EnsureSession(false))
	pages.GET("/", s.handleIndex)

	api := s.router.Group("/api", middleware.EnsureSession(false))
	api.GET("/about", s.handleAbout)

	api.POST("/model/upload", s.handleUpload)
	api.DELETE("/model", s.handleUnload)
	api.GET("/model/summary", s.handleSummary)
	api.GET("/model/structure", s.handleStructure)

	api.GET("/tables/:name", s.handleTable)
	api.GET("/charts/:name", s.handleChart)
	api.GET("/export/:file", s.handleExport)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on the configured address until Shutdown
func (s *Server) Start() error {
	log.Printf("Starting MOFAX Online on http://%s", s.opts.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
