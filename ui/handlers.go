package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kris96tian/MOFAX-Online/adapters/export"
	"github.com/kris96tian/MOFAX-Online/app"
	"github.com/kris96tian/MOFAX-Online/domain/model"
	"github.com/kris96tian/MOFAX-Online/internal/errors"
	"github.com/kris96tian/MOFAX-Online/ui/middleware"
	"github.com/kris96tian/MOFAX-Online/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

// ModelField is the multipart field carrying the uploaded model
const ModelField = "model"

// previewSizes are the rows x cols shown when a request sets no limits
var previewSizes = map[string][2]int{
	app.TableWeights: {3, 5},
	app.TableFactors: {5, 5},
}

var tableTitles = map[string]string{
	app.TableWeights:       "Weights",
	app.TableFactors:       "Factors",
	app.TableVariance:      "Variance explained",
	app.TableFactorSummary: "Factor summary",
	app.TableTopFeatures:   "Top features",
}

type chartOption struct {
	Name  string
	Title string
}

func (s *Server) handleIndex(c *gin.Context) {
	data := gin.H{
		"Title":    "MOFA+ Model Exploration",
		"DefaultN": s.service.DefaultFeatures(),
		"MinN":     app.MinFeatures,
		"MaxN":     app.MaxFeatures,
		"Charts":   chartOptions(),
		"Summary":  nil,
	}

	summary, err := s.service.Summary(c.Request.Context(), middleware.SessionID(c))
	switch {
	case err == nil:
		data["Summary"] = summary
	case errors.GetCode(err) != errors.CodeNotFound:
		c.Error(err)
		return
	}
	s.renderTemplate(c, fragments.Index, data)
}

func chartOptions() []chartOption {
	out := make([]chartOption, len(app.ChartNames))
	for i, name := range app.ChartNames {
		out[i] = chartOption{Name: name, Title: app.ChartTitle(name)}
	}
	return out
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"loaded_models": s.service.LoadedModels(),
	})
}

func (s *Server) handleAbout(c *gin.Context) {
	renderFragment(c, http.StatusOK, s.render.RenderAbout(s.about))
}

// handleUpload streams the model part straight to the loader so the upload
// limit is enforced without buffering the whole request
func (s *Server) handleUpload(c *gin.Context) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.Error(errors.InvalidInput("expected a multipart form with a " + ModelField + " file"))
		return
	}

	for {
		part, err := mr.NextPart()
		if stderrors.Is(err, io.EOF) {
			c.Error(errors.InvalidInput("no " + ModelField + " file in upload"))
			return
		}
		if err != nil {
			c.Error(errors.WithCode(errors.CodeInvalidInput, err))
			return
		}
		if part.FormName() != ModelField {
			part.Close()
			continue
		}

		summary, err := s.service.Upload(c.Request.Context(), middleware.SessionID(c), part.FileName(), part)
		part.Close()
		if err != nil {
			// a failed upload leaves the session empty; let the page drop the old panels
			c.Header("HX-Trigger", "model-unloaded")
			c.Error(err)
			return
		}

		if isHTMX(c) {
			c.Header("HX-Trigger", "model-loaded")
			renderFragment(c, http.StatusOK, s.render.RenderSummary(summary))
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}
}

func (s *Server) handleUnload(c *gin.Context) {
	if err := s.service.Unload(c.Request.Context(), middleware.SessionID(c)); err != nil {
		c.Error(err)
		return
	}
	if isHTMX(c) {
		c.Header("HX-Trigger", "model-unloaded")
		renderFragment(c, http.StatusOK, `<p class="muted">No model loaded.</p>`)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unloaded"})
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.service.Summary(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		c.Error(err)
		return
	}
	if isHTMX(c) {
		renderFragment(c, http.StatusOK, s.render.RenderSummary(summary))
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleStructure(c *gin.Context) {
	structure, err := s.service.Structure(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		c.Error(err)
		return
	}
	if isHTMX(c) {
		renderFragment(c, http.StatusOK, s.render.RenderStructure(structure))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"weights":         structure.Weights,
		"factors":         structure.Factors,
		"variance_totals": tableJSON(structure.VarianceTotals),
	})
}

func (s *Server) handleTable(c *gin.Context) {
	name := c.Param("name")
	sel, err := parseSelection(c)
	if err != nil {
		c.Error(err)
		return
	}
	rows, cols, err := previewLimits(c, name)
	if err != nil {
		c.Error(err)
		return
	}

	full, err := s.service.Table(c.Request.Context(), middleware.SessionID(c), name, sel)
	if err != nil {
		c.Error(err)
		return
	}
	preview := full.Head(rows, cols)

	if isHTMX(c) {
		renderFragment(c, http.StatusOK, s.render.RenderTable(tableTitles[name], preview, full.Len()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"table":      tableJSON(preview),
		"total_rows": full.Len(),
	})
}

func (s *Server) handleChart(c *gin.Context) {
	sel, err := parseSelection(c)
	if err != nil {
		c.Error(err)
		return
	}
	result, err := s.service.Chart(c.Request.Context(), middleware.SessionID(c), c.Param("name"), sel)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExport(c *gin.Context) {
	name, ext, ok := strings.Cut(c.Param("file"), ".")
	if !ok {
		c.Error(errors.InvalidInput("export path must look like <table>.<csv|xlsx>"))
		return
	}
	format, err := export.ParseFormat(ext)
	if err != nil {
		c.Error(errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	file, err := s.service.Export(c.Request.Context(), middleware.SessionID(c), name, format)
	if err != nil {
		c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// parseSelection reads factor, n_features, view and group from the query
func parseSelection(c *gin.Context) (app.Selection, error) {
	sel := app.Selection{
		Factor:         strings.TrimSpace(c.Query("factor")),
		Views:          nonEmpty(c.QueryArray("view")),
		Groups:         nonEmpty(c.QueryArray("group")),
		LoadingsFactor: strings.TrimSpace(c.Query("loadings_factor")),
	}
	if raw := c.Query("n_features"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return sel, errors.InvalidInput(fmt.Sprintf("n_features must be an integer, got %q", raw))
		}
		sel.NFeatures = n
	}
	return sel, nil
}

// previewLimits reads rows and cols; absent values fall back to the table's
// preview size and 0 means no limit
func previewLimits(c *gin.Context, table string) (int, int, error) {
	def := previewSizes[table]
	rows, err := queryInt(c, "rows", def[0])
	if err != nil {
		return 0, 0, err
	}
	cols, err := queryInt(c, "cols", def[1])
	if err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.InvalidInput(fmt.Sprintf("%s must be a non-negative integer, got %q", key, raw))
	}
	return n, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// tableJSON encodes NaN cells as null, which encoding/json would reject
func tableJSON(t *model.Table) gin.H {
	if t == nil {
		return nil
	}
	return gin.H{
		"name":    t.Name,
		"keys":    t.Keys,
		"columns": t.Columns,
		"labels":  t.Labels,
		"values":  app.Matrix(t.Values),
	}
}
