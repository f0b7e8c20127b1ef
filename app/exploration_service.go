package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/kris96tian/MOFAX-Online/adapters/export"
	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"
	"github.com/kris96tian/MOFAX-Online/internal/errors"
	"github.com/kris96tian/MOFAX-Online/internal/metrics"
	"github.com/kris96tian/MOFAX-Online/ports"

	"github.com/dustin/go-humanize"
)

// Bounds of the number-of-features selector
const (
	MinFeatures = 1
	MaxFeatures = 20
)

// Table names understood by ExplorationService.Table
const (
	TableWeights       = "weights"
	TableFactors       = "factors"
	TableVariance      = "variance"
	TableFactorSummary = "factor-summary"
	TableTopFeatures   = "top-features"
)

// TableNames lists every table in page order
var TableNames = []string{TableWeights, TableFactors, TableVariance, TableFactorSummary, TableTopFeatures}

// exportNames maps exportable tables to their fixed download names
var exportNames = map[string]string{
	TableWeights:  "weights_data",
	TableVariance: "variance_explained",
	TableFactors:  "factors_data",
}

// Selection carries the user's choices for one request. Zero values mean
// "everything" for the filters and the configured default for NFeatures.
type Selection struct {
	Factor    string
	NFeatures int
	Views     []string
	Groups    []string
	// LoadingsFactor restricts the loadings chart; empty draws every factor
	LoadingsFactor string
	// Rows and Cols truncate table previews; non-positive keeps everything
	Rows int
	Cols int
}

// key renders the parameters a derivation depends on
func (s Selection) key() string {
	return fmt.Sprintf("factor=%s;n=%d;views=%s;groups=%s",
		s.Factor, s.NFeatures, strings.Join(s.Views, ","), strings.Join(s.Groups, ","))
}

// Summary is the headline information about the loaded model
type Summary struct {
	ModelID              string    `json:"model_id"`
	SourceName           string    `json:"source_name"`
	Hash                 string    `json:"sha256"`
	LoadedAt             time.Time `json:"loaded_at"`
	Cells                int       `json:"cells"`
	Features             int       `json:"features"`
	CellsLabel           string    `json:"cells_label"`
	FeaturesLabel        string    `json:"features_label"`
	Groups               []string  `json:"groups"`
	Views                []string  `json:"views"`
	GroupsLabel          string    `json:"groups_label"`
	ViewsLabel           string    `json:"views_label"`
	NumGroups            int       `json:"num_groups"`
	NumViews             int       `json:"num_views"`
	Factors              []string  `json:"factors"`
	NumFactors           int       `json:"num_factors"`
	HasVarianceExplained bool      `json:"has_variance_explained"`
}

// Structure lists the stored matrices of the loaded model
type Structure struct {
	Weights        []model.DatasetInfo `json:"weights"`
	Factors        []model.DatasetInfo `json:"factors"`
	VarianceTotals *model.Table        `json:"variance_totals,omitempty"`
}

// ExportFile is a serialized table ready for download
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExplorationService answers every dashboard request for a session's model
type ExplorationService struct {
	loader   *ModelLoader
	sessions ports.SessionRepository
	cache    *DerivationCache
	metrics  *metrics.Metrics
	defaultN int
}

// NewExplorationService wires the service; defaultN is clamped into the selector bounds
func NewExplorationService(loader *ModelLoader, sessions ports.SessionRepository, cache *DerivationCache, m *metrics.Metrics, defaultN int) *ExplorationService {
	return &ExplorationService{
		loader:   loader,
		sessions: sessions,
		cache:    cache,
		metrics:  m,
		defaultN: clampFeatures(defaultN),
	}
}

// ReleaseFunc returns the callback a session store runs for every model it lets go
func ReleaseFunc(loader *ModelLoader, cache *DerivationCache) func(*model.Model) {
	return func(m *model.Model) {
		if m == nil {
			return
		}
		n := cache.ForgetModel(m.ID)
		loader.Release(m)
		log.Printf("[ExplorationService] Released model %s (%d cached derivations dropped)", m.ID, n)
	}
}

func clampFeatures(n int) int {
	return max(MinFeatures, min(MaxFeatures, n))
}

// LoadedModels reports how many sessions currently hold a model
func (s *ExplorationService) LoadedModels() int {
	return s.sessions.Len()
}

// DefaultFeatures is the n_features used when a request does not set one
func (s *ExplorationService) DefaultFeatures() int {
	return s.defaultN
}

// Upload loads a model and makes it the session's current one. A failed
// upload also unloads the previous model so nothing stale stays on screen.
func (s *ExplorationService) Upload(ctx context.Context, sid core.SessionID, filename string, r io.Reader) (*Summary, error) {
	m, err := s.loader.LoadUpload(ctx, filename, r)
	if err != nil {
		if _, derr := s.sessions.Delete(ctx, sid); derr != nil {
			log.Printf("[ExplorationService] WARNING - failed to clear session %s: %v", sid, derr)
		}
		s.metrics.SetLoadedModels(s.sessions.Len())
		return nil, err
	}

	if _, err := s.sessions.Put(ctx, sid, m); err != nil {
		s.loader.Release(m)
		return nil, errors.Wrap(err, "failed to store model")
	}
	s.metrics.SetLoadedModels(s.sessions.Len())
	log.Printf("[ExplorationService] Session %s loaded %s as model %s", sid, m.SourceName, m.ID)
	return summarize(m), nil
}

// Unload drops the session's model
func (s *ExplorationService) Unload(ctx context.Context, sid core.SessionID) error {
	if _, err := s.sessions.Delete(ctx, sid); err != nil {
		return errors.Wrap(err, "failed to unload model")
	}
	s.metrics.SetLoadedModels(s.sessions.Len())
	return nil
}

// Model returns the session's current model
func (s *ExplorationService) Model(ctx context.Context, sid core.SessionID) (*model.Model, error) {
	m, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, classify(err)
	}
	return m, nil
}

// Summary reports counts and names of the session's model
func (s *ExplorationService) Summary(ctx context.Context, sid core.SessionID) (*Summary, error) {
	m, err := s.Model(ctx, sid)
	if err != nil {
		return nil, err
	}
	return summarize(m), nil
}

func summarize(m *model.Model) *Summary {
	shape := m.Shape()
	return &Summary{
		ModelID:              m.ID.String(),
		SourceName:           m.SourceName,
		Hash:                 m.Hash.String(),
		LoadedAt:             m.LoadedAt,
		Cells:                shape.Cells,
		Features:             shape.Features,
		CellsLabel:           humanize.Comma(int64(shape.Cells)),
		FeaturesLabel:        humanize.Comma(int64(shape.Features)),
		Groups:               append([]string(nil), m.Groups...),
		Views:                append([]string(nil), m.Views...),
		GroupsLabel:          strings.Join(m.Groups, ", "),
		ViewsLabel:           strings.Join(m.Views, ", "),
		NumGroups:            len(m.Groups),
		NumViews:             len(m.Views),
		Factors:              append([]string(nil), m.Factors...),
		NumFactors:           m.NumFactors(),
		HasVarianceExplained: m.HasVarianceExplained(),
	}
}

// Structure lists the weight and factor matrices with their shapes
func (s *ExplorationService) Structure(ctx context.Context, sid core.SessionID) (*Structure, error) {
	m, err := s.Model(ctx, sid)
	if err != nil {
		return nil, err
	}
	st := &Structure{Weights: m.WeightStructure(), Factors: m.FactorStructure()}
	if totals := m.VarianceTotals(); totals.Len() > 0 {
		st.VarianceTotals = totals
	}
	return st, nil
}

// normalize applies the selection defaults against the model
func (s *ExplorationService) normalize(m *model.Model, sel Selection) Selection {
	if sel.NFeatures == 0 {
		sel.NFeatures = s.defaultN
	}
	sel.NFeatures = clampFeatures(sel.NFeatures)
	if sel.Factor == "" && m.NumFactors() > 0 {
		sel.Factor = m.Factors[0]
	}
	return sel
}

// Table derives one named table and truncates it to sel.Rows x sel.Cols
func (s *ExplorationService) Table(ctx context.Context, sid core.SessionID, name string, sel Selection) (*model.Table, error) {
	m, err := s.Model(ctx, sid)
	if err != nil {
		return nil, err
	}
	sel = s.normalize(m, sel)

	t, err := s.table(m, name, sel)
	if err != nil {
		return nil, classify(err)
	}
	return t.Head(sel.Rows, sel.Cols), nil
}

func (s *ExplorationService) table(m *model.Model, name string, sel Selection) (*model.Table, error) {
	switch name {
	case TableWeights:
		return derive(s.cache, m.ID, name, strings.Join(sel.Views, ","), func() (*model.Table, error) {
			return m.WeightTable(model.WeightOptions{Views: sel.Views})
		})
	case TableFactors:
		return derive(s.cache, m.ID, name, strings.Join(sel.Groups, ","), func() (*model.Table, error) {
			return m.FactorTable(model.FactorOptions{Groups: sel.Groups})
		})
	case TableVariance:
		return derive(s.cache, m.ID, name, "views="+strings.Join(sel.Views, ",")+";groups="+strings.Join(sel.Groups, ","), func() (*model.Table, error) {
			return m.VarianceExplained(model.VarianceOptions{Views: sel.Views, Groups: sel.Groups})
		})
	case TableFactorSummary:
		return derive(s.cache, m.ID, name, strings.Join(sel.Views, ","), func() (*model.Table, error) {
			w, err := m.WeightTable(model.WeightOptions{Views: sel.Views})
			if err != nil {
				return nil, err
			}
			return FactorSummary(w)
		})
	case TableTopFeatures:
		return derive(s.cache, m.ID, name, sel.key(), func() (*model.Table, error) {
			return m.TopFeatures(sel.Factor, sel.NFeatures, sel.Views)
		})
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownTable, name)
	}
}

// Chart builds one named figure. The weights correlation is guarded: its
// failure comes back as an inline message, not as an error.
func (s *ExplorationService) Chart(ctx context.Context, sid core.SessionID, name string, sel Selection) (*ChartResult, error) {
	m, err := s.Model(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !isChart(name) {
		return nil, classify(fmt.Errorf("%w: %q", core.ErrUnknownChart, name))
	}
	sel = s.normalize(m, sel)
	result := &ChartResult{Name: name, Title: ChartTitle(name)}

	fig, err := s.chart(m, name, sel)
	if err != nil {
		if name == ChartWeightsCorrelation {
			log.Printf("[ExplorationService] Weights correlation failed for model %s: %v", m.ID, err)
			s.metrics.ObserveChart(name, "caught")
			result.Error = "Failed to plot ranked weights: " + err.Error()
			return result, nil
		}
		s.metrics.ObserveChart(name, "error")
		return nil, classify(err)
	}
	s.metrics.ObserveChart(name, "ok")
	result.Figure = fig
	return result, nil
}

func (s *ExplorationService) chart(m *model.Model, name string, sel Selection) (*Figure, error) {
	switch name {
	case ChartWeightsHeatmap:
		return derive(s.cache, m.ID, name, fmt.Sprintf("n=%d", sel.NFeatures), func() (*Figure, error) {
			return WeightsHeatmap(m, sel.NFeatures)
		})
	case ChartWeightsCorrelation:
		return derive(s.cache, m.ID, name, "", func() (*Figure, error) {
			return WeightsCorrelation(m)
		})
	case ChartFactorLoadings:
		return derive(s.cache, m.ID, name, "factor="+sel.LoadingsFactor, func() (*Figure, error) {
			return FactorLoadings(m, sel.LoadingsFactor)
		})
	case ChartFactorCorrelation:
		return derive(s.cache, m.ID, name, "", func() (*Figure, error) {
			return FactorCorrelation(m)
		})
	case ChartVarianceExplained:
		group := ""
		if len(sel.Groups) > 0 {
			group = sel.Groups[0]
		}
		return derive(s.cache, m.ID, name, "group="+group, func() (*Figure, error) {
			return VarianceExplainedChart(m, group)
		})
	case ChartTopWeights:
		return derive(s.cache, m.ID, name, fmt.Sprintf("factor=%s;n=%d", sel.Factor, sel.NFeatures), func() (*Figure, error) {
			return TopWeights(m, sel.Factor, sel.NFeatures)
		})
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownChart, name)
	}
}

// Export serializes a whole table under its fixed download name
func (s *ExplorationService) Export(ctx context.Context, sid core.SessionID, name string, format export.Format) (*ExportFile, error) {
	base, ok := exportNames[name]
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("table %q cannot be exported", name))
	}
	m, err := s.Model(ctx, sid)
	if err != nil {
		return nil, err
	}
	t, err := s.table(m, name, s.normalize(m, Selection{}))
	if err != nil {
		return nil, classify(err)
	}

	data, err := export.Encode(t, format)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", name)
	}
	return &ExportFile{
		Name:        base + "." + string(format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// classify turns domain errors into coded application errors
func classify(err error) error {
	if err == nil || errors.IsAppError(err) {
		return err
	}
	switch {
	case stderrors.Is(err, core.ErrNoModelLoaded):
		return &errors.AppError{Code: errors.CodeNotFound, Message: "no model loaded, upload a .hdf5 file first", Cause: err}
	case stderrors.Is(err, core.ErrNoVarianceExplained):
		return &errors.AppError{Code: errors.CodeNotFound, Message: "variance explained not available", Cause: err}
	case stderrors.Is(err, core.ErrUnknownFactor),
		stderrors.Is(err, core.ErrUnknownView),
		stderrors.Is(err, core.ErrUnknownGroup),
		stderrors.Is(err, core.ErrUnknownTable),
		stderrors.Is(err, core.ErrUnknownChart):
		return &errors.AppError{Code: errors.CodeInvalidInput, Message: "invalid selection", Cause: err}
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, "request cancelled")
	default:
		return errors.Wrap(err, "derivation failed")
	}
}
