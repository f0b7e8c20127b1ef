package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"
)

// Chart names understood by ExplorationService.Chart
const (
	ChartWeightsHeatmap     = "weights-heatmap"
	ChartWeightsCorrelation = "weights-correlation"
	ChartFactorLoadings     = "factor-loadings"
	ChartFactorCorrelation  = "factor-correlation"
	ChartVarianceExplained  = "variance-explained"
	ChartTopWeights         = "top-weights"
)

// ChartNames lists every chart in page order
var ChartNames = []string{
	ChartWeightsHeatmap,
	ChartWeightsCorrelation,
	ChartFactorLoadings,
	ChartFactorCorrelation,
	ChartVarianceExplained,
	ChartTopWeights,
}

var chartTitles = map[string]string{
	ChartWeightsHeatmap:     "Weights heatmap",
	ChartWeightsCorrelation: "Weights correlation",
	ChartFactorLoadings:     "Factor loadings",
	ChartFactorCorrelation:  "Factor correlation matrix",
	ChartVarianceExplained:  "Variance explained",
	ChartTopWeights:         "Top weights",
}

func isChart(name string) bool {
	_, ok := chartTitles[name]
	return ok
}

// ChartTitle returns the heading shown above a chart
func ChartTitle(name string) string {
	if t, ok := chartTitles[name]; ok {
		return t
	}
	return name
}

// heatmapFactors is how many leading factors the weights heatmap covers
const heatmapFactors = 10

// Figure is a plotly figure description. The browser hands it to Plotly.newPlot as is.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one plotly trace; only the fields the dashboard uses are modelled
type Trace struct {
	Type        string     `json:"type"`
	Name        string     `json:"name,omitempty"`
	X           any        `json:"x,omitempty"`
	Y           any        `json:"y,omitempty"`
	Z           Matrix     `json:"z,omitempty"`
	Orientation string     `json:"orientation,omitempty"`
	Colorscale  string     `json:"colorscale,omitempty"`
	ZMin        *float64   `json:"zmin,omitempty"`
	ZMax        *float64   `json:"zmax,omitempty"`
	ColorBar    *ColorBar  `json:"colorbar,omitempty"`
	Marker      *BarMarker `json:"marker,omitempty"`
}

// ColorBar titles a heatmap scale
type ColorBar struct {
	Title string `json:"title"`
}

// BarMarker colours bars individually
type BarMarker struct {
	Color []string `json:"color,omitempty"`
}

// Layout carries the figure-level plotly options
type Layout struct {
	Title   string `json:"title,omitempty"`
	BarMode string `json:"barmode,omitempty"`
	Height  int    `json:"height,omitempty"`
	XAxis   *Axis  `json:"xaxis,omitempty"`
	YAxis   *Axis  `json:"yaxis,omitempty"`
}

// Axis configures one plotly axis
type Axis struct {
	Title     string    `json:"title,omitempty"`
	TickFont  *TickFont `json:"tickfont,omitempty"`
	AutoRange string    `json:"autorange,omitempty"`
	Type      string    `json:"type,omitempty"`
}

// TickFont sets the tick label size
type TickFont struct {
	Size int `json:"size"`
}

// Matrix marshals NaN and infinite cells as null, which plotly leaves blank
type Matrix [][]float64

func (m Matrix) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 16*len(m))
	buf = append(buf, '[')
	for i, row := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		for j, x := range row {
			if j > 0 {
				buf = append(buf, ',')
			}
			if math.IsNaN(x) || math.IsInf(x, 0) {
				buf = append(buf, "null"...)
				continue
			}
			buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
		}
		buf = append(buf, ']')
	}
	buf = append(buf, ']')
	return buf, nil
}

var _ json.Marshaler = Matrix(nil)

// ChartResult is what the chart endpoint returns. Error is set, and Figure
// is nil, when a guarded chart failed.
type ChartResult struct {
	Name   string  `json:"name"`
	Title  string  `json:"title"`
	Figure *Figure `json:"figure,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func ptr(x float64) *float64 { return &x }

// heatmapFigure renders t as a heatmap with rows on y and columns on x
func heatmapFigure(t *model.Table, title, colorscale, scaleTitle string) *Figure {
	return &Figure{
		Data: []Trace{{
			Type:       "heatmap",
			X:          t.Columns,
			Y:          t.RowNames(),
			Z:          Matrix(t.Values),
			Colorscale: colorscale,
			ColorBar:   &ColorBar{Title: scaleTitle},
		}},
		Layout: Layout{
			Title: title,
			YAxis: &Axis{AutoRange: "reversed", Type: "category"},
			XAxis: &Axis{Type: "category"},
		},
	}
}

// WeightsHeatmap shows |w| of the n strongest features of each of the first
// ten factors, rows ordered by first appearance
func WeightsHeatmap(m *model.Model, n int) (*Figure, error) {
	k := min(heatmapFactors, m.NumFactors())
	w, err := m.WeightTable(model.WeightOptions{Factors: m.Factors[:k], Absolute: true})
	if err != nil {
		return nil, err
	}
	top := w.SelectRows(model.TopFeatureUnion(w, n))
	fig := heatmapFigure(top, ChartTitle(ChartWeightsHeatmap), "Viridis", "|weight|")
	fig.Layout.YAxis.TickFont = &TickFont{Size: 6}
	fig.Layout.YAxis.Title = "feature"
	fig.Layout.XAxis.Title = "factor"
	return fig, nil
}

// WeightsCorrelation correlates the weight columns with the diagonal masked
func WeightsCorrelation(m *model.Model) (*Figure, error) {
	w, err := m.WeightTable(model.WeightOptions{})
	if err != nil {
		return nil, err
	}
	corr, err := RankedCorrelation(w)
	if err != nil {
		return nil, err
	}
	fig := heatmapFigure(corr, ChartTitle(ChartWeightsCorrelation), "RdBu", "r")
	fig.Data[0].ZMin, fig.Data[0].ZMax = ptr(-1), ptr(1)
	return fig, nil
}

// FactorLoadings draws one bar trace per factor over every feature.
// A non-empty factor restricts the chart to that factor.
func FactorLoadings(m *model.Model, factor string) (*Figure, error) {
	opts := model.WeightOptions{}
	if factor != "" {
		opts.Factors = []string{factor}
	}
	w, err := m.WeightTable(opts)
	if err != nil {
		return nil, err
	}

	features := w.RowNames()
	fig := &Figure{Layout: Layout{
		Title:   "Factor Loadings",
		BarMode: "relative",
		XAxis:   &Axis{Title: "feature", Type: "category"},
		YAxis:   &Axis{Title: "weight"},
	}}
	for j, f := range w.Columns {
		fig.Data = append(fig.Data, Trace{
			Type: "bar",
			Name: f,
			X:    features,
			Y:    w.ColumnAt(j),
		})
	}
	return fig, nil
}

// FactorCorrelation is the full correlation matrix of the weight columns
func FactorCorrelation(m *model.Model) (*Figure, error) {
	w, err := m.WeightTable(model.WeightOptions{})
	if err != nil {
		return nil, err
	}
	corr := CorrelationMatrix(w)
	fig := heatmapFigure(corr, "Factor Correlation Matrix", "RdBu", "r")
	fig.Data[0].ZMin, fig.Data[0].ZMax = ptr(-1), ptr(1)
	return fig, nil
}

// VarianceExplainedChart draws the stored R2 (views x factors) of one group.
// An empty group selects the first one.
func VarianceExplainedChart(m *model.Model, group string) (*Figure, error) {
	if group == "" {
		group = m.Groups[0]
	}
	r2, err := m.VarianceMatrix(group)
	if err != nil {
		return nil, err
	}
	fig := heatmapFigure(r2, fmt.Sprintf("Variance explained (%%) in %s", group), "Blues", "R2 (%)")
	fig.Data[0].ZMin = ptr(0)
	fig.Layout.XAxis.Title = "factor"
	fig.Layout.YAxis.Title = "view"
	return fig, nil
}

// TopWeights is a horizontal bar chart of the n strongest features of one factor
func TopWeights(m *model.Model, factor string, n int) (*Figure, error) {
	if factor == "" {
		return nil, fmt.Errorf("%w: a factor is required", core.ErrUnknownFactor)
	}
	top, err := m.TopFeatures(factor, n, nil)
	if err != nil {
		return nil, err
	}

	values := top.ColumnAt(0)
	colors := make([]string, len(values))
	for i, x := range values {
		if x < 0 {
			colors[i] = "#d62728"
		} else {
			colors[i] = "#1f77b4"
		}
	}
	return &Figure{
		Data: []Trace{{
			Type:        "bar",
			Name:        factor,
			X:           values,
			Y:           top.RowNames(),
			Orientation: "h",
			Marker:      &BarMarker{Color: colors},
		}},
		Layout: Layout{
			Title: fmt.Sprintf("Top %d features for %s", len(values), factor),
			XAxis: &Axis{Title: "weight"},
			YAxis: &Axis{AutoRange: "reversed", Type: "category"},
		},
	}, nil
}
