package app

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/kris96tian/MOFAX-Online/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func figureJSON(t *testing.T, fig *Figure) string {
	t.Helper()
	data, err := json.Marshal(fig)
	require.NoError(t, err)
	return string(data)
}

func TestWeightsHeatmap(t *testing.T) {
	fig, err := WeightsHeatmap(testkit.SmallModel(), 2)
	require.NoError(t, err)
	js := figureJSON(t, fig)

	assert.Equal(t, "heatmap", gjson.Get(js, "data.0.type").String())
	assert.Equal(t, "Viridis", gjson.Get(js, "data.0.colorscale").String())
	assert.Equal(t, int64(6), gjson.Get(js, "data.0.y.#").Int())
	assert.Equal(t, "gene2/rna", gjson.Get(js, "data.0.y.0").String())
	assert.Equal(t, 2.0, gjson.Get(js, "data.0.z.0.0").Float(), "values are absolute")
	assert.Equal(t, int64(6), gjson.Get(js, "layout.yaxis.tickfont.size").Int())
}

func TestWeightsHeatmapCoversFirstTenFactors(t *testing.T) {
	m := testkit.RandomModel(3, []string{"g1"}, []string{"rna"}, 10, 30, 15)
	fig, err := WeightsHeatmap(m, 1)
	require.NoError(t, err)
	js := figureJSON(t, fig)

	assert.Equal(t, int64(10), gjson.Get(js, "data.0.x.#").Int())
	assert.Equal(t, "Factor10", gjson.Get(js, "data.0.x.9").String())
	assert.LessOrEqual(t, gjson.Get(js, "data.0.y.#").Int(), int64(10))
}

func TestWeightsCorrelationMasksDiagonal(t *testing.T) {
	fig, err := WeightsCorrelation(testkit.SmallModel())
	require.NoError(t, err)
	js := figureJSON(t, fig)

	assert.Equal(t, gjson.Null, gjson.Get(js, "data.0.z.0.0").Type)
	assert.Equal(t, gjson.Number, gjson.Get(js, "data.0.z.0.1").Type)
	assert.Equal(t, -1.0, gjson.Get(js, "data.0.zmin").Float())
}

func TestFactorLoadings(t *testing.T) {
	m := testkit.SmallModel()

	all, err := FactorLoadings(m, "")
	require.NoError(t, err)
	js := figureJSON(t, all)
	assert.Equal(t, int64(3), gjson.Get(js, "data.#").Int())
	assert.Equal(t, "relative", gjson.Get(js, "layout.barmode").String())
	assert.Equal(t, int64(7), gjson.Get(js, "data.0.x.#").Int())

	one, err := FactorLoadings(m, "Factor2")
	require.NoError(t, err)
	js = figureJSON(t, one)
	assert.Equal(t, int64(1), gjson.Get(js, "data.#").Int())
	assert.Equal(t, "Factor2", gjson.Get(js, "data.0.name").String())

	_, err = FactorLoadings(m, "Factor9")
	assert.Error(t, err)
}

func TestVarianceExplainedChart(t *testing.T) {
	m := testkit.SmallModel()
	fig, err := VarianceExplainedChart(m, "")
	require.NoError(t, err)
	js := figureJSON(t, fig)

	assert.Equal(t, []string{"rna", "atac"}, []string{gjson.Get(js, "data.0.y.0").String(), gjson.Get(js, "data.0.y.1").String()})
	assert.Equal(t, 10.0, gjson.Get(js, "data.0.z.0.0").Float())
	assert.Contains(t, gjson.Get(js, "layout.title").String(), "g1")

	_, err = VarianceExplainedChart(m, "g9")
	assert.Error(t, err)
}

func TestTopWeights(t *testing.T) {
	fig, err := TopWeights(testkit.SmallModel(), "Factor1", 3)
	require.NoError(t, err)
	js := figureJSON(t, fig)

	assert.Equal(t, "h", gjson.Get(js, "data.0.orientation").String())
	assert.Equal(t, int64(3), gjson.Get(js, "data.0.y.#").Int())
	assert.Equal(t, "gene2/rna", gjson.Get(js, "data.0.y.0").String())
	assert.Equal(t, -2.0, gjson.Get(js, "data.0.x.0").Float())
	assert.Equal(t, "#d62728", gjson.Get(js, "data.0.marker.color.0").String())
}

func TestMatrixMarshalsNaNAsNull(t *testing.T) {
	data, err := json.Marshal(Matrix{{1, math.NaN()}, {math.Inf(1), 0.5}})
	require.NoError(t, err)
	assert.Equal(t, "[[1,null],[null,0.5]]", string(data))
}
