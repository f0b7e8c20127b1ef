package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kris96tian/MOFAX-Online/adapters/export"
	"github.com/kris96tian/MOFAX-Online/domain/model"
	"github.com/kris96tian/MOFAX-Online/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWeightsCSVRoundTrip(t *testing.T) {
	m := testkit.RandomModel(42, []string{"g1", "g2"}, []string{"rna", "atac", "prot"}, 25, 40, 6)
	require.NoError(t, m.Validate())

	w, err := m.WeightTable(model.WeightOptions{})
	require.NoError(t, err)

	data, err := export.CSV(w)
	require.NoError(t, err)

	parsed, err := export.ParseCSV(bytes.NewReader(data), w.Name, len(w.Keys))
	require.NoError(t, err)

	wantRows, wantCols := w.Shape()
	gotRows, gotCols := parsed.Shape()
	assert.Equal(t, wantRows, gotRows)
	assert.Equal(t, wantCols, gotCols)
	assert.Equal(t, w.Keys, parsed.Keys)
	assert.Equal(t, w.Columns, parsed.Columns)
	assert.Equal(t, w.Labels, parsed.Labels)
	assert.Equal(t, w.Values, parsed.Values)
}

func TestVarianceCSVLayout(t *testing.T) {
	m := testkit.SmallModel()
	v, err := m.VarianceExplained(model.VarianceOptions{Groups: []string{"g1"}, Views: []string{"rna"}})
	require.NoError(t, err)

	data, err := export.CSV(v)
	require.NoError(t, err)

	assert.Equal(t, "Group,View,Factor,R2\ng1,rna,Factor1,10\ng1,rna,Factor2,5\ng1,rna,Factor3,1\n", string(data))
}

func TestParseCSVRejectsNonNumeric(t *testing.T) {
	_, err := export.ParseCSV(strings.NewReader("feature,Factor1\ngene1,high\n"), "weights", 1)
	assert.ErrorContains(t, err, "line 2")

	_, err = export.ParseCSV(strings.NewReader(""), "weights", 1)
	assert.Error(t, err)
}

func TestXLSX(t *testing.T) {
	m := testkit.SmallModel()
	w, err := m.WeightTable(model.WeightOptions{})
	require.NoError(t, err)

	data, err := export.Encode(w, export.FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("weights")
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, []string{"feature", "view", "Factor1", "Factor2", "Factor3"}, rows[0])
	assert.Equal(t, []string{"gene2", "rna", "-2", "0.3", "0.1"}, rows[2])
}

func TestParseFormat(t *testing.T) {
	f, err := export.ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, export.FormatXLSX, f)
	assert.Equal(t, "text/csv", export.FormatCSV.ContentType())

	_, err = export.ParseFormat("parquet")
	assert.Error(t, err)
}
