package hdf5

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kris96tian/MOFAX-Online/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	h5 "gonum.org/v1/hdf5"
)

// mofaFile writes datasets into a fresh HDF5 file laid out like mofapy2 output
type mofaFile struct {
	t    *testing.T
	file *h5.File
}

func createMOFAFile(t *testing.T, path string, groups ...string) *mofaFile {
	t.Helper()
	f, err := h5.CreateFile(path, h5.F_ACC_TRUNC)
	require.NoError(t, err)
	mf := &mofaFile{t: t, file: f}
	for _, g := range groups {
		grp, err := f.CreateGroup(g)
		require.NoError(t, err)
		require.NoError(t, grp.Close())
	}
	return mf
}

func (mf *mofaFile) strings(name string, values ...string) {
	mf.t.Helper()
	size := 1
	for _, v := range values {
		if len(v) > size {
			size = len(v)
		}
	}
	buf := make([]byte, len(values)*size)
	for i, v := range values {
		copy(buf[i*size:], v)
	}

	dtype, err := h5.T_C_S1.Copy()
	require.NoError(mf.t, err)
	defer dtype.Close()
	require.NoError(mf.t, dtype.SetSize(size))

	mf.write(name, dtype, []uint{uint(len(values))}, &buf)
}

func (mf *mofaFile) float64s(name string, dims []uint, data []float64) {
	mf.t.Helper()
	mf.write(name, h5.T_NATIVE_DOUBLE, dims, &data)
}

func (mf *mofaFile) float32s(name string, dims []uint, data []float32) {
	mf.t.Helper()
	mf.write(name, h5.T_NATIVE_FLOAT, dims, &data)
}

func (mf *mofaFile) write(name string, dtype *h5.Datatype, dims []uint, data interface{}) {
	mf.t.Helper()
	space, err := h5.CreateSimpleDataspace(dims, nil)
	require.NoError(mf.t, err)
	defer space.Close()

	ds, err := mf.file.CreateDataset(name, dtype, space)
	require.NoError(mf.t, err, name)
	defer ds.Close()
	require.NoError(mf.t, ds.Write(data), name)
}

func (mf *mofaFile) close() {
	mf.t.Helper()
	require.NoError(mf.t, mf.file.Close())
}

var mofaGroups = []string{
	"groups", "views", "samples", "features",
	"expectations", "expectations/W", "expectations/Z",
	"variance_explained", "variance_explained/r2_per_factor", "variance_explained/r2_total",
}

// writeSmallMOFA stores 2 groups (3 and 2 cells), 2 views (3 and 2 features)
// and 2 factors
func writeSmallMOFA(t *testing.T, path string) {
	t.Helper()
	mf := createMOFAFile(t, path, mofaGroups...)
	defer mf.close()

	mf.strings("groups/groups", "g1", "group_two")
	mf.strings("views/views", "rna", "atac")
	mf.strings("samples/g1", "cellA", "cellB", "cellC")
	mf.strings("samples/group_two", "cellD", "cellE")
	mf.strings("features/rna", "gene1", "gene2", "gene3")
	mf.strings("features/atac", "peak1", "peak2")

	// factors x features
	mf.float64s("expectations/W/rna", []uint{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	mf.float32s("expectations/W/atac", []uint{2, 2}, []float32{0.5, -0.5, 1.5, -1.5})
	// factors x samples
	mf.float64s("expectations/Z/g1", []uint{2, 3}, []float64{10, 20, 30, 40, 50, 60})
	mf.float64s("expectations/Z/group_two", []uint{2, 2}, []float64{-1, -2, -3, -4})

	// views x factors
	mf.float64s("variance_explained/r2_per_factor/g1", []uint{2, 2}, []float64{11, 12, 21, 22})
	mf.float64s("variance_explained/r2_per_factor/group_two", []uint{2, 2}, []float64{1, 2, 3, 4})
	mf.float64s("variance_explained/r2_total/g1", []uint{2}, []float64{23, 43})
}

func TestOpenWrittenModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.hdf5")
	writeSmallMOFA(t, path)

	m, err := NewReader().Open(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"g1", "group_two"}, m.Groups)
	assert.Equal(t, []string{"rna", "atac"}, m.Views)
	assert.Equal(t, []string{"Factor1", "Factor2"}, m.Factors)
	assert.Equal(t, []string{"cellD", "cellE"}, m.Samples["group_two"])
	assert.Equal(t, []string{"gene1", "gene2", "gene3"}, m.Features["rna"])

	shape := m.Shape()
	assert.Equal(t, 5, shape.Cells)
	assert.Equal(t, 5, shape.Features)

	// stored factors x features, exposed features x factors
	r, c := m.Weights["rna"].Dims()
	assert.Equal(t, []int{3, 2}, []int{r, c})
	assert.Equal(t, 4.0, m.Weights["rna"].At(0, 1))
	assert.Equal(t, 3.0, m.Weights["rna"].At(2, 0))
	assert.Equal(t, -1.5, m.Weights["atac"].At(1, 1), "float32 datasets are widened")

	r, c = m.FactorValues["g1"].Dims()
	assert.Equal(t, []int{3, 2}, []int{r, c})
	assert.Equal(t, 60.0, m.FactorValues["g1"].At(2, 1))

	require.True(t, m.HasVarianceExplained())
	assert.Equal(t, 12.0, m.R2PerFactor["g1"].At(0, 1))
	assert.Equal(t, 21.0, m.R2PerFactor["g1"].At(1, 0))
	assert.Equal(t, []float64{23, 43}, m.R2Total["g1"])
	assert.NotContains(t, m.R2Total, "group_two", "totals are optional per group")
}

func TestOpenWrittenModelWithoutVariance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novar.hdf5")
	mf := createMOFAFile(t, path, "groups", "views", "samples", "features", "expectations", "expectations/W", "expectations/Z")
	mf.strings("groups/groups", "g1")
	mf.strings("views/views", "rna")
	mf.strings("samples/g1", "c1", "c2")
	mf.strings("features/rna", "f1", "f2", "f3")
	mf.float64s("expectations/W/rna", []uint{1, 3}, []float64{1, 2, 3})
	mf.float64s("expectations/Z/g1", []uint{1, 2}, []float64{4, 5})
	mf.close()

	m, err := NewReader().Open(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, m.HasVarianceExplained())
	assert.Equal(t, 1, m.NumFactors())
}

func TestOpenWrittenModelRejectsBrokenLayouts(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing weights", func(t *testing.T) {
		path := filepath.Join(dir, "noweights.hdf5")
		mf := createMOFAFile(t, path, "groups", "views", "samples", "features", "expectations", "expectations/Z")
		mf.strings("groups/groups", "g1")
		mf.strings("views/views", "rna")
		mf.strings("samples/g1", "c1")
		mf.strings("features/rna", "f1")
		mf.float64s("expectations/Z/g1", []uint{1, 1}, []float64{1})
		mf.close()

		_, err := NewReader().Open(context.Background(), path)
		assert.ErrorIs(t, err, core.ErrMalformedModel)
	})

	t.Run("factor counts disagree", func(t *testing.T) {
		path := filepath.Join(dir, "mismatch.hdf5")
		mf := createMOFAFile(t, path, "groups", "views", "samples", "features", "expectations", "expectations/W", "expectations/Z")
		mf.strings("groups/groups", "g1")
		mf.strings("views/views", "rna")
		mf.strings("samples/g1", "c1")
		mf.strings("features/rna", "f1")
		mf.float64s("expectations/Z/g1", []uint{2, 1}, []float64{1, 2})
		mf.float64s("expectations/W/rna", []uint{3, 1}, []float64{1, 2, 3})
		mf.close()

		_, err := NewReader().Open(context.Background(), path)
		assert.ErrorIs(t, err, core.ErrMalformedModel)
	})
}
