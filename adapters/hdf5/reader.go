// Package hdf5 reads trained MOFA+ models from their HDF5 container through
// gonum's libhdf5 bindings.
//
// Layout read (as written by mofapy2):
//
//	groups/groups                       group names
//	views/views                         view names
//	samples/<group>                     sample names per group
//	features/<view>                     feature names per view
//	expectations/W/<view>               factors x features
//	expectations/Z/<group>              factors x samples
//	variance_explained/r2_per_factor/<group>   views x factors (optional)
//	variance_explained/r2_total/<group>        views (optional)
package hdf5

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"

	h5 "gonum.org/v1/hdf5"
	"gonum.org/v1/gonum/mat"
)

// Reader implements ports.ModelReader
type Reader struct{}

// NewReader creates an HDF5 model reader
func NewReader() *Reader {
	return &Reader{}
}

// Open decodes the MOFA+ model at path
func (r *Reader) Open(ctx context.Context, path string) (*model.Model, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	err = CheckSignature(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	file, err := h5.OpenFile(path, h5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNotHDF5, err)
	}
	defer file.Close()

	m, err := readModel(ctx, file)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	shape := m.Shape()
	log.Printf("[HDF5Reader] Opened %s in %.2fms (%d cells, %d features, %d factors)",
		path, float64(time.Since(start).Nanoseconds())/1e6, shape.Cells, shape.Features, m.NumFactors())
	return m, nil
}

func readModel(ctx context.Context, file *h5.File) (*model.Model, error) {
	groups, err := readStrings(file, "groups/groups")
	if err != nil {
		return nil, err
	}
	views, err := readStrings(file, "views/views")
	if err != nil {
		return nil, err
	}

	m := &model.Model{
		Groups:       groups,
		Views:        views,
		Samples:      make(map[string][]string, len(groups)),
		Features:     make(map[string][]string, len(views)),
		Weights:      make(map[string]*mat.Dense, len(views)),
		FactorValues: make(map[string]*mat.Dense, len(groups)),
	}

	k := -1
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.Samples[g], err = readStrings(file, "samples/"+g); err != nil {
			return nil, err
		}
		rows, cols, data, err := readMatrix(file, "expectations/Z/"+g)
		if err != nil {
			return nil, err
		}
		if k >= 0 && rows != k {
			return nil, fmt.Errorf("%w: group %q has %d factors, expected %d", core.ErrMalformedModel, g, rows, k)
		}
		k = rows
		m.FactorValues[g] = transposed(rows, cols, data)
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: groups/groups is empty", core.ErrMalformedModel)
	}
	m.Factors = model.FactorNames(k)

	for _, v := range views {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.Features[v], err = readStrings(file, "features/"+v); err != nil {
			return nil, err
		}
		rows, cols, data, err := readMatrix(file, "expectations/W/"+v)
		if err != nil {
			return nil, err
		}
		if rows != k {
			return nil, fmt.Errorf("%w: view %q has %d factors, expected %d", core.ErrMalformedModel, v, rows, k)
		}
		m.Weights[v] = transposed(rows, cols, data)
	}

	if err := readVariance(file, m); err != nil {
		return nil, err
	}
	return m, nil
}

// readVariance fills R2PerFactor and R2Total when the file stores them;
// a file without a variance_explained group is still a valid model.
func readVariance(file *h5.File, m *model.Model) error {
	for _, g := range m.Groups {
		name := "variance_explained/r2_per_factor/" + g
		rows, cols, data, err := readMatrix(file, name)
		if err != nil {
			log.Printf("[HDF5Reader] No per-factor variance explained for group %s: %v", g, err)
			continue
		}
		r2, err := orientR2(rows, cols, data, len(m.Views), m.NumFactors())
		if err != nil {
			return err
		}
		if m.R2PerFactor == nil {
			m.R2PerFactor = make(map[string]*mat.Dense)
		}
		m.R2PerFactor[g] = r2

		tot, err := readVector(file, "variance_explained/r2_total/"+g)
		if err != nil {
			continue
		}
		if m.R2Total == nil {
			m.R2Total = make(map[string][]float64)
		}
		m.R2Total[g] = tot
	}
	return nil
}

func readStrings(file *h5.File, name string) ([]string, error) {
	ds, err := file.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", core.ErrMalformedModel, name)
	}
	defer ds.Close()

	dtype, err := ds.Datatype()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer dtype.Close()
	if dtype.Class() != h5.T_STRING {
		return nil, fmt.Errorf("%w: %s is not a string dataset", core.ErrMalformedModel, name)
	}
	if vl := (h5.VarLenType{Datatype: *dtype}); vl.IsVariableStr() {
		return nil, fmt.Errorf("%w: %s uses variable-length strings", core.ErrMalformedModel, name)
	}

	n, err := elementCount(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	size := int(dtype.Size())
	buf := make([]byte, n*size)
	if n > 0 {
		if err := ds.Read(&buf); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
	}
	return decodeFixedStrings(buf, n, size)
}

func readMatrix(file *h5.File, name string) (rows, cols int, data []float64, err error) {
	dims, data, err := readFloats(file, name)
	if err != nil {
		return 0, 0, nil, err
	}
	if len(dims) != 2 {
		return 0, 0, nil, fmt.Errorf("%w: %s has %d dimensions, expected 2", core.ErrMalformedModel, name, len(dims))
	}
	rows, cols = int(dims[0]), int(dims[1])
	if rows == 0 || cols == 0 {
		return 0, 0, nil, fmt.Errorf("%w: %s is empty", core.ErrMalformedModel, name)
	}
	return rows, cols, data, nil
}

func readVector(file *h5.File, name string) ([]float64, error) {
	dims, data, err := readFloats(file, name)
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("%w: %s has %d dimensions, expected 1", core.ErrMalformedModel, name, len(dims))
	}
	return data, nil
}

// readFloats reads a float32 or float64 dataset in the file's own byte layout
func readFloats(file *h5.File, name string) ([]uint, []float64, error) {
	ds, err := file.OpenDataset(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: missing %s", core.ErrMalformedModel, name)
	}
	defer ds.Close()

	dtype, err := ds.Datatype()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	defer dtype.Close()
	if dtype.Class() != h5.T_FLOAT {
		return nil, nil, fmt.Errorf("%w: %s is not a float dataset", core.ErrMalformedModel, name)
	}

	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}

	switch dtype.Size() {
	case 8:
		data := make([]float64, n)
		if err := ds.Read(&data); err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return dims, data, nil
	case 4:
		data := make([]float32, n)
		if err := ds.Read(&data); err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return dims, float32To64(data), nil
	default:
		return nil, nil, fmt.Errorf("%w: %s has %d-byte floats", core.ErrMalformedModel, name, dtype.Size())
	}
}

func elementCount(ds *h5.Dataset) (int, error) {
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return 0, err
	}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return n, nil
}
