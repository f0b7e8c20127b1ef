// Package testkit provides model fixtures and a file-backed fake reader so
// packages above the HDF5 adapter can be tested without libhdf5.
package testkit

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"

	"gonum.org/v1/gonum/mat"
)

// SmallModel returns a hand-written model with two groups, two views and
// three factors. Values are chosen so that rankings are unambiguous.
//
//	rna  weights:  gene1 [ 0.5 -0.1  0.0 ]  atac weights: peak1 [ 0.2 0.4  0.9 ]
//	               gene2 [-2.0  0.3  0.1 ]                peak2 [-0.3 0.0 -1.1 ]
//	               gene3 [ 1.0  0.8 -0.2 ]                peak3 [0.05 2.5  0.3 ]
//	               gene4 [ 0.1 -1.5 0.05 ]
func SmallModel() *model.Model {
	m := &model.Model{
		Groups:  []string{"g1", "g2"},
		Views:   []string{"rna", "atac"},
		Factors: model.FactorNames(3),
		Samples: map[string][]string{
			"g1": {"cellA", "cellB", "cellC"},
			"g2": {"cellD", "cellE"},
		},
		Features: map[string][]string{
			"rna":  {"gene1", "gene2", "gene3", "gene4"},
			"atac": {"peak1", "peak2", "peak3"},
		},
		Weights: map[string]*mat.Dense{
			"rna": mat.NewDense(4, 3, []float64{
				0.5, -0.1, 0.0,
				-2.0, 0.3, 0.1,
				1.0, 0.8, -0.2,
				0.1, -1.5, 0.05,
			}),
			"atac": mat.NewDense(3, 3, []float64{
				0.2, 0.4, 0.9,
				-0.3, 0.0, -1.1,
				0.05, 2.5, 0.3,
			}),
		},
		FactorValues: map[string]*mat.Dense{
			"g1": mat.NewDense(3, 3, []float64{
				1, 0, 2,
				0.5, 1, -1,
				-1, 2, 0,
			}),
			"g2": mat.NewDense(2, 3, []float64{
				0.2, -0.3, 1.5,
				2, 1, 0.5,
			}),
		},
		R2PerFactor: map[string]*mat.Dense{
			"g1": mat.NewDense(2, 3, []float64{10, 5, 1, 3, 8, 2}),
			"g2": mat.NewDense(2, 3, []float64{7, 4, 0.5, 2, 6, 1.5}),
		},
		R2Total: map[string][]float64{
			"g1": {16.5, 13.2},
			"g2": {11.8, 9.9},
		},
	}
	return m
}

// RandomModel builds a model with normally distributed weights and factors
func RandomModel(seed int64, groups, views []string, samplesPerGroup, featuresPerView, k int) *model.Model {
	rng := rand.New(rand.NewSource(seed))
	m := &model.Model{
		Groups:       append([]string(nil), groups...),
		Views:        append([]string(nil), views...),
		Factors:      model.FactorNames(k),
		Samples:      make(map[string][]string),
		Features:     make(map[string][]string),
		Weights:      make(map[string]*mat.Dense),
		FactorValues: make(map[string]*mat.Dense),
		R2PerFactor:  make(map[string]*mat.Dense),
	}
	for _, v := range views {
		names := make([]string, featuresPerView)
		for i := range names {
			names[i] = fmt.Sprintf("%s_feature%d", v, i+1)
		}
		m.Features[v] = names
		m.Weights[v] = randomDense(rng, featuresPerView, k)
	}
	for _, g := range groups {
		names := make([]string, samplesPerGroup)
		for i := range names {
			names[i] = fmt.Sprintf("%s_cell%d", g, i+1)
		}
		m.Samples[g] = names
		m.FactorValues[g] = randomDense(rng, samplesPerGroup, k)
		r2 := mat.NewDense(len(views), k, nil)
		for i := 0; i < len(views); i++ {
			for j := 0; j < k; j++ {
				r2.Set(i, j, rng.Float64()*20)
			}
		}
		m.R2PerFactor[g] = r2
	}
	return m
}

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// FakeReader resolves model files by the hash of their bytes. Files whose
// content was never registered fail the way a non-HDF5 upload does.
type FakeReader struct {
	mu     sync.Mutex
	models map[core.Hash]*model.Model
	Opened int
}

// NewFakeReader creates an empty fake reader
func NewFakeReader() *FakeReader {
	return &FakeReader{models: make(map[core.Hash]*model.Model)}
}

// Register maps content to a model fixture and returns the content for convenience
func (r *FakeReader) Register(content []byte, m *model.Model) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[core.NewHash(content)] = m
	return content
}

// Open reads the file at path and returns a fresh copy of its registered fixture
func (r *FakeReader) Open(ctx context.Context, path string) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Opened++
	m, ok := r.models[core.NewHash(data)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotHDF5, path)
	}
	clone := *m
	return &clone, nil
}
