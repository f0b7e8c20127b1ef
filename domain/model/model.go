// Package model holds the in-memory view of a trained MOFA+ model and the
// tables derived from it. A Model is read-only once Validate has passed.
package model

import (
	"fmt"
	"time"

	"github.com/kris96tian/MOFAX-Online/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Model is the handle produced by a ModelReader
type Model struct {
	ID         core.ModelID
	Hash       core.Hash
	SourceName string
	Path       string
	Temporary  bool
	LoadedAt   time.Time

	Groups  []string
	Views   []string
	Factors []string

	Samples  map[string][]string
	Features map[string][]string

	// Weights maps view -> features x factors
	Weights map[string]*mat.Dense
	// FactorValues maps group -> samples x factors
	FactorValues map[string]*mat.Dense
	// R2PerFactor maps group -> views x factors, as stored in the file
	R2PerFactor map[string]*mat.Dense
	// R2Total maps group -> one value per view; optional
	R2Total map[string][]float64
}

// Shape is (cells, features) summed over groups and views
type Shape struct {
	Cells    int
	Features int
}

// DatasetInfo describes one stored matrix for the structure view
type DatasetInfo struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// FactorNames returns Factor1..FactorK
func FactorNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("Factor%d", i+1)
	}
	return names
}

// Shape counts samples over all groups and features over all views
func (m *Model) Shape() Shape {
	var s Shape
	for _, g := range m.Groups {
		s.Cells += len(m.Samples[g])
	}
	for _, v := range m.Views {
		s.Features += len(m.Features[v])
	}
	return s
}

// NumFactors returns K
func (m *Model) NumFactors() int {
	return len(m.Factors)
}

// HasVarianceExplained reports whether any group carries stored R2 values
func (m *Model) HasVarianceExplained() bool {
	return len(m.R2PerFactor) > 0
}

// WeightStructure lists the weight matrices per view, in the orientation
// they are exposed (features x factors)
func (m *Model) WeightStructure() []DatasetInfo {
	out := make([]DatasetInfo, 0, len(m.Views))
	for _, v := range m.Views {
		w := m.Weights[v]
		if w == nil {
			continue
		}
		r, c := w.Dims()
		out = append(out, DatasetInfo{Path: "expectations/W/" + v, Rows: r, Cols: c})
	}
	return out
}

// FactorStructure lists the factor matrices per group (samples x factors)
func (m *Model) FactorStructure() []DatasetInfo {
	out := make([]DatasetInfo, 0, len(m.Groups))
	for _, g := range m.Groups {
		z := m.FactorValues[g]
		if z == nil {
			continue
		}
		r, c := z.Dims()
		out = append(out, DatasetInfo{Path: "expectations/Z/" + g, Rows: r, Cols: c})
	}
	return out
}

// Validate checks that names and matrices agree with each other
func (m *Model) Validate() error {
	k := len(m.Factors)
	if len(m.Groups) == 0 {
		return fmt.Errorf("%w: no groups", core.ErrMalformedModel)
	}
	if len(m.Views) == 0 {
		return fmt.Errorf("%w: no views", core.ErrMalformedModel)
	}
	if k == 0 {
		return fmt.Errorf("%w: no factors", core.ErrMalformedModel)
	}
	if err := checkUnique("group", m.Groups); err != nil {
		return err
	}
	if err := checkUnique("view", m.Views); err != nil {
		return err
	}

	for _, v := range m.Views {
		w, ok := m.Weights[v]
		if !ok || w == nil {
			return fmt.Errorf("%w: no weights for view %q", core.ErrMalformedModel, v)
		}
		r, c := w.Dims()
		if r != len(m.Features[v]) || c != k {
			return fmt.Errorf("%w: weights for view %q are %dx%d, expected %dx%d",
				core.ErrMalformedModel, v, r, c, len(m.Features[v]), k)
		}
	}

	for _, g := range m.Groups {
		z, ok := m.FactorValues[g]
		if !ok || z == nil {
			return fmt.Errorf("%w: no factor values for group %q", core.ErrMalformedModel, g)
		}
		r, c := z.Dims()
		if r != len(m.Samples[g]) || c != k {
			return fmt.Errorf("%w: factors for group %q are %dx%d, expected %dx%d",
				core.ErrMalformedModel, g, r, c, len(m.Samples[g]), k)
		}
	}

	for g, r2 := range m.R2PerFactor {
		r, c := r2.Dims()
		if r != len(m.Views) || c != k {
			return fmt.Errorf("%w: variance explained for group %q is %dx%d, expected %dx%d",
				core.ErrMalformedModel, g, r, c, len(m.Views), k)
		}
	}
	for g, tot := range m.R2Total {
		if len(tot) != len(m.Views) {
			return fmt.Errorf("%w: total variance explained for group %q has %d values, expected %d",
				core.ErrMalformedModel, g, len(tot), len(m.Views))
		}
	}
	return nil
}

func checkUnique(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("%w: duplicate %s %q", core.ErrMalformedModel, kind, n)
		}
		seen[n] = true
	}
	return nil
}

// FactorIndex resolves a factor id to its column
func (m *Model) FactorIndex(name string) (int, error) {
	for i, f := range m.Factors {
		if f == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", core.ErrUnknownFactor, name)
}

// resolveFactors returns column indices and names; nil means all factors
func (m *Model) resolveFactors(names []string) ([]int, []string, error) {
	if len(names) == 0 {
		idx := make([]int, len(m.Factors))
		for i := range idx {
			idx[i] = i
		}
		return idx, append([]string(nil), m.Factors...), nil
	}
	idx := make([]int, 0, len(names))
	for _, n := range names {
		i, err := m.FactorIndex(n)
		if err != nil {
			return nil, nil, err
		}
		idx = append(idx, i)
	}
	return idx, append([]string(nil), names...), nil
}

func (m *Model) resolveViews(names []string) ([]string, error) {
	return resolve(names, m.Views, core.ErrUnknownView)
}

func (m *Model) resolveGroups(names []string) ([]string, error) {
	return resolve(names, m.Groups, core.ErrUnknownGroup)
}

func resolve(names, known []string, unknown error) ([]string, error) {
	if len(names) == 0 {
		return append([]string(nil), known...), nil
	}
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	for _, n := range names {
		if !set[n] {
			return nil, fmt.Errorf("%w: %q", unknown, n)
		}
	}
	return append([]string(nil), names...), nil
}
