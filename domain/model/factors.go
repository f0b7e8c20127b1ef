package model

import (
	"fmt"

	"github.com/kris96tian/MOFAX-Online/domain/core"
)

// FactorOptions narrows the factor table; zero value means every group and factor
type FactorOptions struct {
	Groups  []string
	Factors []string
}

// FactorTable returns samples x factors, samples concatenated in group order
func (m *Model) FactorTable(opts FactorOptions) (*Table, error) {
	groups, err := m.resolveGroups(opts.Groups)
	if err != nil {
		return nil, err
	}
	fIdx, fNames, err := m.resolveFactors(opts.Factors)
	if err != nil {
		return nil, err
	}

	t := NewTable("factors", []string{"sample", "group"}, fNames)
	row := make([]float64, len(fIdx))
	for _, g := range groups {
		z := m.FactorValues[g]
		for i, sample := range m.Samples[g] {
			for k, j := range fIdx {
				row[k] = z.At(i, j)
			}
			t.AppendRow([]string{sample, g}, row)
		}
	}
	return t, nil
}

// VarianceOptions narrows the variance explained table
type VarianceOptions struct {
	Groups  []string
	Views   []string
	Factors []string
}

// VarianceExplained returns the stored per-factor R2 in long format:
// one row per (group, view, factor)
func (m *Model) VarianceExplained(opts VarianceOptions) (*Table, error) {
	if !m.HasVarianceExplained() {
		return nil, core.ErrNoVarianceExplained
	}
	groups, err := m.resolveGroups(opts.Groups)
	if err != nil {
		return nil, err
	}
	views, err := m.resolveViews(opts.Views)
	if err != nil {
		return nil, err
	}
	fIdx, fNames, err := m.resolveFactors(opts.Factors)
	if err != nil {
		return nil, err
	}

	t := NewTable("variance_explained", []string{"Group", "View", "Factor"}, []string{"R2"})
	for _, g := range groups {
		r2 := m.R2PerFactor[g]
		if r2 == nil {
			continue
		}
		for _, v := range views {
			vi := m.viewIndex(v)
			for k, j := range fIdx {
				t.AppendRow([]string{g, v, fNames[k]}, []float64{r2.At(vi, j)})
			}
		}
	}
	return t, nil
}

// VarianceMatrix returns views x factors for one group, the layout the R2 heatmap needs
func (m *Model) VarianceMatrix(group string) (*Table, error) {
	if !m.HasVarianceExplained() {
		return nil, core.ErrNoVarianceExplained
	}
	if _, err := m.resolveGroups([]string{group}); err != nil {
		return nil, err
	}
	r2 := m.R2PerFactor[group]
	if r2 == nil {
		return nil, fmt.Errorf("%w for group %q", core.ErrNoVarianceExplained, group)
	}

	t := NewTable("variance_explained_"+group, []string{"View"}, m.Factors)
	row := make([]float64, len(m.Factors))
	for vi, v := range m.Views {
		for j := range m.Factors {
			row[j] = r2.At(vi, j)
		}
		t.AppendRow([]string{v}, row)
	}
	return t, nil
}

// VarianceTotals returns the stored total R2 per (group, view). Groups whose
// file entry lacks totals are left out.
func (m *Model) VarianceTotals() *Table {
	t := NewTable("variance_explained_total", []string{"Group", "View"}, []string{"R2"})
	for _, g := range m.Groups {
		tot, ok := m.R2Total[g]
		if !ok {
			continue
		}
		for vi, v := range m.Views {
			t.AppendRow([]string{g, v}, []float64{tot[vi]})
		}
	}
	return t
}

func (m *Model) viewIndex(view string) int {
	for i, v := range m.Views {
		if v == view {
			return i
		}
	}
	return -1
}
