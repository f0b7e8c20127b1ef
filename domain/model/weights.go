package model

import (
	"math"
	"sort"
)

// WeightOptions narrows the weight table; zero value means every view and factor
type WeightOptions struct {
	Views    []string
	Factors  []string
	Absolute bool
	// Scale divides every weight by the largest absolute weight in the selection
	Scale bool
}

// WeightTable returns features x factors, features concatenated in view order
func (m *Model) WeightTable(opts WeightOptions) (*Table, error) {
	views, err := m.resolveViews(opts.Views)
	if err != nil {
		return nil, err
	}
	fIdx, fNames, err := m.resolveFactors(opts.Factors)
	if err != nil {
		return nil, err
	}

	t := NewTable("weights", []string{"feature", "view"}, fNames)
	row := make([]float64, len(fIdx))
	for _, v := range views {
		w := m.Weights[v]
		for i, feature := range m.Features[v] {
			for k, j := range fIdx {
				x := w.At(i, j)
				if opts.Absolute {
					x = math.Abs(x)
				}
				row[k] = x
			}
			t.AppendRow([]string{feature, v}, row)
		}
	}

	if opts.Scale {
		maxAbs := 0.0
		for _, r := range t.Values {
			for _, x := range r {
				maxAbs = math.Max(maxAbs, math.Abs(x))
			}
		}
		if maxAbs > 0 {
			for _, r := range t.Values {
				for j := range r {
					r[j] /= maxAbs
				}
			}
		}
	}
	return t, nil
}

// TopFeatures ranks the features of one factor by absolute weight and keeps
// at most n rows. Weights keep their sign.
func (m *Model) TopFeatures(factor string, n int, views []string) (*Table, error) {
	w, err := m.WeightTable(WeightOptions{Views: views, Factors: []string{factor}})
	if err != nil {
		return nil, err
	}
	order := rankByAbs(w.ColumnAt(0))
	if n < len(order) {
		order = order[:max(n, 0)]
	}
	top := w.SelectRows(order)
	top.Name = "top_features"
	return top, nil
}

// TopFeatureUnion returns, for every numeric column of t, the n rows with the
// largest absolute value, merged in first-seen order without duplicates
func TopFeatureUnion(t *Table, n int) []int {
	seen := make(map[int]bool)
	var out []int
	for j := range t.Columns {
		order := rankByAbs(t.ColumnAt(j))
		if n < len(order) {
			order = order[:max(n, 0)]
		}
		for _, i := range order {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}

// rankByAbs orders indices by descending |x|; ties keep their input order
func rankByAbs(xs []float64) []int {
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(xs[order[a]]) > math.Abs(xs[order[b]])
	})
	return order
}
