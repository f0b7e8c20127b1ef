package app

import (
	"fmt"
	"math"

	"github.com/kris96tian/MOFAX-Online/domain/model"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	gstat "gonum.org/v1/gonum/stat"
)

var factorSummaryColumns = []string{"mean", "std", "min", "max", "median"}

// FactorSummary describes the weight distribution of every factor column:
// one row per factor with mean, sample standard deviation, min, max and median
func FactorSummary(weights *model.Table) (*model.Table, error) {
	out := model.NewTable("factor_summary", []string{"factor"}, factorSummaryColumns)
	for j, factor := range weights.Columns {
		col := stats.Float64Data(weights.ColumnAt(j))
		if col.Len() == 0 {
			return nil, fmt.Errorf("factor %s has no weights", factor)
		}

		mean, err := col.Mean()
		if err != nil {
			return nil, fmt.Errorf("mean of %s: %w", factor, err)
		}
		std := math.NaN()
		if col.Len() > 1 {
			if std, err = col.StandardDeviationSample(); err != nil {
				return nil, fmt.Errorf("std of %s: %w", factor, err)
			}
		}
		lo, err := col.Min()
		if err != nil {
			return nil, fmt.Errorf("min of %s: %w", factor, err)
		}
		hi, err := col.Max()
		if err != nil {
			return nil, fmt.Errorf("max of %s: %w", factor, err)
		}
		median, err := col.Median()
		if err != nil {
			return nil, fmt.Errorf("median of %s: %w", factor, err)
		}

		out.AppendRow([]string{factor}, []float64{mean, std, lo, hi, median})
	}
	return out, nil
}

// CorrelationMatrix returns the Pearson correlation between every pair of
// numeric columns. Columns without variance yield NaN entries.
func CorrelationMatrix(t *model.Table) *model.Table {
	cols := make([][]float64, len(t.Columns))
	for j := range t.Columns {
		cols[j] = t.ColumnAt(j)
	}

	out := model.NewTable(t.Name+"_correlation", []string{"factor"}, t.Columns)
	row := make([]float64, len(cols))
	for i := range cols {
		for j := range cols {
			switch {
			case i == j && !constant(cols[i]):
				row[j] = 1
			case len(cols[i]) < 2:
				row[j] = math.NaN()
			default:
				row[j] = gstat.Correlation(cols[i], cols[j], nil)
			}
		}
		out.AppendRow([]string{t.Columns[i]}, row)
	}
	return out
}

// RankedCorrelation is the weights correlation with its diagonal masked.
// It fails when there is nothing to correlate, so callers can report it inline.
func RankedCorrelation(weights *model.Table) (*model.Table, error) {
	if len(weights.Columns) < 2 {
		return nil, fmt.Errorf("at least two factors are required, model has %d", len(weights.Columns))
	}
	if weights.Len() < 2 {
		return nil, fmt.Errorf("at least two features are required, model has %d", weights.Len())
	}
	for j, factor := range weights.Columns {
		if constant(weights.ColumnAt(j)) {
			return nil, fmt.Errorf("weights of %s have zero variance", factor)
		}
	}

	corr := CorrelationMatrix(weights)
	for i := range corr.Values {
		corr.Values[i][i] = math.NaN()
	}
	corr.Name = "weights_correlation"
	return corr, nil
}

func constant(xs []float64) bool {
	if len(xs) == 0 {
		return true
	}
	return floats.Max(xs) == floats.Min(xs)
}
