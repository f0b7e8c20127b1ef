package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kris96tian/MOFAX-Online/adapters/export"
	"github.com/kris96tian/MOFAX-Online/adapters/hdf5"
	"github.com/kris96tian/MOFAX-Online/app"
	"github.com/kris96tian/MOFAX-Online/domain/model"
	"github.com/kris96tian/MOFAX-Online/ports"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(hdf5.NewReader()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(reader ports.ModelReader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mofax-cli",
		Short:         "Inspect and export trained MOFA+ models from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	loader := app.NewModelLoader(reader, os.TempDir(), 0, nil)
	rootCmd.AddCommand(
		newSummaryCmd(loader),
		newTopCmd(loader),
		newExportCmd(loader),
	)
	return rootCmd
}

func loadModel(ctx context.Context, loader *app.ModelLoader, path string) (*model.Model, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return loader.LoadPath(ctx, path)
}

func newSummaryCmd(loader *app.ModelLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [model.hdf5]",
		Short: "Print cells, features, groups, views and factors of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(cmd.Context(), loader, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			shape := m.Shape()

			fmt.Fprintf(out, "Model:    %s (sha256 %s)\n", m.SourceName, m.Hash.Short())
			fmt.Fprintf(out, "Cells:    %s\n", humanize.Comma(int64(shape.Cells)))
			fmt.Fprintf(out, "Features: %s\n", humanize.Comma(int64(shape.Features)))
			fmt.Fprintf(out, "Groups:   %s\n", strings.Join(m.Groups, ", "))
			fmt.Fprintf(out, "Views:    %s\n", strings.Join(m.Views, ", "))
			fmt.Fprintf(out, "Factors:  %d\n", m.NumFactors())

			fmt.Fprintf(out, "\nDatasets:\n")
			for _, d := range append(m.WeightStructure(), m.FactorStructure()...) {
				fmt.Fprintf(out, "  %-32s %6d x %d\n", d.Path, d.Rows, d.Cols)
			}
			if !m.HasVarianceExplained() {
				fmt.Fprintf(out, "\nNo variance explained stored.\n")
			}
			return nil
		},
	}
}

func newTopCmd(loader *app.ModelLoader) *cobra.Command {
	var factor string
	var nFeatures int
	var views []string

	cmd := &cobra.Command{
		Use:   "top [model.hdf5]",
		Short: "List the features with the largest absolute weight on a factor",
		Example: `mofax-cli top model.hdf5 --factor Factor2 --n-features 10
mofax-cli top model.hdf5 --view rna`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nFeatures < app.MinFeatures || nFeatures > app.MaxFeatures {
				return fmt.Errorf("--n-features must be between %d and %d", app.MinFeatures, app.MaxFeatures)
			}
			m, err := loadModel(cmd.Context(), loader, args[0])
			if err != nil {
				return err
			}
			if factor == "" {
				factor = m.Factors[0]
			}
			top, err := m.TopFeatures(factor, nFeatures, views)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Top %d features for %s\n", top.Len(), factor)
			for i := range top.Values {
				fmt.Fprintf(out, "%3d. %-30s %-10s % .4f\n", i+1, top.Labels[i][0], top.Labels[i][1], top.Values[i][0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&factor, "factor", "", "Factor to rank (default: the first factor)")
	cmd.Flags().IntVar(&nFeatures, "n-features", 5, "Number of features to list (1-20)")
	cmd.Flags().StringSliceVar(&views, "view", nil, "Restrict ranking to these views")
	return cmd
}

var exportFileNames = map[string]string{
	"weights":  "weights_data",
	"variance": "variance_explained",
	"factors":  "factors_data",
}

func newExportCmd(loader *app.ModelLoader) *cobra.Command {
	var table, formatName, output string
	var check bool

	cmd := &cobra.Command{
		Use:   "export [model.hdf5]",
		Short: "Write the weights, variance explained or factors table to CSV or XLSX",
		Example: `mofax-cli export model.hdf5 --table weights
mofax-cli export model.hdf5 --table variance --format xlsx --output r2.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, ok := exportFileNames[table]
			if !ok {
				return fmt.Errorf("unknown table %q (use weights, variance or factors)", table)
			}
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			m, err := loadModel(cmd.Context(), loader, args[0])
			if err != nil {
				return err
			}

			t, err := buildExportTable(m, table)
			if err != nil {
				return err
			}
			data, err := export.Encode(t, format)
			if err != nil {
				return err
			}

			if check {
				if format != export.FormatCSV {
					return fmt.Errorf("--check only applies to csv exports")
				}
				if err := checkRoundTrip(t, data); err != nil {
					return err
				}
			}

			if output == "" {
				output = base + "." + string(format)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			rows, cols := t.Shape()
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d rows x %d columns, %s)\n",
				filepath.Base(output), rows, cols, humanize.Bytes(uint64(len(data))))
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "weights", "Table to export: weights, variance or factors")
	cmd.Flags().StringVar(&formatName, "format", "csv", "Output format: csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: the table's download name)")
	cmd.Flags().BoolVar(&check, "check", false, "Re-parse the CSV and verify it matches the model")
	return cmd
}

func buildExportTable(m *model.Model, table string) (*model.Table, error) {
	switch table {
	case "weights":
		return m.WeightTable(model.WeightOptions{})
	case "variance":
		return m.VarianceExplained(model.VarianceOptions{})
	default:
		return m.FactorTable(model.FactorOptions{})
	}
}

func checkRoundTrip(t *model.Table, data []byte) error {
	parsed, err := export.ParseCSV(bytes.NewReader(data), t.Name, len(t.Keys))
	if err != nil {
		return fmt.Errorf("round trip failed: %w", err)
	}
	wantRows, wantCols := t.Shape()
	gotRows, gotCols := parsed.Shape()
	if wantRows != gotRows || wantCols != gotCols {
		return fmt.Errorf("round trip changed shape from %dx%d to %dx%d", wantRows, wantCols, gotRows, gotCols)
	}
	for i := range t.Values {
		for j := range t.Values[i] {
			if t.Values[i][j] != parsed.Values[i][j] {
				return fmt.Errorf("round trip changed %s/%s", t.RowName(i), t.Columns[j])
			}
		}
	}
	return nil
}
