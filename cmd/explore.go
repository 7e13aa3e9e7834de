package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/boxheat-cli/internal/analysis"
	"github.com/KaramelBytes/boxheat-cli/internal/clean"
	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/pipeline"
	"github.com/KaramelBytes/boxheat-cli/internal/render"
	"github.com/KaramelBytes/boxheat-cli/internal/selection"
	"github.com/KaramelBytes/boxheat-cli/internal/utils"
)

var (
	exStrategy   string
	exMethod     string
	exBox        string
	exGroupBy    string
	exHeat       string
	exColormap   string
	exOut        string
	exSheetName  string
	exSheetIndex int
	exWidth      float64
	exHeight     float64
	exQuiet      bool
)

var exploreCmd = &cobra.Command{
	Use:   "explore <file|glob> [more...]",
	Short: "Clean a dataset and write a box plot, heatmap and processed CSV",
	Long: `Loads each file, applies the missing-value strategy, and writes boxplot.png,
heatmap.png and processed_data.csv into the output directory. With several files every
dataset gets its own subdirectory named after the file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		files, err := expandInputs(args)
		if err != nil {
			return err
		}

		strategy, err := clean.ParseStrategy(firstNonEmpty(exStrategy, c.DefaultStrategy))
		if err != nil {
			return err
		}
		method, err := analysis.ParseMethod(firstNonEmpty(exMethod, c.DefaultMethod))
		if err != nil {
			return err
		}
		ropt := render.Options{
			Width:    firstPositive(exWidth, c.ChartWidthIn),
			Height:   firstPositive(exHeight, c.ChartHeightIn),
			Colormap: firstNonEmpty(exColormap, c.Colormap),
		}
		if _, err := render.LookupColormap(ropt.Colormap); err != nil {
			return err
		}

		var sel selection.Selection
		if cmd.Flags().Changed("box") {
			sel.BoxColumns = selection.ParseList(exBox)
		}
		if cmd.Flags().Changed("heat") {
			sel.HeatColumns = selection.ParseList(exHeat)
		}
		sel.GroupBy = strings.TrimSpace(exGroupBy)

		outRoot := firstNonEmpty(exOut, c.OutputDir)
		req := pipeline.Request{Strategy: strategy, Method: method, Select: sel}
		opt := dataset.Options{SheetName: exSheetName, SheetIndex: exSheetIndex}

		used := map[string]int{}
		total := len(files)
		for i, path := range files {
			if !exQuiet && total > 1 {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			outDir := outRoot
			if total > 1 {
				outDir = filepath.Join(outRoot, uniqueBase(path, used))
			}
			if err := exploreFile(path, outDir, opt, req, ropt); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
		}
		return nil
	},
}

func exploreFile(path, outDir string, opt dataset.Options, req pipeline.Request, ropt render.Options) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	s := pipeline.NewSession()
	s.Debugf = debugf
	if err := s.Load(dataset.File{Name: filepath.Base(path), Content: content}, opt); err != nil {
		return err
	}
	res, err := s.Run(req)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if !exQuiet {
		fmt.Printf("✓ Loaded %s: %d rows, numeric=%s categorical=%s\n", filepath.Base(path), s.Dataset().Rows(),
			listOrNone(s.Classification().Numeric), listOrNone(s.Classification().Categorical))
		fmt.Printf("✓ Applied %s: %d rows kept, %d dropped\n", res.Strategy, res.Cleaned.Rows(), res.Dropped)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", w)
	}

	var buf bytes.Buffer
	if res.Box != nil {
		err := s.WriteBoxPlot(&buf, ropt)
		switch {
		case errors.Is(err, render.ErrNothingToDraw):
			fmt.Fprintf(os.Stderr, "⚠ Warning: box plot skipped: %v\n", err)
		case err != nil:
			return err
		default:
			if err := writeOutput(outDir, "boxplot.png", buf.Bytes()); err != nil {
				return err
			}
		}
	}

	for _, n := range res.Notices {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", n.Message)
	}
	if res.Corr != nil {
		buf.Reset()
		if err := s.WriteHeatmap(&buf, ropt); err != nil {
			return err
		}
		if err := writeOutput(outDir, "heatmap.png", buf.Bytes()); err != nil {
			return err
		}
		if !exQuiet {
			printMatrix(res.Corr)
		}
	}

	buf.Reset()
	if err := s.WriteProcessed(&buf); err != nil {
		return err
	}
	return writeOutput(outDir, pipeline.ProcessedFileName, buf.Bytes())
}

func writeOutput(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := utils.SafeWriteFile(path, data); err != nil {
		return err
	}
	if !exQuiet {
		fmt.Printf("✓ Wrote %s\n", path)
	}
	return nil
}

func printMatrix(m *analysis.CorrMatrix) {
	fmt.Printf("Correlation (%s):\n", m.Method)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(append([]string{""}, m.Columns...))
	table.SetAutoFormatHeaders(false)
	for i, name := range m.Columns {
		row := []string{name}
		for _, v := range m.Values[i] {
			row = append(row, render.Annotation(v))
		}
		table.Append(row)
	}
	table.Render()
}

// expandInputs resolves globs, keeps literal paths that exist, and sorts the result.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	for _, a := range args {
		matches, err := filepath.Glob(a)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", a, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(a); err != nil {
				return nil, fmt.Errorf("no files match %s", a)
			}
			matches = []string{a}
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	sort.Strings(files)
	return files, nil
}

// uniqueBase names a per-file output directory, suffixing repeats with __2, __3, ...
func uniqueBase(path string, used map[string]int) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	used[base]++
	if n := used[base]; n > 1 {
		return fmt.Sprintf("%s__%d", base, n)
	}
	return base
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ",")
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	exploreCmd.Flags().StringVar(&exStrategy, "strategy", "", "missing values: drop|mean|median (default from config)")
	exploreCmd.Flags().StringVar(&exMethod, "method", "", "correlation: pearson|spearman|kendall (default from config)")
	exploreCmd.Flags().StringVar(&exBox, "box", "", "comma-separated numeric columns for the box plot (default: first two numeric)")
	exploreCmd.Flags().StringVar(&exGroupBy, "group-by", "", "categorical column to group box plots by")
	exploreCmd.Flags().StringVar(&exHeat, "heat", "", "comma-separated numeric columns for the heatmap (default: all numeric)")
	exploreCmd.Flags().StringVar(&exColormap, "colormap", "", "heatmap colormap: "+strings.Join(render.Colormaps(), "|"))
	exploreCmd.Flags().StringVarP(&exOut, "out", "o", "", "output directory (default from config)")
	exploreCmd.Flags().StringVar(&exSheetName, "sheet-name", "", "spreadsheet sheet name")
	exploreCmd.Flags().IntVar(&exSheetIndex, "sheet-index", 0, "spreadsheet sheet index (1-based)")
	exploreCmd.Flags().Float64Var(&exWidth, "width", 0, "chart width in inches")
	exploreCmd.Flags().Float64Var(&exHeight, "height", 0, "chart height in inches")
	exploreCmd.Flags().BoolVarP(&exQuiet, "quiet", "q", false, "suppress progress output")
}
