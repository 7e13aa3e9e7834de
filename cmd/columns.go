package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/boxheat-cli/internal/analysis"
	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/utils"
)

var (
	colOutput     string
	colSampleRows int
	colMethod     string
	colSheetName  string
	colSheetIndex int
)

var columnsCmd = &cobra.Command{
	Use:   "columns <file>",
	Short: "Show how a dataset's columns are classified, with a preview of the first rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		ds, err := dataset.Load(dataset.File{Name: filepath.Base(path), Content: content},
			dataset.Options{SheetName: colSheetName, SheetIndex: colSheetIndex})
		if err != nil {
			return err
		}
		cls, err := dataset.Classify(ds)
		if err != nil {
			return err
		}
		debugf("columns: numeric=%v categorical=%v", cls.Numeric, cls.Categorical)

		rep := analysis.Summarize(ds, cls, colSampleRows)
		if colMethod != "" && len(cls.Numeric) >= 2 {
			m, err := analysis.ParseMethod(colMethod)
			if err != nil {
				return err
			}
			corr, err := analysis.Correlate(ds, cls.Numeric, m)
			if err != nil {
				return err
			}
			rep.Corr = corr
		}

		md := rep.Markdown()
		if colOutput == "" {
			fmt.Print(md)
			return nil
		}
		if err := utils.SafeWriteFile(colOutput, []byte(md)); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote summary to %s\n", colOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	columnsCmd.Flags().StringVarP(&colOutput, "output", "o", "", "write the summary markdown to a file instead of stdout")
	columnsCmd.Flags().IntVar(&colSampleRows, "sample-rows", 5, "rows to preview")
	columnsCmd.Flags().StringVar(&colMethod, "corr", "", "also list the strongest correlations: pearson|spearman|kendall")
	columnsCmd.Flags().StringVar(&colSheetName, "sheet-name", "", "spreadsheet sheet name")
	columnsCmd.Flags().IntVar(&colSheetIndex, "sheet-index", 0, "spreadsheet sheet index (1-based)")
}
