package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/reqcheck/internal/bootstrap"
	"github.com/kailas-cloud/reqcheck/internal/config"
	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/usecase/analysis"
)

var (
	compareJSON   bool
	compareReport bool
)

var compareCmd = &cobra.Command{
	Use:   "compare [requirements file] [implementation file]",
	Short: "Compare a specification with implementation documentation",
	Long: `Extracts requirements from the first file, indexes both files and prints one
verdict per requirement: status, criticality and a short analysis.
Files may be .txt, .pdf or .docx.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "output verdicts as JSON")
	compareCmd.Flags().BoolVar(&compareReport, "report", false, "add the aggregated compliance score")
	rootCmd.AddCommand(compareCmd)
}

type compareOutput struct {
	Requirements []string         `json:"requirements"`
	Verdicts     []domain.Verdict `json:"verdicts"`
	Report       *domain.Report   `json:"report,omitempty"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	tune := func(cfg *config.Config) {
		if compareReport {
			cfg.Comparison.ComputeReport = true
		}
	}
	return withApp(cmd, tune, func(ctx context.Context, app *bootstrap.App) error {
		reqDoc, err := app.Loader.LoadFile(args[0])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		implDoc, err := app.Loader.LoadFile(args[1])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[1], err)
		}

		res, err := app.Analysis.GenerateAnalysis(ctx, reqDoc, implDoc)
		if err != nil {
			return fmt.Errorf("compare failed: %w", err)
		}

		if compareJSON {
			return outputCompareJSON(cmd, res)
		}
		outputCompareText(cmd, res)
		return nil
	})
}

func outputCompareJSON(cmd *cobra.Command, res analysis.Result) error {
	data, err := json.MarshalIndent(compareOutput{
		Requirements: res.Requirements,
		Verdicts:     res.Verdicts,
		Report:       res.Report,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal verdicts: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputCompareText(cmd *cobra.Command, res analysis.Result) {
	for i, v := range res.Verdicts {
		cmd.Printf("  [%d] %s\n", i+1, v.Requirement)
		cmd.Printf("      %s, criticality %s\n", v.Status.Status, v.Status.Criticality)
		if v.Analysis != "" {
			cmd.Printf("      %s\n", v.Analysis)
		}
		cmd.Println()
	}

	if res.Report != nil {
		cmd.Printf("Total compliance: %.1f%%\n", res.Report.TotalCompliance)
		cmd.Println(res.Report.Conclusion)
	}
}
