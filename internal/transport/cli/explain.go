package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/reqcheck/internal/bootstrap"
)

var explainCmd = &cobra.Command{
	Use:   "explain [requirement text]",
	Short: "Explain a requirement in plain language",
	Long: `Asks the language model for a short plain-language explanation of a requirement.
Without a configured model the first sentence of the text is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errors.New("requirement text is empty")
	}
	return withApp(cmd, nil, func(ctx context.Context, app *bootstrap.App) error {
		cmd.Println(app.Analysis.Explain(ctx, text))
		return nil
	})
}
