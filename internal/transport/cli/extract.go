package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/reqcheck/internal/bootstrap"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "List the requirements found in a document",
	Long: `Reads a .txt, .pdf or .docx file and prints the requirements the classifier
extracts from it, in document order.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "output requirements as JSON")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, app *bootstrap.App) error {
		doc, err := app.Loader.LoadFile(args[0])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		reqs, err := app.Extract(ctx, doc)
		if err != nil {
			return err
		}

		if extractJSON {
			data, err := json.MarshalIndent(reqs, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal requirements: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		for i, r := range reqs {
			cmd.Printf("%3d. %s\n", i+1, r)
		}
		return nil
	})
}
