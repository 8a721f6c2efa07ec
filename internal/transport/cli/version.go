package cli

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/reqcheck/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
