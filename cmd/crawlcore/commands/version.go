package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/crawlcore/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crawlcore version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Full())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
