package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	whatsflow "github.com/casfuk/whatsapp-flow-builder-sub001"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of whatsflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "whatsflow version %s\n", strings.TrimSpace(whatsflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
