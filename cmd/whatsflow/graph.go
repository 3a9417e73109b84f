package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/cli"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export the flow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the flow. With --session the step the session is at is highlighted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		app, err := buildApp(cmd, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		flow, err := app.Engine.Flow(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if sessionID != "" {
			sess, err := app.Engine.Session(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFor(sess)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "highlight the current step of this session")
}
