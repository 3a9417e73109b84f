package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/validator"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check flow definitions for consistency",
	Long: `Compiles each flow and reports definition errors: missing or duplicate start
steps, connections to unknown steps, invalid step configs. Steps unreachable
from the start step are reported as warnings. Without arguments every flow in
the flows directory is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, ext := range []string{"*.json", "*.yaml", "*.yml"} {
				matches, err := filepath.Glob(filepath.Join(cfg.Flows.Dir, ext))
				if err != nil {
					return err
				}
				paths = append(paths, matches...)
			}
			sort.Strings(paths)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no flow definitions found")
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range paths {
			flow, err := file.LoadFlow(path)
			if err != nil {
				failed++
				fmt.Fprintf(out, "❌ %v\n", err)
				continue
			}
			fmt.Fprintf(out, "✅ %s (%s, %d steps)\n", path, flow.ID, len(flow.Steps))
			if unreachable := validator.Unreachable(flow); len(unreachable) > 0 {
				fmt.Fprintf(out, "   ⚠️  unreachable: %s\n", strings.Join(unreachable, ", "))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d flows are invalid", failed, len(paths))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
