package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/cli"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/presentation/tui"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <flow>",
	Short: "Chat with a flow in the console",
	Long: `Plays a flow as a WhatsApp conversation in the terminal. Each line you type
answers the pending question. End the input (Ctrl+D) to pause; --resume picks
the session up again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		resume, _ := cmd.Flags().GetBool("resume")
		vars, _ := cmd.Flags().GetStringToString("var")
		jsonMode, _ := cmd.Flags().GetBool("json")
		sleep, _ := cmd.Flags().GetBool("sleep")
		dispatch, _ := cmd.Flags().GetBool("dispatch")
		yes, _ := cmd.Flags().GetBool("yes")

		app, err := buildApp(cmd, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout) && !jsonMode
		bindings := make(map[string]any, len(vars))
		for k, val := range vars {
			bindings[k] = val
		}

		opts := []runner.Option{
			runner.WithLogger(app.Logger),
			runner.WithSessionID(sessionID),
			runner.WithResume(resume),
			runner.WithBindings(bindings),
			runner.WithHeadless(!interactive),
			runner.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
			runner.WithSanitizer(app.Sanitizer),
		}
		if sleep {
			opts = append(opts, runner.WithWaitMode(runner.WaitSleep))
		}
		if jsonMode {
			opts = append(opts, runner.WithInputHandler(runner.NewJSONHandler(cmd.InOrStdin(), cmd.OutOrStdout(), runner.WithJSONHandlerSanitizer(app.Sanitizer))))
		}
		if interactive {
			tui.PrintBanner(cmd.OutOrStdout())
			opts = append(opts, runner.WithRenderer(tui.NewRenderer()))
		}
		if dispatch {
			if app.WhatsApp == nil {
				return fmt.Errorf("--dispatch needs whatsapp.phone_number_id and whatsapp.token")
			}
			opts = append(opts, runner.WithDispatcher(app.WhatsApp))
			if yes {
				opts = append(opts, runner.WithInterceptor(runner.AutoApproveMiddleware()))
			}
		}

		sess, err := runner.NewRunner(opts...).Run(cmd.Context(), app.Engine, args[0])
		if err != nil {
			return err
		}
		app.Logger.Debug("console session finished", "session_id", sess.ID, "status", sess.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringP("session", "s", "", "session id (default: generated)")
	f.Bool("resume", false, "continue the session if it is still open")
	f.StringToString("var", nil, "initial variables, e.g. --var name=Ana --var phone=+34600111222")
	f.Bool("json", false, "JSON-Lines input and output")
	f.Bool("sleep", false, "sleep through wait steps instead of skipping them")
	f.Bool("dispatch", false, "also send the messages through the WhatsApp Cloud API")
	f.BoolP("yes", "y", false, "dispatch without asking for confirmation")
}
