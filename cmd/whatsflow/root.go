package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/cli"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/config"
)

var (
	cfgFile string
	v       = config.New()
)

var rootCmd = &cobra.Command{
	Use:           "whatsflow",
	Short:         "whatsflow runs WhatsApp conversation flows",
	Long:          `whatsflow executes flows built in the visual flow builder: it serves them over HTTP, plays them in the console and inspects their sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./whatsflow.yaml)")
	pf.String("flows", "flows", "directory containing the flow definitions")
	pf.String("store", "file", "session store driver: memory, file or redis")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")

	_ = v.BindPFlag("flows.dir", pf.Lookup("flows"))
	_ = v.BindPFlag("store.driver", pf.Lookup("store"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log.format", pf.Lookup("log-format"))
}

// loadConfig resolves the configuration from file, environment and flags.
func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgFile)
}

// buildApp loads the configuration and wires the application.
func buildApp(cmd *cobra.Command, opts cli.BuildOptions) (*cli.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger
	return cli.Build(cmd.Context(), cfg, opts)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
