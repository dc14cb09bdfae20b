package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cachet-ai/cachet/internal/config"
)

var (
	cfgFile      string
	envFile      string
	modelFlag    string
	convFlag     string
	startNew     bool
	noStream     bool
	eventLogFlag string

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd := &cobra.Command{
		Use:   "cachet",
		Short: "Terminal chat client for Claude",
		Long: "cachet is a terminal chat client for the Anthropic API with prompt\n" +
			"caching, web search and file attachments.",
		// Running cachet with no subcommand starts chat mode.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/cachet/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env if present)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override model (sonnet, opus, or full id)")
	rootCmd.PersistentFlags().StringVar(&convFlag, "conversation", "", "load an archived conversation by id")
	rootCmd.PersistentFlags().BoolVar(&startNew, "new", false, "start a fresh conversation instead of resuming")
	rootCmd.PersistentFlags().BoolVar(&noStream, "no-stream", false, "wait for complete responses instead of streaming")
	rootCmd.PersistentFlags().StringVar(&eventLogFlag, "event-log", "", "write JSONL session events to this file")

	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads env and configuration, applying CLI flag overrides.
func initConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if eventLogFlag != "" {
		cfg.EventLog = eventLogFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
