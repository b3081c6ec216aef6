// Package main implements factgraphctl, a thin demonstration CLI around
// the fact-graph library: parsing and describing specifications, running
// them against a fact log, checking purge compliance, tailing a fact log
// for live subscriptions, and appending facts. None of this is part of
// the library's contract (internal/spec, internal/query, internal/invert,
// internal/observe, internal/purge, internal/store) — every one of those
// packages is fully usable without this CLI ever running, the same split
// the teacher draws between its core packages and cmd/nerd.
//
// # File Index
//
//   - main.go         - entry point, rootCmd, global flags, init()
//   - common.go       - shared flag-parsing and store-loading helpers
//   - cmd_query.go    - queryCmd, runQuery()
//   - cmd_describe.go - describeCmd, runDescribe()
//   - cmd_check.go    - checkCmd, runCheck()
//   - cmd_watch.go    - watchCmd, runWatch()
//   - cmd_facts.go    - factsCmd, factsAddCmd, runFactsAdd()
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"factgraph/internal/config"
	"factgraph/internal/logging"
)

var (
	configPath string
	factsPath  string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "factgraphctl",
	Short: "Inspect and drive a fact-graph store from the command line",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		if factsPath != "" {
			cfg.Store.FactLogPath = factsPath
		}

		ws, _ := os.Getwd()
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("failed to initialize file logging", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a factgraphctl config file (defaults built in if absent)")
	rootCmd.PersistentFlags().StringVar(&factsPath, "facts-log", "", "fact log path, overrides the config's store.fact_log_path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		queryCmd,
		describeCmd,
		checkCmd,
		watchCmd,
		factsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
