package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"factgraph/internal/logging"
	"factgraph/internal/query"
	"factgraph/internal/spec"
)

var queryGivenFlag string

var queryCmd = &cobra.Command{
	Use:   "query <spec-file>",
	Short: "Run a specification against a fact log and print projected results",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryGivenFlag, "given", "", "given references, label=Type:hash,... in the order the specification declares them")
	queryCmd.MarkFlagRequired("given")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading spec file: %w", err)
	}
	sp, err := spec.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parsing specification: %w", err)
	}

	labels, givens, err := parseGivens(queryGivenFlag)
	if err != nil {
		return err
	}
	if len(labels) != len(sp.Givens) {
		return fmt.Errorf("specification declares %d given(s), --given supplied %d", len(sp.Givens), len(labels))
	}

	st, err := loadStoreFromLog(ctx, cfg.Store.FactLogPath)
	if err != nil {
		return err
	}

	runner := query.NewRunner(st, cfg.Limits.QueryConcurrency)
	results, err := runner.Run(ctx, sp, givens)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	logging.CLI("query %s returned %d result(s)", args[0], len(results))
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
