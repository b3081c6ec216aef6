package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"factgraph/internal/spec"
)

var describeCmd = &cobra.Command{
	Use:   "describe <spec-file>",
	Short: "Parse a specification and re-render it, a round-trip sanity check",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading spec file: %w", err)
	}
	sp, err := spec.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parsing specification: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), spec.Describe(sp))
	return nil
}
