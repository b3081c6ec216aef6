package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"factgraph/internal/logging"
	"factgraph/internal/purge"
	"factgraph/internal/spec"
)

var checkPurgeTypesFlag string

var checkCmd = &cobra.Command{
	Use:   "check <spec-file>",
	Short: "Check a specification's purge compliance and print diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkPurgeTypesFlag, "purge-types", "", "purge declarations, Type:TriggerType:role1|role2,...")
}

func runCheck(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading spec file: %w", err)
	}
	sp, err := spec.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parsing specification: %w", err)
	}

	decls, err := parsePurgeDecls(checkPurgeTypesFlag)
	if err != nil {
		return err
	}

	err = purge.CheckCompliance(sp, decls)
	if err == nil {
		logging.CLI("%s is purge-compliant", args[0])
		fmt.Fprintln(cmd.OutOrStdout(), "purge-compliant")
		return nil
	}

	var buildErr *spec.BuildError
	if errors.As(err, &buildErr) {
		fmt.Fprintln(cmd.OutOrStdout(), "not purge-compliant:")
		for _, d := range buildErr.Details {
			fmt.Fprintln(cmd.OutOrStdout(), "  -", d)
		}
		return nil
	}
	return err
}
