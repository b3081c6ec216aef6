package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"factgraph/internal/fact"
	"factgraph/internal/logging"
)

var factsAddPredFlag string

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Append facts to a JSONL fact log",
}

var factsAddCmd = &cobra.Command{
	Use:   "add <fact-log> <type> <field>=<value>,...",
	Short: "Append a canonically-hashed fact envelope to a fact log",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runFactsAdd,
}

func init() {
	factsAddCmd.Flags().StringVar(&factsAddPredFlag, "pred", "", "predecessors, role=Type:hash,...")
	factsCmd.AddCommand(factsAddCmd)
}

func runFactsAdd(cmd *cobra.Command, args []string) error {
	path := args[0]
	typ := args[1]
	var fieldsFlag string
	if len(args) == 3 {
		fieldsFlag = args[2]
	}

	fields, err := parseFields(fieldsFlag)
	if err != nil {
		return err
	}
	preds, err := parsePredecessors(factsAddPredFlag)
	if err != nil {
		return err
	}

	rec := fact.NewRecord(typ, preds, fields)
	env := fact.Envelope{Record: rec}
	if err := appendFactToLog(path, env); err != nil {
		return fmt.Errorf("appending fact: %w", err)
	}

	ref := rec.Reference()
	logging.CLI("appended %s to %s", ref, path)
	fmt.Fprintln(cmd.OutOrStdout(), ref.String())
	return nil
}
