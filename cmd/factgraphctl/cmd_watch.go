package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"factgraph/internal/ingest"
	"factgraph/internal/logging"
	"factgraph/internal/observe"
	"factgraph/internal/query"
	"factgraph/internal/spec"
)

var (
	watchGivenFlag    string
	watchFactsDirFlag string
)

var watchCmd = &cobra.Command{
	Use:   "watch <spec-file>",
	Short: "Start an observer and print add/remove notifications as facts arrive",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchGivenFlag, "given", "", "given references, label=Type:hash,...")
	watchCmd.Flags().StringVar(&watchFactsDirFlag, "facts-dir", "", "directory whose facts.log is tailed for appended fact envelopes")
	watchCmd.MarkFlagRequired("given")
	watchCmd.MarkFlagRequired("facts-dir")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading spec file: %w", err)
	}
	sp, err := spec.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parsing specification: %w", err)
	}

	labels, givens, err := parseGivens(watchGivenFlag)
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
	mgr := observe.NewManager(st)
	mgr.AddErrorSink(func(err error) {
		logging.CLIError("observer error: %v", err)
	})

	obs, err := observe.NewObserver(st, runner, sp, givens, mgr.ErrorSink())
	if err != nil {
		return fmt.Errorf("building observer: %w", err)
	}
	obs.Subscribe(func(d observe.Delivery) observe.RemoveCallback {
		fmt.Fprintf(cmd.OutOrStdout(), "+ %v\n", d.Result.Tuple)
		return func() {
			fmt.Fprintf(cmd.OutOrStdout(), "- %v\n", d.Result.Tuple)
		}
	})
	if err := obs.Start(ctx); err != nil {
		return fmt.Errorf("starting observer: %w", err)
	}

	// name the observer per-run: a watch invocation a manager could track
	// alongside others sharing the same store, the way a long-lived
	// process would register several live subscriptions under distinct names.
	mgr.Register(uuid.New().String(), obs, givens)
	defer mgr.Stop()

	watchPath := filepath.Join(watchFactsDirFlag, "facts.log")
	tailer, err := ingest.NewTailer(watchPath, st, cfg.GetDebounceTime(), nil)
	if err != nil {
		return fmt.Errorf("building tailer: %w", err)
	}
	if err := tailer.Start(ctx); err != nil {
		return fmt.Errorf("starting tailer: %w", err)
	}
	defer tailer.Stop()

	logging.CLI("watching %s for %s", watchPath, args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s, press Ctrl+C to stop\n", watchPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-sigCh:
	}
	return nil
}
