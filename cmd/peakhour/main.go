package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks errors that should exit with the usage status.
type usageError struct {
	err error
	use string
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:   "peakhour",
		Short: "Peak purchase hour per product category on a gRPC map-reduce runtime",
		Long: `peakhour reads comma-separated purchase transactions, counts purchases per
(category, hour) and reports the busiest hour of every category.
It runs master and workers in one process, or as separate processes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return usageError{err, cmd.UseLine()}
			}
			log.SetLevel(lvl)
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getenvDefault("PEAKHOUR_LOG_LEVEL", "info"), "trace|debug|info|warn|error")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err, cmd.UseLine()}
	})

	rootCmd.AddCommand(newRunCmd(), newMasterCmd(), newWorkerCmd(), newFlowCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			if ue.use != "" {
				fmt.Fprintln(os.Stderr, "Usage:", ue.use)
			}
			os.Exit(exitUsage)
		}
		log.Error(err)
		os.Exit(exitFailure)
	}
}
