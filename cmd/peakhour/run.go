package main

import (
	"fmt"
	"strconv"

	"github.com/emptyOVO/peakhour"
	"github.com/emptyOVO/peakhour/master"
	"github.com/emptyOVO/peakhour/purchase"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// jobFlags are shared by run and master.
type jobFlags struct {
	nReducer  int
	nWorker   int
	port      int
	inRAM     bool
	imdDir    string
	tieBreak  string
	overwrite bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.nReducer, "reduce", "r", getenvInt("PEAKHOUR_REDUCERS", 1), "Number of reducers")
	cmd.Flags().IntVarP(&f.nWorker, "worker", "w", getenvInt("PEAKHOUR_WORKERS", 4), "Number of workers")
	cmd.Flags().IntVar(&f.port, "port", getenvInt("PEAKHOUR_PORT", 10000), "Master port number")
	cmd.Flags().BoolVarP(&f.inRAM, "inRAM", "m", getenvBool("PEAKHOUR_IN_RAM", true), "Whether write the intermediate file in RAM")
	cmd.Flags().StringVar(&f.imdDir, "imd-dir", getenvDefault("PEAKHOUR_IMD_DIR", "output"), "Intermediate file directory when not in RAM")
	cmd.Flags().StringVar(&f.tieBreak, "tie-break", getenvDefault("PEAKHOUR_TIE_BREAK", "smallest"), "Peak hour tie-break: smallest|first")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Replace the results of a previous job in the output directory")
}

func (f *jobFlags) job(inputs []string, output string) (peakhour.Job, error) {
	tie, err := purchase.ParseTieBreak(f.tieBreak)
	if err != nil {
		return peakhour.Job{}, usageError{err: err}
	}
	if f.nReducer <= 0 || f.nWorker <= 0 {
		return peakhour.Job{}, usageError{err: fmt.Errorf("--reduce and --worker must be positive")}
	}
	return peakhour.Job{
		Inputs:     inputs,
		OutputDir:  output,
		NReduce:    f.nReducer,
		NWorker:    f.nWorker,
		MasterAddr: ":" + strconv.Itoa(f.port),
		InRAM:      f.inRAM,
		IMDDir:     f.imdDir,
		TieBreak:   tie,
		Overwrite:  f.overwrite,
	}, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError{fmt.Errorf("%s expects %d arguments, got %d", cmd.Name(), n, len(args)), cmd.UseLine()}
		}
		return nil
	}
}

func logReport(report master.JobReport) {
	log.WithFields(log.Fields{
		"lines":                report.Stats.Lines,
		"valid":                report.Stats.Valid,
		"empty_lines":          report.Stats.EmptyLines,
		"malformed_records":    report.Stats.MalformedRecords,
		"malformed_timestamps": report.Stats.MalformedTimestamps,
		"categories":           report.Categories,
		"map_tasks":            report.MapTasks,
		"reduce_tasks":         report.ReduceTasks,
		"duration":             report.Duration,
	}).Info("job report")
}

func newRunCmd() *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "run <input path> <output path>",
		Short: "Run master and workers in this process",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := flags.job([]string{args[0]}, args[1])
			if err != nil {
				return err
			}
			log.Infof("Starting %q", master.JobName)
			report, err := peakhour.StartSingleMachineJob(cmd.Context(), job)
			if err != nil {
				return err
			}
			logReport(report)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
