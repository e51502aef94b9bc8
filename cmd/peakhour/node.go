package main

import (
	"github.com/emptyOVO/peakhour"
	"github.com/emptyOVO/peakhour/master"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newMasterCmd() *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "master <input path> <output path>",
		Short: "Run only the master; workers join with `peakhour worker`",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := flags.job([]string{args[0]}, args[1])
			if err != nil {
				return err
			}
			log.Infof("Starting %q", master.JobName)
			report, err := peakhour.StartMaster(cmd.Context(), job)
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

func newWorkerCmd() *cobra.Command {
	var (
		masterAddr string
		id         int
		inRAM      bool
		imdDir     string
		advertise  string
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run one worker against a running master",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return peakhour.StartWorker(cmd.Context(), masterAddr, id, peakhour.Job{
				InRAM:     inRAM,
				IMDDir:    imdDir,
				Advertise: advertise,
			})
		},
	}
	cmd.Flags().StringVar(&masterAddr, "master", getenvDefault("PEAKHOUR_MASTER", "127.0.0.1:10000"), "Master address")
	cmd.Flags().IntVar(&id, "id", getenvInt("PEAKHOUR_WORKER_ID", 0), "Worker index, offsets the listen port")
	cmd.Flags().BoolVarP(&inRAM, "inRAM", "m", getenvBool("PEAKHOUR_IN_RAM", true), "Whether write the intermediate file in RAM")
	cmd.Flags().StringVar(&imdDir, "imd-dir", getenvDefault("PEAKHOUR_IMD_DIR", "output"), "Intermediate file directory when not in RAM")
	cmd.Flags().StringVar(&advertise, "advertise", getenvDefault("PEAKHOUR_ADVERTISE", ""), "Address the master and peers dial for this worker")
	return cmd
}
