package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "custodyctl",
		Short:         "Produce, seal and retrieve custody documents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file after the command")

	root.AddCommand(c.produceCmd())
	root.AddCommand(c.retrieveCmd())
	root.AddCommand(c.verifyCmd())
	root.AddCommand(c.handleCmd())
	root.AddCommand(c.auditCmd())
	root.AddCommand(c.keysCmd())
	return root
}
