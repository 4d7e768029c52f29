// Package cmd contains the koin command line client.
package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	url     string
	timeout time.Duration
	verbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", time.Minute, "Time to wait for the node to respond.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request sent to the node.")
}

var rootCmd = &cobra.Command{
	Use:   "koin",
	Short: "Client for a koin proof of work ledger node",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
	SilenceUsage: true,
}

// Execute runs the command selected by the command line arguments.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
