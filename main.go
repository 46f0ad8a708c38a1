// Command simsac trains a Soft Actor-Critic agent whose replay data is
// augmented with transitions simulated by a learned world model.
package main

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/simsac/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	args := config.Default()
	var configFile string

	train := func(cmd *cobra.Command, _ []string) error {
		if configFile != "" {
			if err := config.Load(configFile, cmd.Flags(), &args); err != nil {
				return err
			}
		}
		if err := setupLogging(args); err != nil {
			return err
		}
		args.Finalize(logrus.StandardLogger())
		if err := args.Validate(); err != nil {
			return err
		}
		return run(args)
	}

	root := &cobra.Command{
		Use:   "simsac",
		Short: "Train SAC with world model simulated transitions",
		RunE:  train,

		SilenceUsage: true,
	}
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train and test an agent",
		RunE:  train,

		SilenceUsage: true,
	}
	for _, cmd := range []*cobra.Command{root, trainCmd} {
		config.BindFlags(cmd.Flags(), &args)
		cmd.Flags().StringVar(&configFile, "config", "",
			"YAML or JSON configuration file")
	}

	root.AddCommand(trainCmd, &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

// setupLogging configures the standard logger
func setupLogging(args config.Args) error {
	level, err := logrus.ParseLevel(args.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if args.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
