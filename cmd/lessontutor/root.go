package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/lessontutor/internal/config"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(config.Load)
}

func newRootCommandWith(load configLoader) *cobra.Command {
	var envFlag string

	ctx := newCommandContext(&envFlag, load)

	rootCmd := &cobra.Command{
		Use:           "lessontutor",
		Short:         "Turn documents into lessons and teach them one step at a time",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, _, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			ctx.sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "", "Configuration environment (local, dev, prod); defaults to $ENV")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newLessonsCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "version", "completion":
		return true
	}
	return false
}
