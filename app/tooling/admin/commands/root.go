// Package commands contains the admin commands.
package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRootCmd constructs the command tree.
func newRootCmd(build string, log *zap.SugaredLogger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Administer the proof of work chain",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newHashcashCmd(),
		newSimulateCmd(log),
		newStatusCmd(),
	)

	return rootCmd
}

// Execute runs the command named by args.
func Execute(build string, log *zap.SugaredLogger, args []string) error {
	rootCmd := newRootCmd(build, log)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}
