package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute runs the CLI until it finishes or ctx is cancelled.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(wireApp())
}

func newRootCmdFor(app *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "voicectl",
		Short:         "voicectl: record, speak and talk to the voice banking service",
		Long:          "voicectl captures speech from the microphone, synthesizes replies, sends commands to a running voice banking server and seeds the banking sandbox with demo data.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newRecordCmd(app),
		newSpeakCmd(app),
		newAskCmd(app),
		newSeedCmd(app),
	)

	return rootCmd
}
