package app

import (
	"github.com/spf13/cobra"
)

// NewCovlinkCommand creates the root command for the covlink tool.
func NewCovlinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covlink",
		Short: "Correlate JVM execution data with compiled classes into coverage measures.",
		Long: `Covlink reads the execution data recorded by an instrumented test run,
correlates the probes with the debug metadata of the compiled class files,
and publishes per-line and per-branch coverage measures for the matching
source files, including per-test coverage attribution.`,
	}

	cmd.AddCommand(NewAnalyseCommand())

	return cmd
}
