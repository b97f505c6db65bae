package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const statusQueryTimeout = time.Second * 10

// errTestsFailed is returned when the run completed but some tests failed. The failures have
// already been reported, so only the exit status is left to set.
var errTestsFailed = errors.New("some tests failed")

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var params runParams
	cmd := &cobra.Command{
		Use:   "booking-contract-tests",
		Short: "Contract tests for the booking microservices",
		Long: `Runs the contract suites against the flight, car, hotel, trip and user services.

With no subcommand, this is the same as "run".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, &params)
		},
	}
	params.addFlags(cmd.Flags())
	cmd.SetOut(out)

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newProbeCommand())
	cmd.AddCommand(newStubCommand())
	cmd.AddCommand(newSchemaCommand())
	return cmd
}
