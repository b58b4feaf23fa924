package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	testlink "github.com/testlink-reporter/godog-testlink"
)

var replayCmd = &cobra.Command{
	Use:   "replay <cucumber.json>",
	Short: "Report every scenario of a cucumber JSON report",
	Long: `Report every scenario of a cucumber JSON report, as written by
"godog --format cucumber". Scenario tags carry the test case ids.

A scenario that fails to report does not stop the others; all failures are
listed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	tests, err := testlink.ReadCucumberReport(f)
	if err != nil {
		return err
	}

	l, logger, cleanup, err := newListener(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("replaying cucumber report", "file", args[0], "scenarios", len(tests))
	if err := l.EndTests(commandContext(cmd), tests); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reported %d scenarios\n", len(tests))
	return nil
}
