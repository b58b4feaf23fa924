package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	testlink "github.com/testlink-reporter/godog-testlink"
)

var (
	reportName     string
	reportDoc      string
	reportFailed   bool
	reportMessage  string
	reportDuration time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report the result of one test",
	Long: `Report the result of one test. The test's ids are read from --name and --doc.

Examples:
  testlink-report report --name "abc-101 login" -a testprojectname=MyProject -a testplanname=Nightly
  testlink-report report --name login --doc "abc-101 abc-102" --failed --message "HTTP 500"`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportName, "name", "", "test name")
	reportCmd.Flags().StringVar(&reportDoc, "doc", "", "test documentation")
	reportCmd.Flags().BoolVar(&reportFailed, "failed", false, "report the test as failed")
	reportCmd.Flags().StringVar(&reportMessage, "message", "", "failure message, used as notes")
	reportCmd.Flags().DurationVar(&reportDuration, "duration", 0, "test duration")
	_ = reportCmd.MarkFlagRequired("name")
}

func runReport(cmd *cobra.Command, _ []string) error {
	l, _, cleanup, err := newListener(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	test := testlink.Test{
		Name:     reportName,
		Doc:      reportDoc,
		Passed:   !reportFailed,
		Message:  reportMessage,
		Duration: reportDuration,
	}
	ids := l.Testcases(test)
	if len(ids) == 0 {
		return fmt.Errorf("no test case ids in %q", reportName)
	}
	if err := l.EndTest(commandContext(cmd), test); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reported %s for %v\n", testlink.StatusFor(test.Passed), ids)
	return nil
}
