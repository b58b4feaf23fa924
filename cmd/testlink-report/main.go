// Command testlink-report sends test results to a TestLink server outside of
// a running godog suite: single results from a CI step, or every scenario of
// a cucumber JSON report.
package main

// version is set at build time with -ldflags.
var version = "dev"

func main() {
	rootCmd.Version = version
	Execute()
}
