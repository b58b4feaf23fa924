// Package main is an end-to-end check of the TestLink listener over real
// XML-RPC.
//
// It runs a godog suite with the listener attached, replays a cucumber
// report and exercises the provisioning paths (plan, platform, plan
// membership) and error paths (invalid developer key, platform that never
// appears). By default everything runs against the in-memory server from
// testlinktest; the checks that inspect server state are skipped against a
// real server.
//
//	Run against the in-memory server: go run .
//	Run against TestLink: TESTLINK_URL=https://.../xmlrpc.php TESTLINK_DEVKEY=... TESTLINK_PROJECT=... go run .
//
// Exit codes:
//   - 0: all checks passed
//   - 1: one or more checks failed
//   - 2: setup failed
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	testlink "github.com/testlink-reporter/godog-testlink"
	"github.com/testlink-reporter/godog-testlink/testlinktest"
)

const localDevKey = "integration-devkey"

// env describes the server the checks run against.
type env struct {
	url     string
	devKey  string
	project string
	fake    *testlinktest.Server
	logger  *slog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 2*time.Minute)
	defer cancelTimeout()

	logLevel := slog.LevelInfo
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if err := logLevel.UnmarshalText([]byte(level)); err != nil {
			logLevel = slog.LevelInfo
		}
	}
	baseLogger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(baseLogger)

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("   TestLink listener - integration checks")
	fmt.Println(strings.Repeat("=", 60))

	e := &env{
		url:     os.Getenv("TESTLINK_URL"),
		devKey:  os.Getenv("TESTLINK_DEVKEY"),
		project: os.Getenv("TESTLINK_PROJECT"),
		logger:  baseLogger.With("source", "testlink"),
	}
	if e.url == "" {
		e.fake = testlinktest.NewServer(localDevKey)
		defer e.fake.Close()
		e.url, e.devKey, e.project = e.fake.URL, localDevKey, "Integration"
		e.fake.AddProject(e.project, "itg")
		for _, id := range []string{"itg-1", "itg-2", "itg-3"} {
			e.fake.AddTestCase(id, 1)
		}
		slog.Info("using in-memory TestLink server", "url", e.url)
	} else if e.project == "" {
		slog.Error("TESTLINK_PROJECT is required with TESTLINK_URL")
		os.Exit(2)
	}

	section("CONNECTION")
	checkConnection(ctx, e)

	section("GODOG SUITE")
	checkGodogSuite(ctx, e)

	section("CUCUMBER REPLAY")
	checkReplay(ctx, e)

	if e.fake != nil {
		section("PROVISIONING")
		checkPlanProvisioning(ctx, e)
		checkPlatformNeverAppears(ctx, e)
		checkConcurrentConnect(ctx, e)
	}

	results.Summary()
	switch {
	case ctx.Err() != nil:
		os.Exit(2)
	case results.Err() != nil:
		os.Exit(1)
	}
}

// newListener returns a listener for e with the integration defaults.
func (e *env) newListener(args ...string) (*testlink.Listener, error) {
	base := []string{"test_prefix=itg", "testprojectname=" + e.project, "buildname=integration"}
	return testlink.New(e.url, e.devKey, "", append(base, args...),
		testlink.WithLogger(e.logger),
		testlink.WithDefaults(testlink.ChainDefaults{testlink.ScenarioDefaults{}}))
}

func planName(suffix string) string {
	return "Integration " + suffix + " " + time.Now().Format("20060102-150405")
}
