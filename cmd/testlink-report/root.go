package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	testlink "github.com/testlink-reporter/godog-testlink"
)

var (
	configPath string
	serverURL  string
	devKey     string
	proxy      string
	reportArgs []string
	splitFile  string
	logLevel   string
	insecure   bool
)

// rootCmd is the base command. Settings come from an optional config file;
// flags override it.
var rootCmd = &cobra.Command{
	Use:   "testlink-report",
	Short: "Report test results to TestLink",
	Long: `testlink-report submits test results to a TestLink server over XML-RPC.

Test case external ids ("<prefix>-<number>") are read from the test name and
documentation. Missing test plans and platforms are created, test cases are
added to the plan, and one result is reported per id.

Report arguments are passed as key=value, e.g.
  --arg testprojectname=MyProject --arg testplanname=Nightly --arg buildname=1.0`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&serverURL, "server", "", "TestLink XML-RPC url (.../lib/api/xmlrpc/v1/xmlrpc.php)")
	flags.StringVar(&devKey, "devkey", os.Getenv("TESTLINK_DEVKEY"), "TestLink developer key (default $TESTLINK_DEVKEY)")
	flags.StringVar(&proxy, "proxy", "", "HTTP proxy url")
	flags.StringArrayVarP(&reportArgs, "arg", "a", nil, "report argument as key=value (repeatable)")
	flags.StringVar(&splitFile, "split-file", "", "Split localhost YAML file serving testlink<param> defaults")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: valid are debug|info|warn|error", logLevel)
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})), nil
}

// loadConfig merges the config file and the flags. Flags win; --arg values
// are appended after the file's arguments so they override them.
func loadConfig(cmd *cobra.Command) (*testlink.Config, error) {
	cfg := &testlink.Config{}
	if configPath != "" {
		var err error
		if cfg, err = testlink.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if cmd.Flags().Changed("devkey") || cfg.DevKey == "" {
		cfg.DevKey = devKey
	}
	if proxy != "" {
		cfg.Proxy = proxy
	}
	if insecure {
		cfg.InsecureSkipVerify = true
	}
	cfg.Args = append(cfg.Args, reportArgs...)
	return cfg, nil
}

// newListener builds the listener for a command. The returned cleanup closes
// the connection and any defaults provider.
func newListener(cmd *cobra.Command) (*testlink.Listener, *slog.Logger, func(), error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []testlink.Option{testlink.WithLogger(logger.With("source", "testlink"))}
	var split *testlink.SplitDefaults
	if splitFile != "" {
		splitLogger := logger.With("source", "split-sdk")
		split, err = testlink.NewSplitDefaults("localhost", "testlink-report", testlink.SplitLocalhostConfig(splitFile, splitLogger), splitLogger)
		if err != nil {
			return nil, nil, nil, err
		}
		defaults := testlink.ChainDefaults{testlink.ScenarioDefaults{}, testlink.EnvDefaults{}, split}
		if len(cfg.Defaults) > 0 {
			fileDefaults := make(testlink.MapDefaults, len(cfg.Defaults))
			for k, v := range cfg.Defaults {
				fileDefaults[testlink.DefaultsPrefix+k] = v
			}
			defaults = append(defaults, fileDefaults)
		}
		opts = append(opts, testlink.WithDefaults(defaults))
	}

	l, err := testlink.NewFromConfig(cfg, opts...)
	if err != nil {
		if split != nil {
			split.Close()
		}
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := l.Close(); err != nil {
			logger.Warn("closing testlink connection failed", "error", err)
		}
		if split != nil {
			split.Close()
		}
	}
	return l, logger, cleanup, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
