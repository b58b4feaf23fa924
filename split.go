package testlink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/splitio/go-client/v6/splitio/client"
	"github.com/splitio/go-client/v6/splitio/conf"
)

const (
	// defaultSDKTimeout is the BlockUntilReady timeout in seconds used when
	// the Split configuration does not set one.
	defaultSDKTimeout = 10

	// controlTreatment is what the Split SDK returns for an unknown flag.
	controlTreatment = "control"
)

// SplitDefaults serves report parameter defaults from Split feature flag
// treatments. The flag "testlinkplatformname" with treatment "linux" makes
// "linux" the default platform. A "control" treatment counts as unset.
//
// In localhost mode (api key "localhost") flags come from a YAML file, which
// lets a CI job keep its TestLink defaults next to its other flags.
type SplitDefaults struct {
	client *client.SplitClient
	key    string
	logger *slog.Logger
}

// SplitLocalhostConfig returns a Split configuration reading treatments from
// splitFile, with Split SDK logs routed to logger.
func SplitLocalhostConfig(splitFile string, logger *slog.Logger) *conf.SplitSdkConfig {
	cfg := conf.Default()
	cfg.SplitFile = splitFile
	cfg.BlockUntilReady = 5
	cfg.Logger = NewSplitLogger(logger)
	return cfg
}

// NewSplitDefaults starts a Split client and blocks until it is ready.
// Treatments are evaluated for the traffic key key. Close releases the client.
func NewSplitDefaults(apiKey, key string, cfg *conf.SplitSdkConfig, logger *slog.Logger) (*SplitDefaults, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = conf.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = NewSplitLogger(logger)
	}
	if cfg.BlockUntilReady <= 0 {
		cfg.BlockUntilReady = defaultSDKTimeout
	}

	factory, err := client.NewSplitFactory(apiKey, cfg)
	if err != nil {
		return nil, fmt.Errorf("create split factory: %w", err)
	}
	c := factory.Client()
	if err := c.BlockUntilReady(cfg.BlockUntilReady); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("split SDK not ready within %d seconds: %w", cfg.BlockUntilReady, err)
	}

	logger.Debug("split defaults ready", "mode", cfg.OperationMode, "key", key)
	return &SplitDefaults{client: c, key: key, logger: logger}, nil
}

// Lookup implements Defaults.
func (s *SplitDefaults) Lookup(_ context.Context, name string) (string, bool) {
	treatment := s.client.Treatment(s.key, name, nil)
	if treatment == "" || treatment == controlTreatment {
		return "", false
	}
	s.logger.Debug("default from split treatment", "flag", name, "treatment", treatment)
	return treatment, true
}

// Close destroys the Split client.
func (s *SplitDefaults) Close() {
	s.client.Destroy()
}
