package testlink

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the listener settings.
//
//	server_url: https://testlink.example.com/lib/api/xmlrpc/v1/xmlrpc.php
//	devkey: ${TESTLINK_DEVKEY}
//	args:
//	  - test_prefix=abc
//	report:
//	  testprojectname: MyProject
//	defaults:
//	  platformname: linux
//
// String values are expanded with os.ExpandEnv. Entries in report are passed
// like args. Entries in defaults are used when neither the arguments, the
// scenario nor the environment provide a parameter.
type Config struct {
	ServerURL          string            `yaml:"server_url"`
	DevKey             string            `yaml:"devkey"`
	Proxy              string            `yaml:"proxy"`
	Args               []string          `yaml:"args"`
	Report             map[string]string `yaml:"report"`
	Defaults           map[string]string `yaml:"defaults"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML config. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, configErrorf("decode yaml: %v", err)
	}

	cfg.ServerURL = os.ExpandEnv(cfg.ServerURL)
	cfg.DevKey = os.ExpandEnv(cfg.DevKey)
	cfg.Proxy = os.ExpandEnv(cfg.Proxy)
	for i, arg := range cfg.Args {
		cfg.Args[i] = os.ExpandEnv(arg)
	}
	for k, v := range cfg.Report {
		cfg.Report[k] = os.ExpandEnv(v)
	}
	for k, v := range cfg.Defaults {
		cfg.Defaults[k] = os.ExpandEnv(v)
	}
	return cfg, nil
}

// ReportArgs returns Args followed by the report entries as "key=value",
// sorted by key.
func (c *Config) ReportArgs() []string {
	args := slices.Clone(c.Args)
	keys := make([]string, 0, len(c.Report))
	for k := range c.Report {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, k+"="+c.Report[k])
	}
	return args
}

// Options returns the listener options the config implies: defaults from the
// scenario, the environment and the file (in that order), and an
// unverified TLS transport when insecure_skip_verify is set.
func (c *Config) Options() []Option {
	var opts []Option
	if len(c.Defaults) > 0 {
		fileDefaults := make(MapDefaults, len(c.Defaults))
		for k, v := range c.Defaults {
			fileDefaults[DefaultsPrefix+k] = v
		}
		opts = append(opts, WithDefaults(ChainDefaults{ScenarioDefaults{}, EnvDefaults{}, fileDefaults}))
	}
	if c.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed servers
		opts = append(opts, WithTransport(t))
	}
	return opts
}

// NewFromConfig builds a Listener from cfg. opts are applied after the
// config's own options.
func NewFromConfig(cfg *Config, opts ...Option) (*Listener, error) {
	if cfg.ServerURL == "" {
		return nil, configErrorf("server_url is required")
	}
	return New(cfg.ServerURL, cfg.DevKey, cfg.Proxy, cfg.ReportArgs(), append(cfg.Options(), opts...)...)
}
