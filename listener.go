package testlink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a Listener.
type State uint32

const (
	// StateUnconfigured: constructed, no call made to the server yet.
	StateUnconfigured State = iota
	// StateConnected: the connection is open and cached.
	StateConnected
	// StateReporting: a test-end event is being handled.
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConnected:
		return "connected"
	case StateReporting:
		return "reporting"
	}
	return "unknown"
}

// Test is a finished test as seen by the listener.
type Test struct {
	Name string
	// Doc is free text searched for external ids alongside Name.
	Doc    string
	Passed bool
	// Message is the failure message, used as notes for failed results.
	Message  string
	Started  time.Time
	Duration time.Duration
}

// Dialer opens a connection to a TestLink server.
type Dialer func(ctx context.Context, serverURL, devKey, proxy string) (API, error)

// Listener reports test results to TestLink.
//
// It is built from the server settings and "key=value" report arguments and
// opens its connection on first use. For each finished test, EndTest finds
// the external ids in the test's name and documentation, makes sure they are
// part of the test plan and submits one result per id.
//
// Reserved arguments:
//   - also_console: log each submission response at info level (default true);
//     with false responses are only logged at debug level
//   - test_prefix: external id prefix(es), comma separated, literal or regular
//     expression; by default any alphanumeric prefix matches
//
// Every other argument is a tl.reportTCResult parameter (see ReportParamNames)
// or one of testprojectname, testprojectid, testplanname. Parameters that are
// not passed fall back to the configured Defaults under "testlink<param>".
type Listener struct {
	server string
	devKey string
	proxy  string

	params      *ReportParams
	alsoConsole bool
	parser      *MultiParser
	parsers     []Parser
	defaults    Defaults
	logger      *slog.Logger
	dial        Dialer
	transport   http.RoundTripper

	mtx          sync.RWMutex
	api          API
	connectGroup singleflight.Group
	state        atomic.Uint32
	closed       atomic.Bool
}

// New returns an unconnected Listener. It fails with ErrConfig when a report
// argument is not of the form "key=value" or a reserved argument is invalid.
func New(serverURL, devKey, proxy string, reportArgs []string, opts ...Option) (*Listener, error) {
	kv, err := ParseReportArgs(reportArgs)
	if err != nil {
		return nil, err
	}

	alsoConsole := true
	if v, ok := kv[argAlsoConsole]; ok {
		delete(kv, argAlsoConsole)
		if alsoConsole, err = strconv.ParseBool(v); err != nil {
			return nil, configErrorf("%s must be a boolean, got %q", argAlsoConsole, v)
		}
	}
	var prefixes []string
	if v, ok := kv[argTestPrefix]; ok {
		delete(kv, argTestPrefix)
		prefixes = strings.Split(v, ",")
	}

	l := &Listener{
		server:      serverURL,
		devKey:      devKey,
		proxy:       proxy,
		params:      NewReportParams(kv),
		alsoConsole: alsoConsole,
		defaults:    ChainDefaults{ScenarioDefaults{}, EnvDefaults{}},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	matchers, err := CompileMatchers(prefixes...)
	if err != nil {
		return nil, err
	}
	l.parser = NewMultiParser(matchers, l.parsers...)
	if l.dial == nil {
		l.dial = func(ctx context.Context, serverURL, devKey, proxy string) (API, error) {
			return DialXMLRPC(ctx, serverURL, devKey, proxy, l.transport, l.logger)
		}
	}

	l.logger.Debug("testlink listener configured",
		"server", serverURL,
		"proxy", proxy != "",
		"also_console", alsoConsole,
		"matchers", len(matchers))
	return l, nil
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// AlsoConsole reports whether submission responses are logged at info level.
func (l *Listener) AlsoConsole() bool {
	return l.alsoConsole
}

// Params returns a copy of the configured report parameters.
func (l *Listener) Params() *ReportParams {
	return l.params.Clone()
}

// Testcases returns the external ids the listener finds in test.
func (l *Listener) Testcases(test Test) []string {
	return l.parser.Testcases(test)
}

// Connect returns the server connection, dialing it on the first call.
// Concurrent first calls share one dial.
func (l *Listener) Connect(ctx context.Context) (API, error) {
	if l.closed.Load() {
		return nil, ErrNotConnected
	}
	if api := l.connection(); api != nil {
		return api, nil
	}

	v, err, _ := l.connectGroup.Do("connect", func() (any, error) {
		if api := l.connection(); api != nil {
			return api, nil
		}
		l.logger.Debug("connecting to testlink", "server", l.server)
		api, err := l.dial(ctx, l.server, l.devKey, l.proxy)
		if err != nil {
			return nil, fmt.Errorf("connect to testlink %s: %w", l.server, err)
		}

		l.mtx.Lock()
		l.api = api
		l.mtx.Unlock()
		l.state.CompareAndSwap(uint32(StateUnconfigured), uint32(StateConnected))
		l.logger.Info("connected to testlink", "server", l.server)
		return api, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(API), nil
}

func (l *Listener) connection() API {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.api
}

// EndTest reports the result of test for every external id found in it.
// A test without ids is skipped without contacting the server. The first
// error aborts the remaining ids.
func (l *Listener) EndTest(ctx context.Context, test Test) error {
	ids := l.parser.Testcases(test)
	if len(ids) == 0 {
		l.logger.Debug("no testlink ids found, skipping", "test", test.Name)
		return nil
	}

	api, err := l.Connect(ctx)
	if err != nil {
		return err
	}
	l.state.Store(uint32(StateReporting))
	defer l.state.Store(uint32(StateConnected))

	params := l.reportParams(ctx, test)
	resolver := NewResolver(api, params, l.logger)
	if err := resolver.EnsureInPlan(ctx, ids); err != nil {
		return fmt.Errorf("add %s to test plan: %w", strings.Join(ids, ", "), err)
	}

	reporter := NewReporter(api, resolver, l.logger)
	for res, err := range reporter.Report(ctx, ids) {
		if err != nil {
			return fmt.Errorf("report result of %q: %w", test.Name, err)
		}
		l.logResult(ctx, test, res)
	}
	return nil
}

// reportParams builds the params of one event: configured arguments, the
// test's status, then defaults for whatever is still unset.
func (l *Listener) reportParams(ctx context.Context, test Test) *ReportParams {
	p := l.params.Clone()
	p.Status = StatusFor(test.Passed)
	p.FillDefaults(ctx, l.defaults)

	// Not every TestLink version defaults guess to true.
	p.SetDefault(ParamGuess, "true")
	if !test.Passed {
		p.SetDefault(ParamNotes, test.Message)
	}
	if test.Duration > 0 {
		p.SetDefault(ParamExecDuration, strconv.FormatFloat(test.Duration.Minutes(), 'f', 2, 64))
	}
	return p
}

func (l *Listener) logResult(ctx context.Context, test Test, res *ReportResult) {
	level := slog.LevelDebug
	if l.alsoConsole {
		level = slog.LevelInfo
	}
	l.logger.Log(ctx, level, "reported testlink result",
		"test", test.Name,
		"testcase", res.ExternalID,
		"status", StatusFor(test.Passed),
		"execution_id", res.ExecutionID,
		"operation", res.Operation,
		"message", res.Message)
}

// Close closes the connection. The listener cannot be used afterwards.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.mtx.Lock()
	api := l.api
	l.api = nil
	l.mtx.Unlock()
	l.state.Store(uint32(StateUnconfigured))

	if api == nil {
		return nil
	}
	l.logger.Debug("closing testlink connection", "server", l.server)
	return api.Close()
}
