package testlink

import (
	"context"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

type scenarioStartKey struct{}

// InitializeScenario registers the listener on a godog scenario context.
// Every finished scenario is passed to EndTest; a reporting error fails the
// scenario.
//
//	suite := godog.TestSuite{
//	    ScenarioInitializer: func(sc *godog.ScenarioContext) {
//	        listener.InitializeScenario(sc)
//	        steps.Register(sc)
//	    },
//	}
func (l *Listener) InitializeScenario(sc *godog.ScenarioContext) {
	sc.Before(l.beforeScenario)
	sc.After(l.afterScenario)
}

// InitializeTestSuite closes the listener's connection after the suite.
func (l *Listener) InitializeTestSuite(ts *godog.TestSuiteContext) {
	ts.AfterSuite(func() {
		if err := l.Close(); err != nil {
			l.logger.Warn("closing testlink connection failed", "error", err)
		}
	})
}

func (l *Listener) beforeScenario(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	return context.WithValue(ctx, scenarioStartKey{}, time.Now()), nil
}

func (l *Listener) afterScenario(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
	test := TestFromScenario(sc, err)
	if started, ok := ctx.Value(scenarioStartKey{}).(time.Time); ok {
		test.Started = started
		test.Duration = time.Since(started)
	}
	return ctx, l.EndTest(ctx, test)
}

// TestFromScenario converts a finished godog scenario. The scenario's tags
// become the documentation searched for external ids, so "@abc-101" links a
// scenario to test case abc-101.
func TestFromScenario(sc *godog.Scenario, err error) Test {
	tags := make([]string, 0, len(sc.Tags))
	for _, tag := range sc.Tags {
		tags = append(tags, tag.Name)
	}
	test := Test{
		Name:   sc.Name,
		Doc:    strings.Join(tags, " "),
		Passed: err == nil,
	}
	if err != nil {
		test.Message = err.Error()
	}
	return test
}
