package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cucumber/godog"

	testlink "github.com/testlink-reporter/godog-testlink"
)

func checkConnection(ctx context.Context, e *env) {
	l, err := e.newListener("testplanname=" + planName("connection"))
	if err != nil {
		results.Fail("connection: configure", err)
		return
	}
	defer l.Close()

	_, err = l.Connect(ctx)
	results.Expect("connection: valid developer key", err)

	bad, err := testlink.New(e.url, "not-a-key", "", nil, testlink.WithLogger(e.logger))
	if err != nil {
		results.Fail("connection: configure invalid key", err)
		return
	}
	defer bad.Close()

	_, err = bad.Connect(ctx)
	var re *testlink.ResponseError
	if !errors.As(err, &re) {
		results.Fail("connection: invalid developer key", fmt.Errorf("want a TestLink error response, got %v", err))
		return
	}
	results.Pass("connection: invalid developer key")
}

func checkGodogSuite(ctx context.Context, e *env) {
	plan := planName("godog")
	l, err := e.newListener("testplanname=" + plan)
	if err != nil {
		results.Fail("godog: configure", err)
		return
	}

	suite := godog.TestSuite{
		Name:                 "integration",
		TestSuiteInitializer: l.InitializeTestSuite,
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			l.InitializeScenario(sc)
			sc.Step(`^the service is up$`, func() error { return nil })
			sc.Step(`^the service is down$`, func() error { return errors.New("service unavailable") })
			sc.Step(`^the platform is "([^"]*)"$`, func(ctx context.Context, name string) (context.Context, error) {
				return testlink.SetScenarioVar(ctx, testlink.DefaultsPrefix+testlink.ParamPlatformName, name), nil
			})
		},
		Options: &godog.Options{
			Format:         "progress",
			Output:         io.Discard,
			Paths:          []string{"features"},
			DefaultContext: ctx,
		},
	}
	if status := suite.Run(); status != 1 {
		results.Fail("godog: suite status", fmt.Errorf("want 1 for the failing scenario, got %d", status))
	} else {
		results.Pass("godog: suite status")
	}
	if l.State() != testlink.StateUnconfigured {
		results.Fail("godog: listener closed after suite", fmt.Errorf("state %s", l.State()))
	} else {
		results.Pass("godog: listener closed after suite")
	}

	if e.fake == nil {
		return
	}
	reported := e.fake.Results()
	statuses := make(map[string]any, len(reported))
	for _, res := range reported {
		statuses[fmt.Sprint(res["testcaseexternalid"])] = res["status"]
	}
	results.Expect("godog: passed scenario reported p", expectEqual("p", statuses["itg-1"]))
	results.Expect("godog: failed scenario reported f", expectEqual("f", statuses["itg-2"]))
	project, _ := e.fake.Project(e.project)
	if _, ok := e.fake.Platform(project.ID, "windows"); ok {
		results.Pass("godog: platform created from scenario variable")
	} else {
		results.Fail("godog: platform created from scenario variable", errors.New("platform windows missing"))
	}
}

const replayReport = `[{"name":"Replay","elements":[
  {"name":"itg-3 replayed","type":"scenario","steps":[{"keyword":"Given ","name":"ok","result":{"status":"passed","duration":1500000000}}]},
  {"name":"untracked","type":"scenario","steps":[{"keyword":"Given ","name":"ok","result":{"status":"passed"}}]}
]}]`

func checkReplay(ctx context.Context, e *env) {
	tests, err := testlink.ReadCucumberReport(strings.NewReader(replayReport))
	if err != nil {
		results.Fail("replay: read report", err)
		return
	}
	l, err := e.newListener("testplanname=" + planName("replay"))
	if err != nil {
		results.Fail("replay: configure", err)
		return
	}
	defer l.Close()

	results.Expect("replay: report all scenarios", l.EndTests(ctx, tests))
}

func checkPlanProvisioning(ctx context.Context, e *env) {
	plan := planName("provisioning")
	l, err := e.newListener("testplanname="+plan, "platformname=linux")
	if err != nil {
		results.Fail("provisioning: configure", err)
		return
	}
	defer l.Close()

	err = l.EndTest(ctx, testlink.Test{Name: "itg-1 itg-3", Passed: true})
	results.Expect("provisioning: report with new plan and platform", err)

	project, _ := e.fake.Project(e.project)
	created, ok := e.fake.Plan(project.ID, plan)
	if !ok {
		results.Fail("provisioning: plan created", fmt.Errorf("plan %q missing", plan))
		return
	}
	results.Pass("provisioning: plan created")
	results.Expect("provisioning: platform attached", expectEqual("[linux]", fmt.Sprint(e.fake.PlanPlatforms(created.ID))))
	results.Expect("provisioning: test cases linked", expectEqual(2, len(e.fake.Links(created.ID))))
}

func checkPlatformNeverAppears(ctx context.Context, e *env) {
	e.fake.DropPlatformCreation()
	l, err := e.newListener("testplanname="+planName("unresolved"), "platformname=ghost")
	if err != nil {
		results.Fail("unresolved: configure", err)
		return
	}
	defer l.Close()

	err = l.EndTest(ctx, testlink.Test{Name: "itg-1", Passed: true})
	if !errors.Is(err, testlink.ErrUnresolved) {
		results.Fail("unresolved: platform missing after creation", fmt.Errorf("want ErrUnresolved, got %v", err))
		return
	}
	results.Pass("unresolved: platform missing after creation")
}

func checkConcurrentConnect(ctx context.Context, e *env) {
	l, err := e.newListener("testplanname=" + planName("concurrent"))
	if err != nil {
		results.Fail("concurrent: configure", err)
		return
	}
	defer l.Close()

	before := e.fake.Calls("checkDevKey")
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Connect(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		results.Fail("concurrent: connect", err)
		return
	}
	results.Expect("concurrent: one dial", expectEqual(1, e.fake.Calls("checkDevKey")-before))
}

func expectEqual(want, got any) error {
	if fmt.Sprint(want) != fmt.Sprint(got) {
		return fmt.Errorf("want %v, got %v", want, got)
	}
	return nil
}
