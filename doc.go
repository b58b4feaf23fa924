// Package testlink reports godog scenario results to a TestLink server.
//
// A scenario is linked to TestLink test cases through their external ids
// ("<prefix>-<number>") in its name or tags. When the scenario ends, the
// listener adds the test cases to the test plan (creating the plan and the
// platform when they are missing) and reports a pass or fail result for each.
//
// # Basic Usage
//
//	listener, err := testlink.New(
//	    "https://testlink.example.com/lib/api/xmlrpc/v1/xmlrpc.php",
//	    os.Getenv("TESTLINK_DEVKEY"),
//	    "", // no proxy
//	    []string{"test_prefix=abc", "testprojectname=MyProject", "testplanname=Nightly", "buildname=1.0"},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	suite := godog.TestSuite{
//	    TestSuiteInitializer: listener.InitializeTestSuite,
//	    ScenarioInitializer: func(sc *godog.ScenarioContext) {
//	        listener.InitializeScenario(sc)
//	        // register steps
//	    },
//	}
//
// A scenario tagged @abc-101 then reports to test case abc-101.
//
// # Defaults
//
// Report parameters that are not passed as arguments are looked up as
// "testlink<param>" (testlinkplatformname, testlinkbuildname, ...) in the
// scenario variables set with SetScenarioVar and then in the environment
// (TESTLINKPLATFORMNAME). WithDefaults replaces the lookup, for example with
// FlagDefaults (OpenFeature) or SplitDefaults (Split).
//
// # Errors
//
// Configuration problems wrap ErrConfig. TestLink error responses are
// *ResponseError; IsNotFound and IsAlreadyExists classify them.
package testlink
