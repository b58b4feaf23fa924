package testlink

import "context"

// API is the subset of the TestLink XML-RPC API the listener uses.
//
// Implementations convert TestLink's in-band error responses to *ResponseError
// so callers can branch with IsNotFound and IsAlreadyExists.
// XMLRPCClient is the production implementation.
type API interface {
	// CheckDevKey verifies the developer key the client was built with.
	CheckDevKey(ctx context.Context) error

	TestProjectByName(ctx context.Context, name string) (*TestProject, error)
	TestProjects(ctx context.Context) ([]TestProject, error)

	TestPlanByName(ctx context.Context, projectName, planName string) (*TestPlan, error)
	CreateTestPlan(ctx context.Context, planName, projectName string) (*TestPlan, error)

	ProjectPlatforms(ctx context.Context, projectID string) ([]Platform, error)
	TestPlanPlatforms(ctx context.Context, planID string) ([]Platform, error)
	CreatePlatform(ctx context.Context, projectName, platformName string) error
	AddPlatformToTestPlan(ctx context.Context, planID, platformName string) error

	TestCasesForTestPlan(ctx context.Context, planID string) ([]PlanTestCase, error)
	AddTestCaseToTestPlan(ctx context.Context, link TestCaseLink) error
	// LatestTestCaseVersion returns the newest version number of a test case.
	LatestTestCaseVersion(ctx context.Context, externalID string) (int, error)

	ReportTCResult(ctx context.Context, args map[string]any) (*ReportResult, error)

	Close() error
}

// TestProject is a TestLink test project.
type TestProject struct {
	ID     string
	Name   string
	Prefix string
}

// TestPlan is a TestLink test plan.
type TestPlan struct {
	ID        string
	Name      string
	ProjectID string
}

// Platform is a TestLink platform.
type Platform struct {
	ID   string
	Name string
}

// PlanTestCase is a test case version linked to a plan on one platform.
// PlatformID is "0" or empty when the plan has no platforms.
type PlanTestCase struct {
	ExternalID string
	PlatformID string
	Version    int
}

// TestCaseLink holds the arguments of tl.addTestCaseToTestPlan.
type TestCaseLink struct {
	ProjectID  string
	PlanID     string
	ExternalID string
	Version    int
	PlatformID string
}

// ReportResult is the response of tl.reportTCResult.
type ReportResult struct {
	ExternalID  string
	ExecutionID string
	Status      bool
	Operation   string
	Overwrite   bool
	Message     string
}
