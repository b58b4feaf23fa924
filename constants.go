package testlink

const (
	// Result Statuses

	// StatusPassed is the short code TestLink accepts for a passed execution.
	StatusPassed = "p"

	// StatusFailed is the short code TestLink accepts for a failed execution.
	// Errors and failures are both reported as failed.
	StatusFailed = "f"

	// Identifier Matching

	// DefaultTestPrefix matches any alphanumeric external id prefix,
	// so "abc-123" and "QA7-9" are both picked up when no prefix is configured.
	DefaultTestPrefix = `[A-Za-z0-9]+`

	// DefaultsPrefix is prepended to every recognized report parameter when
	// consulting a Defaults provider. A scenario variable for the platform is
	// therefore looked up as "testlinkplatformname", which keeps it clear of
	// common names such as "user" or "timestamp".
	DefaultsPrefix = "testlink"

	// Reserved Listener Arguments

	// argAlsoConsole controls whether submission responses are logged at info
	// level (true, default) or only at debug level.
	argAlsoConsole = "also_console"

	// argTestPrefix configures the external id prefix(es), comma separated.
	argTestPrefix = "test_prefix"

	// TestLink Response Codes
	//
	// TestLink reports failures in-band as [{code, message}] rather than as
	// XML-RPC faults. Only the codes the resolver acts on are named here.

	// CodeTestPlanNotFound is returned by getTestPlanByName for an unknown plan.
	CodeTestPlanNotFound = 3033

	// CodeTestPlanAlreadyExists is returned by createTestPlan for a duplicate name.
	CodeTestPlanAlreadyExists = 3034

	// CodeNoPlatformsOnPlan is returned by getTestPlanPlatforms when a plan has
	// no platforms linked yet.
	CodeNoPlatformsOnPlan = 3041

	// CodeTestCaseVersionLinked is returned by addTestCaseToTestPlan when the
	// version is already part of the plan.
	CodeTestCaseVersionLinked = 3045

	// CodeTestCaseNotFound is returned by getTestCase for an unknown external id.
	CodeTestCaseNotFound = 5040

	// CodeTestProjectNotFound is returned by getTestProjectByName for an unknown project.
	CodeTestProjectNotFound = 7011

	// CodePlatformAlreadyExists is returned by createPlatform for a duplicate name.
	CodePlatformAlreadyExists = 12000
)

// Report parameter names as understood by tl.reportTCResult and the listener
// arguments. The listener also accepts the project and plan name/id keys.
const (
	ParamTestProjectName    = "testprojectname"
	ParamTestProjectID      = "testprojectid"
	ParamTestPlanName       = "testplanname"
	ParamTestPlanID         = "testplanid"
	ParamTestCaseID         = "testcaseid"
	ParamTestCaseExternalID = "testcaseexternalid"
	ParamBuildName          = "buildname"
	ParamBuildID            = "buildid"
	ParamStatus             = "status"
	ParamNotes              = "notes"
	ParamPlatformID         = "platformid"
	ParamPlatformName       = "platformname"
	ParamGuess              = "guess"
	ParamBugID              = "bugid"
	ParamCustomFields       = "customfields"
	ParamOverwrite          = "overwrite"
	ParamUser               = "user"
	ParamExecDuration       = "execduration"
	ParamTimestamp          = "timestamp"
	ParamSteps              = "steps"
	ParamDevKey             = "devkey"
)

// ReportParamNames lists every parameter the listener fills from a Defaults
// provider when it was not passed as a listener argument.
var ReportParamNames = []string{
	ParamTestProjectName, ParamTestProjectID, ParamTestPlanName,
	ParamTestCaseID, ParamTestPlanID, ParamBuildName, ParamStatus, ParamNotes,
	ParamTestCaseExternalID, ParamBuildID, ParamPlatformID, ParamPlatformName,
	ParamGuess, ParamBugID, ParamCustomFields, ParamOverwrite, ParamUser,
	ParamExecDuration, ParamTimestamp, ParamSteps, ParamDevKey,
}
