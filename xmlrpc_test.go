package testlink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testlink-reporter/godog-testlink/testlinktest"
)

const testDevKey = "0123456789abcdef"

// newTestServer starts a fake server with project MyProject (prefix abc) and
// test cases abc-1 (version 2) and abc-2 (version 1).
func newTestServer(t *testing.T) (*testlinktest.Server, string) {
	t.Helper()
	srv := testlinktest.NewServer(testDevKey)
	t.Cleanup(srv.Close)
	projectID := srv.AddProject("MyProject", "abc")
	srv.AddTestCase("abc-1", 2)
	srv.AddTestCase("abc-2", 1)
	return srv, projectID
}

func dialTestServer(t *testing.T, srv *testlinktest.Server) API {
	t.Helper()
	api, err := DialXMLRPC(t.Context(), srv.URL, testDevKey, "", nil, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })
	return api
}

func TestDialXMLRPC(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("valid key", func(t *testing.T) {
		dialTestServer(t, srv)
		assert.GreaterOrEqual(t, srv.Calls("checkDevKey"), 1)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := DialXMLRPC(t.Context(), srv.URL, "wrong", "", nil, discardLogger())
		var re *ResponseError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, testlinktest.CodeInvalidDevKey, re.Code)
		assert.Equal(t, "checkDevKey", re.Method)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := DialXMLRPC(t.Context(), "", testDevKey, "", nil, discardLogger())
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("invalid proxy", func(t *testing.T) {
		_, err := DialXMLRPC(t.Context(), srv.URL, testDevKey, "://bad", nil, discardLogger())
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		before := srv.Calls("checkDevKey")
		_, err := DialXMLRPC(ctx, srv.URL, testDevKey, "", nil, discardLogger())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, before, srv.Calls("checkDevKey"))
	})
}

func TestXMLRPCClientProjectsAndPlans(t *testing.T) {
	srv, projectID := newTestServer(t)
	api := dialTestServer(t, srv)
	ctx := t.Context()

	project, err := api.TestProjectByName(ctx, "MyProject")
	require.NoError(t, err)
	assert.Equal(t, &TestProject{ID: projectID, Name: "MyProject", Prefix: "abc"}, project)

	_, err = api.TestProjectByName(ctx, "Nope")
	assert.True(t, IsNotFound(err))

	projects, err := api.TestProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TestProject{*project}, projects)

	_, err = api.TestPlanByName(ctx, "MyProject", "Nightly")
	assert.True(t, IsNotFound(err))

	created, err := api.CreateTestPlan(ctx, "Nightly", "MyProject")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Nightly", created.Name)

	_, err = api.CreateTestPlan(ctx, "Nightly", "MyProject")
	assert.True(t, IsAlreadyExists(err))

	plan, err := api.TestPlanByName(ctx, "MyProject", "Nightly")
	require.NoError(t, err)
	assert.Equal(t, &TestPlan{ID: created.ID, Name: "Nightly", ProjectID: projectID}, plan)
}

func TestXMLRPCClientPlatforms(t *testing.T) {
	srv, projectID := newTestServer(t)
	planID := srv.AddPlan(projectID, "Nightly")
	api := dialTestServer(t, srv)
	ctx := t.Context()

	platforms, err := api.ProjectPlatforms(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, platforms)

	_, err = api.TestPlanPlatforms(ctx, planID)
	assert.True(t, IsNotFound(err), "no platforms on plan")

	require.NoError(t, api.CreatePlatform(ctx, "MyProject", "linux"))
	assert.True(t, IsAlreadyExists(api.CreatePlatform(ctx, "MyProject", "linux")))
	require.NoError(t, api.AddPlatformToTestPlan(ctx, planID, "linux"))

	platforms, err = api.ProjectPlatforms(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, "linux", platforms[0].Name)

	attached, err := api.TestPlanPlatforms(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, platforms, attached)
}

func TestXMLRPCClientTestCases(t *testing.T) {
	srv, projectID := newTestServer(t)
	planID := srv.AddPlan(projectID, "Nightly")
	platformID := srv.AddPlatform(projectID, "linux")
	api := dialTestServer(t, srv)
	ctx := t.Context()

	cases, err := api.TestCasesForTestPlan(ctx, planID)
	require.NoError(t, err)
	assert.Empty(t, cases)

	version, err := api.LatestTestCaseVersion(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = api.LatestTestCaseVersion(ctx, "abc-404")
	assert.True(t, IsNotFound(err))

	link := TestCaseLink{ProjectID: projectID, PlanID: planID, ExternalID: "abc-1", Version: 2, PlatformID: platformID}
	require.NoError(t, api.AddTestCaseToTestPlan(ctx, link))
	assert.True(t, IsAlreadyExists(api.AddTestCaseToTestPlan(ctx, link)))

	cases, err = api.TestCasesForTestPlan(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, []PlanTestCase{{ExternalID: "abc-1", PlatformID: platformID, Version: 2}}, cases)
}

func TestXMLRPCClientReportTCResult(t *testing.T) {
	srv, projectID := newTestServer(t)
	planID := srv.AddPlan(projectID, "Nightly")
	srv.LinkTestCase(planID, "abc-1", 2, "")
	api := dialTestServer(t, srv)

	res, err := api.ReportTCResult(t.Context(), map[string]any{
		ParamTestCaseExternalID: "abc-1",
		ParamTestPlanID:         idArg(planID),
		ParamStatus:             StatusPassed,
		ParamBuildName:          "1.0",
		ParamGuess:              true,
		ParamExecDuration:       1.5,
		ParamCustomFields:       map[string]any{"browser": "firefox"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-1", res.ExternalID)
	assert.True(t, res.Status)
	assert.Equal(t, "reportTCResult", res.Operation)
	assert.NotEmpty(t, res.ExecutionID)

	results := srv.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "p", results[0]["status"])
	assert.Equal(t, true, results[0]["guess"])
	assert.Equal(t, 1.5, results[0]["execduration"])
	assert.Equal(t, map[string]any{"browser": "firefox"}, results[0]["customfields"])
	assert.Equal(t, planID, fmt.Sprint(results[0]["testplanid"]))
	assert.Equal(t, testDevKey, results[0]["devKey"])

	t.Run("not linked", func(t *testing.T) {
		_, err := api.ReportTCResult(t.Context(), map[string]any{
			ParamTestCaseExternalID: "abc-2",
			ParamTestPlanID:         idArg(planID),
			ParamStatus:             StatusFailed,
		})
		var re *ResponseError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, testlinktest.CodeTestCaseNotLinked, re.Code)
	})

	t.Run("injected failure", func(t *testing.T) {
		srv.FailNext("reportTCResult", 6000, "database unavailable")
		_, err := api.ReportTCResult(t.Context(), map[string]any{
			ParamTestCaseExternalID: "abc-1",
			ParamTestPlanID:         idArg(planID),
			ParamStatus:             StatusPassed,
		})
		assert.EqualError(t, err, "testlink reportTCResult: 6000: database unavailable")
	})
}

func TestResponseError(t *testing.T) {
	tests := []struct {
		name     string
		reply    any
		wantCode int
	}{
		{name: "error array", reply: []any{map[string]any{"code": int64(3033), "message": "no plan"}}, wantCode: 3033},
		{name: "error struct", reply: map[string]any{"code": "7011", "message": "no project"}, wantCode: 7011},
		{name: "success with message", reply: []any{map[string]any{"status": true, "message": "Success!", "id": "1"}}},
		{name: "status true with code", reply: []any{map[string]any{"status": true, "code": int64(1), "message": "ok"}}},
		{name: "zero code", reply: []any{map[string]any{"code": int64(0), "message": "ok"}}},
		{name: "plain bool", reply: true},
		{name: "empty array", reply: []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := responseError("m", tt.reply)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			var re *ResponseError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.wantCode, re.Code)
		})
	}
}

func TestReplyShapes(t *testing.T) {
	entity := map[string]any{"id": "5", "name": "linux"}

	assert.Equal(t, []map[string]any{entity}, mapsOf(entity))
	assert.Equal(t, []map[string]any{entity}, mapsOf([]any{entity, "noise"}))
	assert.Equal(t, []map[string]any{entity}, mapsOf(map[string]any{"linux": entity}))
	assert.Nil(t, mapsOf("text"))

	assert.Equal(t, entity, firstMap([]any{entity}))
	assert.Nil(t, firstMap([]any{}))

	assert.Equal(t, 10, idArg("10"))
	assert.Equal(t, "PLAN-A", idArg("PLAN-A"))

	n, err := asInt("12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	_, err = asInt(nil)
	assert.Error(t, err)

	assert.Equal(t, "42", asString(int64(42)))
	assert.Equal(t, "", asString(nil))
	assert.True(t, asBool("true"))
	assert.True(t, asBool(int64(1)))
	assert.False(t, asBool(nil))
}
