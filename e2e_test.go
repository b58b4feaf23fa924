package testlink

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testlink-reporter/godog-testlink/testlinktest"
)

func newServerListener(t *testing.T, srv *testlinktest.Server, args ...string) *Listener {
	t.Helper()
	l, err := New(srv.URL, testDevKey, "", args, WithLogger(discardLogger()), WithDefaults(MapDefaults{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestListenerCreatesMissingPlan(t *testing.T) {
	srv, projectID := newTestServer(t)
	l := newServerListener(t, srv, "test_prefix=abc", "testprojectname=MyProject", "testplanname=Release 2", "buildname=2.0")

	require.NoError(t, l.EndTest(t.Context(), Test{Name: "abc-1 checkout", Passed: true}))

	plan, ok := srv.Plan(projectID, "Release 2")
	require.True(t, ok)
	assert.Equal(t, 1, srv.Calls("createTestPlan"))
	assert.Equal(t, []testlinktest.Link{{PlanID: plan.ID, ExternalID: "abc-1", Version: 2}}, srv.Links(plan.ID))

	results := srv.Results()
	require.Len(t, results, 1)
	assert.Equal(t, plan.ID, fmt.Sprint(results[0]["testplanid"]))
	assert.Equal(t, "p", results[0]["status"])
	assert.Equal(t, "2.0", results[0]["buildname"])
	assert.Equal(t, true, results[0]["guess"])
}

func TestListenerUsesExistingPlan(t *testing.T) {
	srv, projectID := newTestServer(t)
	planID := srv.AddPlan(projectID, "Nightly")
	srv.LinkTestCase(planID, "abc-1", 1, "")
	l := newServerListener(t, srv, "test_prefix=abc", "testprojectname=MyProject", "testplanname=Nightly")

	require.NoError(t, l.EndTest(t.Context(), Test{Name: "abc-1", Doc: "also abc-2", Passed: false, Message: "timeout"}))

	assert.Equal(t, 0, srv.Calls("createTestPlan"))
	assert.Equal(t, 1, srv.Calls("getTestPlanByName"))
	assert.Equal(t, 1, srv.Calls("getTestCasesForTestPlan"))
	assert.Equal(t, 1, srv.Calls("addTestCaseToTestPlan"), "only abc-2 is linked")
	assert.Equal(t, 1, srv.Calls("checkDevKey"))

	results := srv.Results()
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, "f", res["status"])
		assert.Equal(t, "timeout", res["notes"])
	}
}

func TestListenerProvisionsPlatform(t *testing.T) {
	srv, projectID := newTestServer(t)
	planID := srv.AddPlan(projectID, "Nightly")
	l := newServerListener(t, srv, "testprojectname=MyProject", "testplanname=Nightly", "platformname=linux")

	require.NoError(t, l.EndTest(t.Context(), Test{Name: "abc-2", Passed: true}))

	platform, ok := srv.Platform(projectID, "linux")
	require.True(t, ok)
	assert.Equal(t, []string{"linux"}, srv.PlanPlatforms(planID))
	assert.Equal(t, []testlinktest.Link{{PlanID: planID, ExternalID: "abc-2", Version: 1, PlatformID: platform.ID}}, srv.Links(planID))

	results := srv.Results()
	require.Len(t, results, 1)
	assert.Equal(t, platform.ID, fmt.Sprint(results[0]["platformid"]))

	t.Run("second event finds it attached", func(t *testing.T) {
		require.NoError(t, l.EndTest(t.Context(), Test{Name: "abc-2", Passed: true}))
		assert.Equal(t, 1, srv.Calls("createPlatform"))
		assert.Equal(t, 1, srv.Calls("addPlatformToTestPlan"))
		assert.Len(t, srv.Links(planID), 1)
	})
}

func TestListenerPlatformNeverAppears(t *testing.T) {
	srv, projectID := newTestServer(t)
	srv.AddPlan(projectID, "Nightly")
	srv.DropPlatformCreation()
	l := newServerListener(t, srv, "testprojectname=MyProject", "testplanname=Nightly", "platformname=linux")

	err := l.EndTest(t.Context(), Test{Name: "abc-1", Passed: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolved))
	assert.Empty(t, srv.Results())
}

func TestListenerInvalidDevKey(t *testing.T) {
	srv, _ := newTestServer(t)
	l, err := New(srv.URL, "wrong", "", []string{"testprojectname=MyProject", "testplanname=Nightly"}, WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	err = l.EndTest(t.Context(), Test{Name: "abc-1", Passed: true})
	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, testlinktest.CodeInvalidDevKey, re.Code)
	assert.Equal(t, StateUnconfigured, l.State())
}
