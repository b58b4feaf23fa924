package testlink

import (
	"context"
	"maps"
	"strconv"
	"sync"
)

// fakeAPI is an in-memory API that counts calls. Errors set in errs are
// returned by every call of that method.
type fakeAPI struct {
	mu sync.Mutex

	nextID           int
	projects         []TestProject
	plans            map[string]TestPlan
	projectPlatforms []Platform
	planPlatforms    []string
	planCases        []PlanTestCase
	versions         map[string]int
	links            []TestCaseLink
	results          []map[string]any
	resultErrs       map[string]error
	errs             map[string]error
	calls            map[string]int
	dropPlatforms    bool
	closed           bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		nextID:     500,
		projects:   []TestProject{{ID: "1", Name: "MyProject", Prefix: "abc"}},
		plans:      map[string]TestPlan{"Nightly": {ID: "10", Name: "Nightly", ProjectID: "1"}},
		versions:   map[string]int{"abc-1": 1, "abc-2": 3, "abc-101": 2, "abc-102": 1},
		resultErrs: make(map[string]error),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

func (f *fakeAPI) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.errs[method]
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) id() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func (f *fakeAPI) CheckDevKey(context.Context) error {
	return f.record("checkDevKey")
}

func (f *fakeAPI) TestProjectByName(_ context.Context, name string) (*TestProject, error) {
	if err := f.record("getTestProjectByName"); err != nil {
		return nil, err
	}
	for _, p := range f.projects {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, &ResponseError{Method: "getTestProjectByName", Code: CodeTestProjectNotFound, Message: "no project " + name}
}

func (f *fakeAPI) TestProjects(context.Context) ([]TestProject, error) {
	if err := f.record("getProjects"); err != nil {
		return nil, err
	}
	return f.projects, nil
}

func (f *fakeAPI) TestPlanByName(_ context.Context, _, planName string) (*TestPlan, error) {
	if err := f.record("getTestPlanByName"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.plans[planName]; ok {
		return &p, nil
	}
	return nil, &ResponseError{Method: "getTestPlanByName", Code: CodeTestPlanNotFound, Message: "no plan " + planName}
}

func (f *fakeAPI) CreateTestPlan(_ context.Context, planName, _ string) (*TestPlan, error) {
	if err := f.record("createTestPlan"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := TestPlan{ID: f.id(), Name: planName, ProjectID: "1"}
	f.plans[planName] = p
	return &p, nil
}

func (f *fakeAPI) ProjectPlatforms(context.Context, string) ([]Platform, error) {
	if err := f.record("getProjectPlatforms"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Platform(nil), f.projectPlatforms...), nil
}

func (f *fakeAPI) TestPlanPlatforms(_ context.Context, planID string) ([]Platform, error) {
	if err := f.record("getTestPlanPlatforms"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.planPlatforms) == 0 {
		return nil, &ResponseError{Method: "getTestPlanPlatforms", Code: CodeNoPlatformsOnPlan, Message: "no platforms on " + planID}
	}
	out := make([]Platform, 0, len(f.planPlatforms))
	for _, name := range f.planPlatforms {
		platform := Platform{Name: name}
		for _, p := range f.projectPlatforms {
			if p.Name == name {
				platform.ID = p.ID
			}
		}
		out = append(out, platform)
	}
	return out, nil
}

func (f *fakeAPI) CreatePlatform(_ context.Context, _, platformName string) error {
	if err := f.record("createPlatform"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projectPlatforms {
		if p.Name == platformName {
			return &ResponseError{Method: "createPlatform", Code: CodePlatformAlreadyExists, Message: "exists"}
		}
	}
	if !f.dropPlatforms {
		f.projectPlatforms = append(f.projectPlatforms, Platform{ID: f.id(), Name: platformName})
	}
	return nil
}

func (f *fakeAPI) AddPlatformToTestPlan(_ context.Context, _, platformName string) error {
	if err := f.record("addPlatformToTestPlan"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planPlatforms = append(f.planPlatforms, platformName)
	return nil
}

func (f *fakeAPI) TestCasesForTestPlan(context.Context, string) ([]PlanTestCase, error) {
	if err := f.record("getTestCasesForTestPlan"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PlanTestCase(nil), f.planCases...), nil
}

func (f *fakeAPI) AddTestCaseToTestPlan(_ context.Context, link TestCaseLink) error {
	if err := f.record("addTestCaseToTestPlan"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, link)
	f.planCases = append(f.planCases, PlanTestCase{ExternalID: link.ExternalID, PlatformID: link.PlatformID, Version: link.Version})
	return nil
}

func (f *fakeAPI) LatestTestCaseVersion(_ context.Context, externalID string) (int, error) {
	if err := f.record("getTestCase"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[externalID]
	if !ok {
		return 0, &ResponseError{Method: "getTestCase", Code: CodeTestCaseNotFound, Message: "no test case " + externalID}
	}
	return v, nil
}

func (f *fakeAPI) ReportTCResult(_ context.Context, args map[string]any) (*ReportResult, error) {
	if err := f.record("reportTCResult"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := args[ParamTestCaseExternalID].(string)
	if err := f.resultErrs[id]; err != nil {
		return nil, err
	}
	f.results = append(f.results, maps.Clone(args))
	return &ReportResult{ExternalID: id, ExecutionID: f.id(), Status: true, Operation: "reportTCResult", Message: "Success!"}, nil
}

func (f *fakeAPI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAPI) reported() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.results...)
}
