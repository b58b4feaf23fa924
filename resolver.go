package testlink

import (
	"context"
	"fmt"
	"log/slog"
)

// Resolver fills in the ids of a ReportParams on demand.
//
// The chain is project name/id, then plan id (by plan and project name), then
// platform name and id. A missing plan is created and a missing platform is
// created and attached to the plan. Every value is resolved at most once and
// kept in the params, and the plan's linked test cases are fetched once.
// A Resolver serves a single test-completion event and is not safe for
// concurrent use.
type Resolver struct {
	api    API
	params *ReportParams
	logger *slog.Logger

	platformAttached bool
	planCases        map[string]struct{}
}

// NewResolver returns a Resolver writing into params.
func NewResolver(api API, params *ReportParams, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{api: api, params: params, logger: logger}
}

// Params returns the params being resolved.
func (r *Resolver) Params() *ReportParams {
	return r.params
}

// ProjectName returns the project name, looking it up by id when only the id
// was supplied.
func (r *Resolver) ProjectName(ctx context.Context) (string, error) {
	if r.params.ProjectName != "" {
		return r.params.ProjectName, nil
	}
	if r.params.ProjectID == "" {
		return "", configErrorf("need a %s or %s to resolve test plan arguments", ParamTestProjectName, ParamTestProjectID)
	}

	projects, err := r.api.TestProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.ID == r.params.ProjectID {
			r.params.ProjectName = p.Name
			r.logger.Debug("resolved test project name", "project_id", p.ID, "project", p.Name)
			return p.Name, nil
		}
	}
	return "", configErrorf("no test project with id %s", r.params.ProjectID)
}

// ProjectID returns the project id, looking it up by name when needed.
func (r *Resolver) ProjectID(ctx context.Context) (string, error) {
	if r.params.ProjectID != "" {
		return r.params.ProjectID, nil
	}
	if r.params.ProjectName == "" {
		return "", configErrorf("need a %s or %s to resolve test plan arguments", ParamTestProjectName, ParamTestProjectID)
	}

	project, err := r.api.TestProjectByName(ctx, r.params.ProjectName)
	if IsNotFound(err) {
		return "", configErrorf("test project %q does not exist", r.params.ProjectName)
	}
	if err != nil {
		return "", err
	}
	r.params.ProjectID = project.ID
	r.logger.Debug("resolved test project id", "project", r.params.ProjectName, "project_id", project.ID)
	return project.ID, nil
}

// PlanID returns the plan id, looking the plan up by name and creating it
// when the server does not know it.
func (r *Resolver) PlanID(ctx context.Context) (string, error) {
	if r.params.PlanID != "" {
		return r.params.PlanID, nil
	}
	projectName, err := r.ProjectName(ctx)
	if err != nil {
		return "", err
	}

	var plan *TestPlan
	if r.params.PlanName != "" {
		plan, err = r.api.TestPlanByName(ctx, projectName, r.params.PlanName)
		if err != nil && !IsNotFound(err) {
			return "", err
		}
	}
	if plan == nil {
		if plan, err = r.createPlan(ctx, projectName); err != nil {
			return "", err
		}
	}

	r.params.PlanID = plan.ID
	r.logger.Debug("resolved test plan id", "plan", r.params.PlanName, "plan_id", plan.ID)
	return plan.ID, nil
}

func (r *Resolver) createPlan(ctx context.Context, projectName string) (*TestPlan, error) {
	if r.params.PlanName == "" {
		return nil, configErrorf("need a %s to create a test plan for results", ParamTestPlanName)
	}

	plan, err := r.api.CreateTestPlan(ctx, r.params.PlanName, projectName)
	if IsAlreadyExists(err) {
		r.logger.Warn("test plan created concurrently, reading it back", "plan", r.params.PlanName)
		return r.api.TestPlanByName(ctx, projectName, r.params.PlanName)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("created test plan", "project", projectName, "plan", r.params.PlanName, "plan_id", plan.ID)
	return plan, nil
}

// PlatformName returns the configured platform name after making sure the
// platform exists and is attached to the plan. It returns "" when no platform
// was requested.
func (r *Resolver) PlatformName(ctx context.Context) (string, error) {
	name := r.params.PlatformName
	if name == "" || r.platformAttached {
		return name, nil
	}
	if err := r.attachPlatform(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// attachPlatform creates platform name in the project when needed and adds it
// to the plan unless it is already attached.
func (r *Resolver) attachPlatform(ctx context.Context, name string) error {
	planID, err := r.PlanID(ctx)
	if err != nil {
		return err
	}

	attached, err := r.api.TestPlanPlatforms(ctx, planID)
	if err != nil && !IsNotFound(err) {
		return err
	}
	for _, p := range attached {
		if p.Name == name {
			r.platformAttached = true
			return nil
		}
	}

	if err := r.createPlatform(ctx, name); err != nil {
		return err
	}
	return r.addPlatformToPlan(ctx, planID, name)
}

// createPlatform creates platform name in the project. An existing platform
// is not an error.
func (r *Resolver) createPlatform(ctx context.Context, name string) error {
	projectName, err := r.ProjectName(ctx)
	if err != nil {
		return err
	}
	if err := r.api.CreatePlatform(ctx, projectName, name); err != nil {
		if !IsAlreadyExists(err) {
			return err
		}
		r.logger.Debug("platform already exists", "project", projectName, "platform", name)
	}
	return nil
}

func (r *Resolver) addPlatformToPlan(ctx context.Context, planID, name string) error {
	if err := r.api.AddPlatformToTestPlan(ctx, planID, name); err != nil && !IsAlreadyExists(err) {
		return err
	}
	r.platformAttached = true
	r.logger.Info("attached platform to test plan", "plan_id", planID, "platform", name)
	return nil
}

// PlatformID returns the platform id for the configured platform name, or ""
// when no platform was requested. When the project does not list the platform
// it is provisioned and the lookup is repeated once; a second miss returns
// ErrUnresolved.
func (r *Resolver) PlatformID(ctx context.Context) (string, error) {
	if r.params.PlatformID != "" {
		return r.params.PlatformID, nil
	}
	name, err := r.PlatformName(ctx)
	if err != nil || name == "" {
		return "", err
	}
	projectID, err := r.ProjectID(ctx)
	if err != nil {
		return "", err
	}

	id, err := r.lookupPlatformID(ctx, projectID, name)
	if err != nil {
		return "", err
	}
	if id == "" {
		// The plan may list a platform the project does not return.
		if err := r.createPlatform(ctx, name); err != nil {
			return "", err
		}
		if !r.platformAttached {
			if err := r.attachPlatform(ctx, name); err != nil {
				return "", err
			}
		}
		if id, err = r.lookupPlatformID(ctx, projectID, name); err != nil {
			return "", err
		}
		if id == "" {
			return "", fmt.Errorf("%w: platform %q in project %s", ErrUnresolved, name, projectID)
		}
	}

	r.params.PlatformID = id
	r.logger.Debug("resolved platform id", "platform", name, "platform_id", id)
	return id, nil
}

func (r *Resolver) lookupPlatformID(ctx context.Context, projectID, name string) (string, error) {
	platforms, err := r.api.ProjectPlatforms(ctx, projectID)
	if err != nil && !IsNotFound(err) {
		return "", err
	}
	for _, p := range platforms {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", nil
}

// LatestVersion returns the newest version of a test case.
func (r *Resolver) LatestVersion(ctx context.Context, externalID string) (int, error) {
	return r.api.LatestTestCaseVersion(ctx, externalID)
}

// planTestCases returns the external ids linked to the plan on the resolved
// platform. The first call fetches them; later calls use the cached set.
func (r *Resolver) planTestCases(ctx context.Context) (map[string]struct{}, error) {
	if r.planCases != nil {
		return r.planCases, nil
	}
	planID, err := r.PlanID(ctx)
	if err != nil {
		return nil, err
	}
	platformID, err := r.PlatformID(ctx)
	if err != nil {
		return nil, err
	}

	cases, err := r.api.TestCasesForTestPlan(ctx, planID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	linked := make(map[string]struct{}, len(cases))
	for _, tc := range cases {
		if platformID != "" && tc.PlatformID != platformID {
			continue
		}
		linked[tc.ExternalID] = struct{}{}
	}
	r.planCases = linked
	r.logger.Debug("loaded test plan cases", "plan_id", planID, "platform_id", platformID, "count", len(linked))
	return linked, nil
}

// InPlan reports whether externalID is linked to the resolved plan.
func (r *Resolver) InPlan(ctx context.Context, externalID string) (bool, error) {
	linked, err := r.planTestCases(ctx)
	if err != nil {
		return false, err
	}
	_, ok := linked[externalID]
	return ok, nil
}

// EnsureInPlan links every id that is not yet part of the plan, using the
// test case's latest version and the resolved platform.
func (r *Resolver) EnsureInPlan(ctx context.Context, externalIDs []string) error {
	linked, err := r.planTestCases(ctx)
	if err != nil {
		return err
	}
	for _, id := range externalIDs {
		if _, ok := linked[id]; ok {
			continue
		}
		if err := r.linkTestCase(ctx, id); err != nil {
			return err
		}
		linked[id] = struct{}{}
	}
	return nil
}

func (r *Resolver) linkTestCase(ctx context.Context, externalID string) error {
	version, err := r.LatestVersion(ctx, externalID)
	if err != nil {
		return err
	}
	link := TestCaseLink{
		ProjectID:  r.params.ProjectID,
		PlanID:     r.params.PlanID,
		ExternalID: externalID,
		Version:    version,
		PlatformID: r.params.PlatformID,
	}
	if link.ProjectID, err = r.ProjectID(ctx); err != nil {
		return err
	}

	if err := r.api.AddTestCaseToTestPlan(ctx, link); err != nil {
		if !IsAlreadyExists(err) {
			return err
		}
		r.logger.Warn("test case already linked to plan", "testcase", externalID, "plan_id", link.PlanID, "error", err)
		return nil
	}
	r.logger.Info("added test case to plan",
		"testcase", externalID,
		"version", version,
		"plan_id", link.PlanID,
		"platform_id", link.PlatformID)
	return nil
}
