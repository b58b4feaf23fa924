package testlink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kolo/xmlrpc"
)

// XMLRPCClient talks to the TestLink XML-RPC endpoint
// (.../lib/api/xmlrpc/v1/xmlrpc.php). Every call carries the developer key.
type XMLRPCClient struct {
	rpc    *xmlrpc.Client
	devKey string
	logger *slog.Logger
}

var _ API = (*XMLRPCClient)(nil)

// NewXMLRPCClient builds a client for serverURL. A nil transport uses
// http.DefaultTransport; a nil logger uses slog.Default().
func NewXMLRPCClient(serverURL, devKey string, transport http.RoundTripper, logger *slog.Logger) (*XMLRPCClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rpc, err := xmlrpc.NewClient(serverURL, transport)
	if err != nil {
		return nil, fmt.Errorf("create xml-rpc client for %s: %w", serverURL, err)
	}
	return &XMLRPCClient{rpc: rpc, devKey: devKey, logger: logger}, nil
}

// DialXMLRPC builds an XMLRPCClient, routing through proxy when it is set,
// and verifies the developer key. It is the default Dialer of a Listener.
func DialXMLRPC(ctx context.Context, serverURL, devKey, proxy string, transport http.RoundTripper, logger *slog.Logger) (API, error) {
	if serverURL == "" {
		return nil, configErrorf("server url is required")
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, configErrorf("invalid proxy %q: %v", proxy, err)
		}
		base, ok := transport.(*http.Transport)
		if !ok || base == nil {
			base = http.DefaultTransport.(*http.Transport)
		}
		t := base.Clone()
		t.Proxy = http.ProxyURL(proxyURL)
		transport = t
	}

	c, err := NewXMLRPCClient(serverURL, devKey, transport, logger)
	if err != nil {
		return nil, err
	}
	if err := c.CheckDevKey(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the underlying connection.
func (c *XMLRPCClient) Close() error {
	return c.rpc.Close()
}

// call invokes tl.<method> with args and converts an in-band error response.
// The transport cannot abort an in-flight call, so ctx is only checked first.
func (c *XMLRPCClient) call(ctx context.Context, method string, args map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if args == nil {
		args = make(map[string]any)
	}
	if _, ok := args["devKey"]; !ok {
		args["devKey"] = c.devKey
	}

	start := time.Now()
	var reply any
	if err := c.rpc.Call("tl."+method, args, &reply); err != nil {
		return nil, fmt.Errorf("testlink %s: %w", method, err)
	}
	c.logger.Debug("testlink call completed", "method", method, "duration_ms", time.Since(start).Milliseconds())

	if err := responseError(method, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// CheckDevKey calls tl.checkDevKey.
func (c *XMLRPCClient) CheckDevKey(ctx context.Context) error {
	_, err := c.call(ctx, "checkDevKey", nil)
	return err
}

// TestProjectByName calls tl.getTestProjectByName. An empty reply is reported
// as project not found.
func (c *XMLRPCClient) TestProjectByName(ctx context.Context, name string) (*TestProject, error) {
	reply, err := c.call(ctx, "getTestProjectByName", map[string]any{"testprojectname": name})
	if err != nil {
		return nil, err
	}
	m := firstMap(reply)
	if m == nil {
		return nil, &ResponseError{Method: "getTestProjectByName", Code: CodeTestProjectNotFound, Message: "empty response for " + name}
	}
	return projectFrom(m), nil
}

// TestProjects calls tl.getProjects.
func (c *XMLRPCClient) TestProjects(ctx context.Context) ([]TestProject, error) {
	reply, err := c.call(ctx, "getProjects", nil)
	if err != nil {
		return nil, err
	}
	var projects []TestProject
	for _, m := range mapsOf(reply) {
		projects = append(projects, *projectFrom(m))
	}
	return projects, nil
}

// TestPlanByName calls tl.getTestPlanByName.
func (c *XMLRPCClient) TestPlanByName(ctx context.Context, projectName, planName string) (*TestPlan, error) {
	reply, err := c.call(ctx, "getTestPlanByName", map[string]any{
		"testprojectname": projectName,
		"testplanname":    planName,
	})
	if err != nil {
		return nil, err
	}
	m := firstMap(reply)
	if m == nil {
		return nil, &ResponseError{Method: "getTestPlanByName", Code: CodeTestPlanNotFound, Message: "empty response for " + planName}
	}
	return planFrom(m), nil
}

// CreateTestPlan calls tl.createTestPlan and returns the new plan.
func (c *XMLRPCClient) CreateTestPlan(ctx context.Context, planName, projectName string) (*TestPlan, error) {
	reply, err := c.call(ctx, "createTestPlan", map[string]any{
		"testplanname":    planName,
		"testprojectname": projectName,
	})
	if err != nil {
		return nil, err
	}
	m := firstMap(reply)
	if m == nil || asString(m["id"]) == "" {
		return nil, fmt.Errorf("testlink createTestPlan: no id in response for %q", planName)
	}
	plan := planFrom(m)
	if plan.Name == "" {
		plan.Name = planName
	}
	return plan, nil
}

// ProjectPlatforms calls tl.getProjectPlatforms.
func (c *XMLRPCClient) ProjectPlatforms(ctx context.Context, projectID string) ([]Platform, error) {
	reply, err := c.call(ctx, "getProjectPlatforms", map[string]any{"testprojectid": idArg(projectID)})
	if err != nil {
		return nil, err
	}
	return platformsFrom(reply), nil
}

// TestPlanPlatforms calls tl.getTestPlanPlatforms.
func (c *XMLRPCClient) TestPlanPlatforms(ctx context.Context, planID string) ([]Platform, error) {
	reply, err := c.call(ctx, "getTestPlanPlatforms", map[string]any{"testplanid": idArg(planID)})
	if err != nil {
		return nil, err
	}
	return platformsFrom(reply), nil
}

// CreatePlatform calls tl.createPlatform with empty notes.
func (c *XMLRPCClient) CreatePlatform(ctx context.Context, projectName, platformName string) error {
	_, err := c.call(ctx, "createPlatform", map[string]any{
		"testprojectname": projectName,
		"platformname":    platformName,
		"notes":           "",
	})
	return err
}

// AddPlatformToTestPlan calls tl.addPlatformToTestPlan.
func (c *XMLRPCClient) AddPlatformToTestPlan(ctx context.Context, planID, platformName string) error {
	_, err := c.call(ctx, "addPlatformToTestPlan", map[string]any{
		"testplanid":   idArg(planID),
		"platformname": platformName,
	})
	return err
}

// TestCasesForTestPlan flattens TestLink's {tcid: {platformid: tc}} response.
// Older servers send the inner level as an array; both shapes are accepted.
func (c *XMLRPCClient) TestCasesForTestPlan(ctx context.Context, planID string) ([]PlanTestCase, error) {
	reply, err := c.call(ctx, "getTestCasesForTestPlan", map[string]any{"testplanid": idArg(planID)})
	if err != nil {
		return nil, err
	}
	var cases []PlanTestCase
	for _, byPlatform := range valuesOf(reply) {
		for _, m := range mapsOf(byPlatform) {
			version, _ := asInt(m["version"])
			cases = append(cases, PlanTestCase{
				ExternalID: asString(m["full_external_id"]),
				PlatformID: asString(m["platform_id"]),
				Version:    version,
			})
		}
	}
	return cases, nil
}

// AddTestCaseToTestPlan calls tl.addTestCaseToTestPlan. The platform id is
// only sent when set.
func (c *XMLRPCClient) AddTestCaseToTestPlan(ctx context.Context, link TestCaseLink) error {
	args := map[string]any{
		"testprojectid":      idArg(link.ProjectID),
		"testplanid":         idArg(link.PlanID),
		"testcaseexternalid": link.ExternalID,
		"version":            link.Version,
	}
	if link.PlatformID != "" {
		args["platformid"] = idArg(link.PlatformID)
	}
	_, err := c.call(ctx, "addTestCaseToTestPlan", args)
	return err
}

// LatestTestCaseVersion reads the first entry of tl.getTestCase, which
// TestLink orders newest first.
func (c *XMLRPCClient) LatestTestCaseVersion(ctx context.Context, externalID string) (int, error) {
	reply, err := c.call(ctx, "getTestCase", map[string]any{"testcaseexternalid": externalID})
	if err != nil {
		return 0, err
	}
	m := firstMap(reply)
	if m == nil {
		return 0, &ResponseError{Method: "getTestCase", Code: CodeTestCaseNotFound, Message: "empty response for " + externalID}
	}
	version, err := asInt(m["version"])
	if err != nil {
		return 0, fmt.Errorf("testlink getTestCase: version of %s: %w", externalID, err)
	}
	return version, nil
}

// ReportTCResult calls tl.reportTCResult with args as given.
func (c *XMLRPCClient) ReportTCResult(ctx context.Context, args map[string]any) (*ReportResult, error) {
	reply, err := c.call(ctx, "reportTCResult", args)
	if err != nil {
		return nil, err
	}
	m := firstMap(reply)
	if m == nil {
		return nil, fmt.Errorf("testlink reportTCResult: unexpected response %v", reply)
	}
	return &ReportResult{
		ExternalID:  asString(args[ParamTestCaseExternalID]),
		ExecutionID: asString(m["id"]),
		Status:      asBool(m["status"]),
		Operation:   asString(m["operation"]),
		Overwrite:   asBool(m["overwrite"]),
		Message:     asString(m["message"]),
	}, nil
}

// responseError detects TestLink's [{code, message}] error shape.
func responseError(method string, reply any) error {
	m := firstMap(reply)
	if m == nil {
		return nil
	}
	rawCode, hasCode := m["code"]
	_, hasMessage := m["message"]
	if !hasCode || !hasMessage || asBool(m["status"]) {
		return nil
	}
	code, err := asInt(rawCode)
	if err != nil || code == 0 {
		return nil
	}
	return &ResponseError{Method: method, Code: code, Message: asString(m["message"])}
}

func projectFrom(m map[string]any) *TestProject {
	return &TestProject{
		ID:     asString(m["id"]),
		Name:   asString(m["name"]),
		Prefix: asString(m["prefix"]),
	}
}

func planFrom(m map[string]any) *TestPlan {
	return &TestPlan{
		ID:        asString(m["id"]),
		Name:      asString(m["name"]),
		ProjectID: asString(m["testproject_id"]),
	}
}

func platformsFrom(reply any) []Platform {
	var platforms []Platform
	for _, m := range mapsOf(reply) {
		platforms = append(platforms, Platform{ID: asString(m["id"]), Name: asString(m["name"])})
	}
	return platforms
}

// valuesOf returns the elements of an XML-RPC array or the values of a struct.
func valuesOf(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, e)
		}
		return out
	}
	return nil
}

// mapsOf returns the struct elements of an array or keyed struct. A single
// struct that is itself an entity (has an "id") is returned as is.
func mapsOf(v any) []map[string]any {
	if m, ok := v.(map[string]any); ok {
		if _, isEntity := m["id"]; isEntity {
			return []map[string]any{m}
		}
		if _, isEntity := m["full_external_id"]; isEntity {
			return []map[string]any{m}
		}
	}
	var out []map[string]any
	for _, e := range valuesOf(v) {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// firstMap returns v when it is a struct, or its first element when it is an
// array of structs.
func firstMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		if len(t) > 0 {
			if m, ok := t[0].(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case int64:
		return int(t), nil
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// idArg sends numeric ids as XML-RPC ints, which TestLink validates strictly.
func idArg(id string) any {
	if n, err := strconv.Atoi(id); err == nil {
		return n
	}
	return id
}
