// Package testlinktest provides an in-memory TestLink XML-RPC server for
// tests, in the spirit of net/http/httptest.
//
// The server implements the subset of the TestLink API the listener calls and
// answers with the same in-band [{code, message}] errors TestLink uses.
package testlinktest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kolo/xmlrpc"
)

// Error codes returned by the server. They match TestLink's.
const (
	CodeInvalidDevKey      = 2000
	CodeTestCaseNotLinked  = 3030
	CodePlanNotFound       = 3033
	CodePlanExists         = 3034
	CodeNoPlatformsOnPlan  = 3041
	CodeVersionLinked      = 3045
	CodeTestCaseNotFound   = 5040
	CodeProjectNotFound    = 7011
	CodePlatformExists     = 12000
	CodeUnknownMethod      = -32601
	codeInvalidPlanID      = 3000
	defaultSuccessResponse = "Success!"
)

// Project is a test project known to the server.
type Project struct {
	ID     string
	Name   string
	Prefix string
}

// Plan is a test plan known to the server.
type Plan struct {
	ID        string
	Name      string
	ProjectID string
}

// Platform is a platform known to the server.
type Platform struct {
	ID        string
	Name      string
	ProjectID string
}

// Link is a test case version linked to a plan.
type Link struct {
	PlanID     string
	ExternalID string
	Version    int
	PlatformID string
}

type fault struct {
	code    int
	message string
}

// Server is a fake TestLink server. Its setup methods may be called while
// requests are served.
type Server struct {
	URL    string
	DevKey string

	srv *httptest.Server

	mu            sync.Mutex
	nextID        int
	projects      []Project
	plans         []Plan
	platforms     []Platform
	planPlatforms map[string][]string
	testCases     map[string]int
	links         []Link
	results       []map[string]any
	calls         map[string]int
	faults        map[string][]fault
	dropPlatforms bool
}

// NewServer starts a server accepting devKey. Close stops it.
func NewServer(devKey string) *Server {
	s := &Server{
		DevKey:        devKey,
		nextID:        100,
		planPlatforms: make(map[string][]string),
		testCases:     make(map[string]int),
		calls:         make(map[string]int),
		faults:        make(map[string][]fault),
	}
	s.srv = httptest.NewServer(s)
	s.URL = s.srv.URL + "/lib/api/xmlrpc/v1/xmlrpc.php"
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

// AddProject creates a project and returns its id.
func (s *Server) AddProject(name, prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.projects = append(s.projects, Project{ID: id, Name: name, Prefix: prefix})
	return id
}

// AddPlan creates a plan in a project and returns its id.
func (s *Server) AddPlan(projectID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.plans = append(s.plans, Plan{ID: id, Name: name, ProjectID: projectID})
	return id
}

// AddPlatform creates a platform in a project and returns its id.
func (s *Server) AddPlatform(projectID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.platforms = append(s.platforms, Platform{ID: id, Name: name, ProjectID: projectID})
	return id
}

// AttachPlatform adds a platform to a plan.
func (s *Server) AttachPlatform(planID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planPlatforms[planID] = append(s.planPlatforms[planID], name)
}

// AddTestCase registers a test case with its latest version.
func (s *Server) AddTestCase(externalID string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testCases[externalID] = version
}

// LinkTestCase links a test case version to a plan.
func (s *Server) LinkTestCase(planID, externalID string, version int, platformID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, Link{PlanID: planID, ExternalID: externalID, Version: version, PlatformID: platformID})
}

// FailNext makes the next call of method (without the "tl." prefix) answer
// with the given TestLink error. Failures queue up per method.
func (s *Server) FailNext(method string, code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = append(s.faults[method], fault{code: code, message: message})
}

// DropPlatformCreation makes createPlatform succeed without storing the
// platform, as a server with replication lag would.
func (s *Server) DropPlatformCreation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropPlatforms = true
}

// Calls returns how often method was called.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Results returns the arguments of every accepted reportTCResult call.
func (s *Server) Results() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// Links returns the test cases linked to a plan.
func (s *Server) Links(planID string) []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Link
	for _, l := range s.links {
		if l.PlanID == planID {
			out = append(out, l)
		}
	}
	return out
}

// Project returns the project named name.
func (s *Server) Project(name string) (Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectByName(name)
}

// Plan returns the plan named name in a project.
func (s *Server) Plan(projectID, name string) (Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.ProjectID == projectID && p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// Platform returns the platform named name in a project.
func (s *Server) Platform(projectID, name string) (Platform, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platformByName(projectID, name)
}

// PlanPlatforms returns the platform names attached to a plan.
func (s *Server) PlanPlatforms(planID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.planPlatforms[planID])
}

// ServeHTTP decodes one XML-RPC call and writes the response.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var call struct {
		MethodName string `xml:"methodName"`
	}
	if err := xml.Unmarshal(body, &call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params := make(map[string]any)
	if bytes.Contains(body, []byte("<param>")) {
		// The first <value> of a methodCall is its struct parameter.
		if err := xmlrpc.Response(body).Unmarshal(&params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	reply := s.dispatch(strings.TrimPrefix(call.MethodName, "tl."), params)
	out, err := encodeResponse(reply)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(out)
}

// encodeResponse wraps v in a methodResponse, reusing the method call encoder
// for the params section.
func encodeResponse(v any) ([]byte, error) {
	call, err := xmlrpc.EncodeMethodCall("response", v)
	if err != nil {
		return nil, err
	}
	start := bytes.Index(call, []byte("<params>"))
	end := bytes.LastIndex(call, []byte("</params>"))
	if start < 0 || end < 0 {
		return nil, fmt.Errorf("unexpected encoding %q", call)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse>")
	buf.Write(call[start : end+len("</params>")])
	buf.WriteString("</methodResponse>")
	return buf.Bytes(), nil
}

func errorResponse(code int, message string) any {
	return []any{map[string]any{"code": code, "message": message}}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (s *Server) dispatch(method string, p map[string]any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[method]++
	if queued := s.faults[method]; len(queued) > 0 {
		s.faults[method] = queued[1:]
		return errorResponse(queued[0].code, queued[0].message)
	}
	if str(p["devKey"]) != s.DevKey {
		return errorResponse(CodeInvalidDevKey, "Can not authenticate client: invalid developer key")
	}

	switch method {
	case "checkDevKey":
		return true
	case "getTestProjectByName":
		return s.getTestProjectByName(p)
	case "getProjects":
		return s.getProjects()
	case "getTestPlanByName":
		return s.getTestPlanByName(p)
	case "createTestPlan":
		return s.createTestPlan(p)
	case "getProjectPlatforms":
		return s.getProjectPlatforms(p)
	case "getTestPlanPlatforms":
		return s.getTestPlanPlatforms(p)
	case "createPlatform":
		return s.createPlatform(p)
	case "addPlatformToTestPlan":
		return s.addPlatformToTestPlan(p)
	case "getTestCasesForTestPlan":
		return s.getTestCasesForTestPlan(p)
	case "addTestCaseToTestPlan":
		return s.addTestCaseToTestPlan(p)
	case "getTestCase":
		return s.getTestCase(p)
	case "reportTCResult":
		return s.reportTCResult(p)
	}
	return errorResponse(CodeUnknownMethod, "unknown method "+method)
}

func (s *Server) projectByName(name string) (Project, bool) {
	for _, p := range s.projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

func (s *Server) planByID(id string) (Plan, bool) {
	for _, p := range s.plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func (s *Server) platformByName(projectID, name string) (Platform, bool) {
	for _, p := range s.platforms {
		if p.ProjectID == projectID && p.Name == name {
			return p, true
		}
	}
	return Platform{}, false
}

func projectStruct(p Project) map[string]any {
	return map[string]any{"id": p.ID, "name": p.Name, "prefix": p.Prefix, "active": "1"}
}

func (s *Server) getTestProjectByName(p map[string]any) any {
	project, ok := s.projectByName(str(p["testprojectname"]))
	if !ok {
		return errorResponse(CodeProjectNotFound, fmt.Sprintf("Test Project (name: %s) does not exist", str(p["testprojectname"])))
	}
	return projectStruct(project)
}

func (s *Server) getProjects() any {
	out := make([]any, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, projectStruct(p))
	}
	return out
}

func (s *Server) getTestPlanByName(p map[string]any) any {
	project, ok := s.projectByName(str(p["testprojectname"]))
	if !ok {
		return errorResponse(CodeProjectNotFound, fmt.Sprintf("Test Project (name: %s) does not exist", str(p["testprojectname"])))
	}
	for _, plan := range s.plans {
		if plan.ProjectID == project.ID && plan.Name == str(p["testplanname"]) {
			return []any{map[string]any{"id": plan.ID, "name": plan.Name, "testproject_id": plan.ProjectID, "active": "1"}}
		}
	}
	return errorResponse(CodePlanNotFound, fmt.Sprintf("Name: %s does not exist for Test Project: %s", str(p["testplanname"]), project.Name))
}

func (s *Server) createTestPlan(p map[string]any) any {
	project, ok := s.projectByName(str(p["testprojectname"]))
	if !ok {
		return errorResponse(CodeProjectNotFound, fmt.Sprintf("Test Project (name: %s) does not exist", str(p["testprojectname"])))
	}
	name := str(p["testplanname"])
	for _, plan := range s.plans {
		if plan.ProjectID == project.ID && plan.Name == name {
			return errorResponse(CodePlanExists, fmt.Sprintf("Test Plan (name: %s) already exists", name))
		}
	}
	id := s.newID()
	s.plans = append(s.plans, Plan{ID: id, Name: name, ProjectID: project.ID})
	return []any{map[string]any{"status": true, "id": id, "message": defaultSuccessResponse, "additionalInfo": ""}}
}

func platformStruct(p Platform) map[string]any {
	return map[string]any{"id": p.ID, "name": p.Name, "notes": ""}
}

func (s *Server) getProjectPlatforms(p map[string]any) any {
	projectID := str(p["testprojectid"])
	byName := make(map[string]any)
	for _, pl := range s.platforms {
		if pl.ProjectID == projectID {
			byName[pl.Name] = platformStruct(pl)
		}
	}
	if len(byName) == 0 {
		return []any{}
	}
	return byName
}

func (s *Server) getTestPlanPlatforms(p map[string]any) any {
	planID := str(p["testplanid"])
	plan, ok := s.planByID(planID)
	if !ok {
		return errorResponse(codeInvalidPlanID, "The Test Plan ID ("+planID+") provided does not exist")
	}
	var out []any
	for _, name := range s.planPlatforms[planID] {
		if pl, ok := s.platformByName(plan.ProjectID, name); ok {
			out = append(out, platformStruct(pl))
		}
	}
	if len(out) == 0 {
		return errorResponse(CodeNoPlatformsOnPlan, "Test plan (id:"+planID+") has no platforms linked")
	}
	return out
}

func (s *Server) createPlatform(p map[string]any) any {
	project, ok := s.projectByName(str(p["testprojectname"]))
	if !ok {
		return errorResponse(CodeProjectNotFound, fmt.Sprintf("Test Project (name: %s) does not exist", str(p["testprojectname"])))
	}
	name := str(p["platformname"])
	if _, exists := s.platformByName(project.ID, name); exists {
		return errorResponse(CodePlatformExists, fmt.Sprintf("Platform %s already exists", name))
	}
	id := s.newID()
	if !s.dropPlatforms {
		s.platforms = append(s.platforms, Platform{ID: id, Name: name, ProjectID: project.ID})
	}
	return map[string]any{"id": id, "name": name}
}

func (s *Server) addPlatformToTestPlan(p map[string]any) any {
	planID := str(p["testplanid"])
	if _, ok := s.planByID(planID); !ok {
		return errorResponse(codeInvalidPlanID, "The Test Plan ID ("+planID+") provided does not exist")
	}
	name := str(p["platformname"])
	if !slices.Contains(s.planPlatforms[planID], name) {
		s.planPlatforms[planID] = append(s.planPlatforms[planID], name)
	}
	return map[string]any{"operation": "addPlatformToTestPlan", "msg": "link done"}
}

func (s *Server) getTestCasesForTestPlan(p map[string]any) any {
	planID := str(p["testplanid"])
	if _, ok := s.planByID(planID); !ok {
		return errorResponse(codeInvalidPlanID, "The Test Plan ID ("+planID+") provided does not exist")
	}
	byCase := make(map[string]any)
	for _, l := range s.links {
		if l.PlanID != planID {
			continue
		}
		tcID := "tc" + l.ExternalID
		byPlatform, _ := byCase[tcID].(map[string]any)
		if byPlatform == nil {
			byPlatform = make(map[string]any)
			byCase[tcID] = byPlatform
		}
		platformID := l.PlatformID
		if platformID == "" {
			platformID = "0"
		}
		byPlatform[platformID] = map[string]any{
			"full_external_id": l.ExternalID,
			"platform_id":      platformID,
			"version":          strconv.Itoa(l.Version),
		}
	}
	if len(byCase) == 0 {
		return []any{}
	}
	return byCase
}

func (s *Server) addTestCaseToTestPlan(p map[string]any) any {
	planID := str(p["testplanid"])
	if _, ok := s.planByID(planID); !ok {
		return errorResponse(codeInvalidPlanID, "The Test Plan ID ("+planID+") provided does not exist")
	}
	externalID := str(p["testcaseexternalid"])
	if _, ok := s.testCases[externalID]; !ok {
		return errorResponse(CodeTestCaseNotFound, "Test Case (external id: "+externalID+") does not exist")
	}
	version, _ := strconv.Atoi(str(p["version"]))
	platformID := str(p["platformid"])
	for _, l := range s.links {
		if l.PlanID == planID && l.ExternalID == externalID && l.PlatformID == platformID {
			return errorResponse(CodeVersionLinked, "Test case version already linked to test plan")
		}
	}
	s.links = append(s.links, Link{PlanID: planID, ExternalID: externalID, Version: version, PlatformID: platformID})
	return map[string]any{"operation": "addTestCaseToTestPlan", "feature_id": s.newID()}
}

func (s *Server) getTestCase(p map[string]any) any {
	externalID := str(p["testcaseexternalid"])
	version, ok := s.testCases[externalID]
	if !ok {
		return errorResponse(CodeTestCaseNotFound, "Test Case (external id: "+externalID+") does not exist")
	}
	return []any{map[string]any{
		"full_tc_external_id": externalID,
		"version":             strconv.Itoa(version),
		"status":              "1",
	}}
}

func (s *Server) reportTCResult(p map[string]any) any {
	planID := str(p["testplanid"])
	if _, ok := s.planByID(planID); !ok {
		return errorResponse(codeInvalidPlanID, "The Test Plan ID ("+planID+") provided does not exist")
	}
	externalID := str(p["testcaseexternalid"])
	linked := false
	for _, l := range s.links {
		if l.PlanID == planID && l.ExternalID == externalID {
			linked = true
			break
		}
	}
	if !linked {
		return errorResponse(CodeTestCaseNotLinked, "Test case "+externalID+" is not linked to test plan "+planID)
	}

	result := make(map[string]any, len(p))
	for k, v := range p {
		result[k] = v
	}
	s.results = append(s.results, result)
	return []any{map[string]any{
		"status":    true,
		"operation": "reportTCResult",
		"overwrite": false,
		"message":   defaultSuccessResponse,
		"id":        s.newID(),
	}}
}
