package testlink

import (
	"context"
	"maps"
	"strings"
)

// ReportParams holds the arguments of one result submission.
//
// An empty value means the parameter is unset.
//
// Id fields are either supplied or filled in by a Resolver, at most once.
// Keys without a dedicated field (guess, bugid, customfields, user, ...)
// live in Extra and are passed to tl.reportTCResult verbatim.
type ReportParams struct {
	ProjectName  string
	ProjectID    string
	PlanName     string
	PlanID       string
	PlatformName string
	PlatformID   string
	BuildName    string
	BuildID      string
	Status       string
	Notes        string
	Extra        map[string]string
}

// ParseReportArgs parses listener arguments of the form "key=value".
// An argument without exactly one "=" is a configuration error.
func ParseReportArgs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		switch strings.Count(arg, "=") {
		case 0:
			return nil, configErrorf("report argument %q has no equal sign", arg)
		case 1:
		default:
			return nil, configErrorf("report argument %q has multiple equal signs", arg)
		}
		key, value, _ := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, configErrorf("report argument %q has an empty key", arg)
		}
		out[key] = value
	}
	return out, nil
}

// NewReportParams builds params from a key/value map, routing known keys to
// their fields and everything else to Extra.
func NewReportParams(kv map[string]string) *ReportParams {
	p := &ReportParams{Extra: make(map[string]string)}
	for k, v := range kv {
		p.Set(k, v)
	}
	return p
}

// fields maps parameter names to the struct fields that hold them.
func (p *ReportParams) fields() map[string]*string {
	return map[string]*string{
		ParamTestProjectName: &p.ProjectName,
		ParamTestProjectID:   &p.ProjectID,
		ParamTestPlanName:    &p.PlanName,
		ParamTestPlanID:      &p.PlanID,
		ParamPlatformName:    &p.PlatformName,
		ParamPlatformID:      &p.PlatformID,
		ParamBuildName:       &p.BuildName,
		ParamBuildID:         &p.BuildID,
		ParamStatus:          &p.Status,
		ParamNotes:           &p.Notes,
	}
}

// Set stores value under name.
func (p *ReportParams) Set(name, value string) {
	if f, ok := p.fields()[name]; ok {
		*f = value
		return
	}
	if p.Extra == nil {
		p.Extra = make(map[string]string)
	}
	p.Extra[name] = value
}

// Get returns the value stored under name, or "".
func (p *ReportParams) Get(name string) string {
	if f, ok := p.fields()[name]; ok {
		return *f
	}
	return p.Extra[name]
}

// SetDefault stores value under name unless a value is already present or
// value is empty. An empty value counts as unset, so an argument such as
// "notes=" is still filled from defaults.
func (p *ReportParams) SetDefault(name, value string) {
	if value == "" || p.Get(name) != "" {
		return
	}
	p.Set(name, value)
}

// Clone returns a deep copy.
func (p *ReportParams) Clone() *ReportParams {
	c := *p
	c.Extra = maps.Clone(p.Extra)
	if c.Extra == nil {
		c.Extra = make(map[string]string)
	}
	return &c
}

// FillDefaults sets every unset recognized parameter from defaults, looking
// each up as DefaultsPrefix+name.
func (p *ReportParams) FillDefaults(ctx context.Context, defaults Defaults) {
	if defaults == nil {
		return
	}
	for _, name := range ReportParamNames {
		if p.Get(name) != "" {
			continue
		}
		if v, ok := defaults.Lookup(ctx, DefaultsPrefix+name); ok {
			p.SetDefault(name, v)
		}
	}
}
