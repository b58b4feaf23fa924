package testlink

import (
	"context"
	"maps"
	"os"
	"strings"
)

// Defaults supplies fallback values for report parameters that were not
// passed as listener arguments. Names are looked up with DefaultsPrefix,
// e.g. "testlinkplatformname".
type Defaults interface {
	Lookup(ctx context.Context, name string) (string, bool)
}

// DefaultsFunc adapts a function to Defaults.
type DefaultsFunc func(ctx context.Context, name string) (string, bool)

// Lookup implements Defaults.
func (f DefaultsFunc) Lookup(ctx context.Context, name string) (string, bool) {
	return f(ctx, name)
}

// EnvDefaults reads defaults from environment variables named after the
// upper-cased parameter, e.g. TESTLINKPLATFORMNAME.
type EnvDefaults struct{}

// Lookup implements Defaults.
func (EnvDefaults) Lookup(_ context.Context, name string) (string, bool) {
	v, ok := os.LookupEnv(strings.ToUpper(name))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MapDefaults serves defaults from a fixed map.
type MapDefaults map[string]string

// Lookup implements Defaults.
func (m MapDefaults) Lookup(_ context.Context, name string) (string, bool) {
	v, ok := m[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ChainDefaults consults each provider in order and returns the first hit.
type ChainDefaults []Defaults

// Lookup implements Defaults.
func (c ChainDefaults) Lookup(ctx context.Context, name string) (string, bool) {
	for _, d := range c {
		if d == nil {
			continue
		}
		if v, ok := d.Lookup(ctx, name); ok {
			return v, true
		}
	}
	return "", false
}

type scenarioVarsKey struct{}

// WithScenarioVars attaches per-scenario variables to ctx. ScenarioDefaults
// serves them, so a step can set "testlinkplatformname" for its own scenario.
func WithScenarioVars(ctx context.Context, vars map[string]string) context.Context {
	return context.WithValue(ctx, scenarioVarsKey{}, vars)
}

// SetScenarioVar returns a copy of ctx with name set to value in the scenario
// variables. Step definitions return the new context to godog.
func SetScenarioVar(ctx context.Context, name, value string) context.Context {
	vars := maps.Clone(ScenarioVars(ctx))
	if vars == nil {
		vars = make(map[string]string)
	}
	vars[name] = value
	return WithScenarioVars(ctx, vars)
}

// ScenarioVars returns the variables attached by WithScenarioVars, or nil.
func ScenarioVars(ctx context.Context) map[string]string {
	vars, _ := ctx.Value(scenarioVarsKey{}).(map[string]string)
	return vars
}

// ScenarioDefaults serves the variables attached to the context with
// WithScenarioVars.
type ScenarioDefaults struct{}

// Lookup implements Defaults.
func (ScenarioDefaults) Lookup(ctx context.Context, name string) (string, bool) {
	return MapDefaults(ScenarioVars(ctx)).Lookup(ctx, name)
}
