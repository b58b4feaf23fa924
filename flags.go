package testlink

import (
	"context"
	"log/slog"

	of "github.com/open-feature/go-sdk/openfeature"
	"github.com/open-feature/go-sdk/openfeature/hooks"
)

// StringEvaluator is the part of an OpenFeature client FlagDefaults uses.
// *openfeature.Client implements it.
type StringEvaluator interface {
	StringValue(ctx context.Context, flag string, defaultValue string, evalCtx of.EvaluationContext, options ...of.Option) (string, error)
}

// FlagDefaults serves report parameter defaults from OpenFeature string flags
// named after the prefixed parameter, e.g. "testlinkbuildname". Any
// OpenFeature provider can back it; a flag that is missing, disabled or
// empty counts as unset.
type FlagDefaults struct {
	client  StringEvaluator
	evalCtx of.EvaluationContext
}

// NewFlagDefaults returns FlagDefaults evaluating flags with client in evalCtx.
func NewFlagDefaults(client StringEvaluator, evalCtx of.EvaluationContext) *FlagDefaults {
	return &FlagDefaults{client: client, evalCtx: evalCtx}
}

// NewOpenFeatureDefaults builds FlagDefaults on an OpenFeature client for
// domain. Evaluations use targetingKey and are logged through logger when it
// is not nil.
func NewOpenFeatureDefaults(domain, targetingKey string, logger *slog.Logger) *FlagDefaults {
	client := of.NewClient(domain)
	if logger != nil {
		client.AddHooks(hooks.NewLoggingHook(false, logger))
	}
	return NewFlagDefaults(client, of.NewEvaluationContext(targetingKey, nil))
}

// Lookup implements Defaults.
func (f *FlagDefaults) Lookup(ctx context.Context, name string) (string, bool) {
	v, err := f.client.StringValue(ctx, name, "", f.evalCtx)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}
