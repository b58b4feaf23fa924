package testlink

import (
	"context"
	"iter"
	"log/slog"
	"strconv"
	"strings"
)

// StatusFor maps a test outcome to the TestLink status code.
func StatusFor(passed bool) string {
	if passed {
		return StatusPassed
	}
	return StatusFailed
}

// Reporter submits one result per external id using a Resolver's params.
type Reporter struct {
	api      API
	resolver *Resolver
	logger   *slog.Logger
}

// NewReporter returns a Reporter submitting through api.
func NewReporter(api API, resolver *Resolver, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{api: api, resolver: resolver, logger: logger}
}

// Report returns a sequence that submits one result per id as it is
// consumed. The first unrecovered error is yielded with a nil result and ends
// the sequence. Responses telling that the result is already known are logged
// and skipped. The sequence can be ranged over once; later ranges yield nothing.
func (r *Reporter) Report(ctx context.Context, externalIDs []string) iter.Seq2[*ReportResult, error] {
	consumed := false
	return func(yield func(*ReportResult, error) bool) {
		if consumed {
			return
		}
		consumed = true

		for _, id := range externalIDs {
			args, err := r.Args(ctx, id)
			if err != nil {
				yield(nil, err)
				return
			}
			res, err := r.api.ReportTCResult(ctx, args)
			if IsAlreadyExists(err) {
				r.logger.Warn("result already reported", "testcase", id, "error", err)
				continue
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if res.ExternalID == "" {
				res.ExternalID = id
			}
			if !yield(res, nil) {
				return
			}
		}
	}
}

// Args builds the tl.reportTCResult arguments for one external id.
func (r *Reporter) Args(ctx context.Context, externalID string) (map[string]any, error) {
	planID, err := r.resolver.PlanID(ctx)
	if err != nil {
		return nil, err
	}
	platformID, err := r.resolver.PlatformID(ctx)
	if err != nil {
		return nil, err
	}

	p := r.resolver.Params()
	args := map[string]any{
		ParamTestCaseExternalID: externalID,
		ParamTestPlanID:         idArg(planID),
		ParamStatus:             p.Status,
	}
	if platformID != "" {
		args[ParamPlatformID] = idArg(platformID)
	}
	if p.BuildID != "" {
		args[ParamBuildID] = idArg(p.BuildID)
	}
	if p.BuildName != "" {
		args[ParamBuildName] = p.BuildName
	}
	if p.Notes != "" {
		args[ParamNotes] = p.Notes
	}

	for k, v := range p.Extra {
		if v == "" {
			continue
		}
		switch k {
		case ParamDevKey:
			// TestLink spells it devKey; a per-result key wins over the
			// connection's key.
			args["devKey"] = v
		case ParamGuess, ParamOverwrite:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, configErrorf("%s must be a boolean, got %q", k, v)
			}
			args[k] = b
		case ParamExecDuration:
			d, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, configErrorf("%s must be a number of minutes, got %q", k, v)
			}
			args[k] = d
		case ParamTestCaseID:
			args[k] = idArg(v)
		case ParamCustomFields:
			args[k] = parseCustomFields(v)
		case ParamTestCaseExternalID:
			// Set per id above.
		default:
			args[k] = v
		}
	}
	return args, nil
}

// parseCustomFields reads "name:value,name2:value2".
func parseCustomFields(s string) map[string]any {
	fields := make(map[string]any)
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		fields[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return fields
}
