package testlink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Cucumber JSON report, as written by godog's "cucumber" formatter.
type cucumberFeature struct {
	URI      string            `json:"uri"`
	Name     string            `json:"name"`
	Elements []cucumberElement `json:"elements"`
}

type cucumberElement struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Tags        []cucumberTag  `json:"tags"`
	Steps       []cucumberStep `json:"steps"`
}

type cucumberTag struct {
	Name string `json:"name"`
}

type cucumberStep struct {
	Keyword string `json:"keyword"`
	Name    string `json:"name"`
	Result  struct {
		Status       string `json:"status"`
		Duration     int64  `json:"duration"`
		ErrorMessage string `json:"error_message"`
	} `json:"result"`
}

// ReadCucumberReport converts a cucumber JSON report into tests, one per
// scenario. The scenario's description and tags form the documentation. A
// scenario passed when every step passed.
func ReadCucumberReport(r io.Reader) ([]Test, error) {
	var features []cucumberFeature
	if err := json.NewDecoder(r).Decode(&features); err != nil {
		return nil, fmt.Errorf("decode cucumber report: %w", err)
	}

	var tests []Test
	for _, f := range features {
		for _, el := range f.Elements {
			if el.Type == "background" {
				continue
			}
			doc := make([]string, 0, len(el.Tags)+1)
			if d := strings.TrimSpace(el.Description); d != "" {
				doc = append(doc, d)
			}
			for _, tag := range el.Tags {
				doc = append(doc, tag.Name)
			}

			test := Test{Name: el.Name, Doc: strings.Join(doc, " "), Passed: true}
			for _, step := range el.Steps {
				test.Duration += time.Duration(step.Result.Duration)
				if step.Result.Status == "passed" {
					continue
				}
				test.Passed = false
				if test.Message == "" {
					test.Message = fmt.Sprintf("%s%s: %s", step.Keyword, step.Name, step.Result.Status)
					if step.Result.ErrorMessage != "" {
						test.Message += ": " + step.Result.ErrorMessage
					}
				}
			}
			tests = append(tests, test)
		}
	}
	return tests, nil
}

// EndTests reports every test in order. Tests are independent: a failure is
// collected and the next test is still reported. The returned error lists
// every failed test.
func (l *Listener) EndTests(ctx context.Context, tests []Test) error {
	var result *multierror.Error
	for _, test := range tests {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		if err := l.EndTest(ctx, test); err != nil {
			l.logger.Error("reporting test failed", "test", test.Name, "error", err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", test.Name, err))
		}
	}
	return result.ErrorOrNil()
}
