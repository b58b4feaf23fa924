package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
)

// checkResults counts passed and failed checks and collects the failures.
type checkResults struct {
	passed atomic.Int64
	failed atomic.Int64
	mu     sync.Mutex
	errs   *multierror.Error
}

func (r *checkResults) Pass(check string) {
	r.passed.Add(1)
	slog.Info("PASS", "check", check)
}

func (r *checkResults) Fail(check string, err error) {
	r.failed.Add(1)
	r.mu.Lock()
	r.errs = multierror.Append(r.errs, fmt.Errorf("%s: %w", check, err))
	r.mu.Unlock()
	slog.Error("FAIL", "check", check, "error", err)
}

// Expect records check as passed when err is nil.
func (r *checkResults) Expect(check string, err error) {
	if err != nil {
		r.Fail(check, err)
		return
	}
	r.Pass(check)
}

// Err returns every failure, or nil.
func (r *checkResults) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs.ErrorOrNil()
}

func (r *checkResults) Summary() {
	passed, failed := r.passed.Load(), r.failed.Load()
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Checks: %d/%d passed\n", passed, passed+failed)
	if err := r.Err(); err != nil {
		fmt.Println(err)
	}
	fmt.Println(strings.Repeat("=", 60))
}

var results = new(checkResults)

func section(name string) {
	slog.Info(strings.Repeat("-", 60))
	slog.Info(">> " + name)
	slog.Info(strings.Repeat("-", 60))
}
