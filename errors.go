package testlink

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a configuration problem: a malformed listener argument,
	// a missing project name/id, a missing plan name when a plan has to be
	// created, or an invalid test prefix.
	ErrConfig = errors.New("testlink: configuration error")

	// ErrUnresolved is returned when an entity is still missing after it was
	// provisioned. It points at an inconsistency on the server and is not retried.
	ErrUnresolved = errors.New("testlink: entity not found after creation")

	// ErrNotConnected is returned by operations that need a server connection
	// after the listener was closed.
	ErrNotConnected = errors.New("testlink: listener is closed")
)

// ResponseError is an in-band error reported by the TestLink API.
type ResponseError struct {
	Method  string
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("testlink %s: %d: %s", e.Method, e.Code, e.Message)
}

// configErrorf builds an error wrapping ErrConfig.
func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is a TestLink response saying the requested
// project, plan, test case or plan platform list does not exist.
func IsNotFound(err error) bool {
	var re *ResponseError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Code {
	case CodeTestPlanNotFound, CodeTestProjectNotFound, CodeNoPlatformsOnPlan, CodeTestCaseNotFound:
		return true
	}
	return false
}

// IsAlreadyExists reports whether err is a TestLink response saying the entity
// being created or linked is already there. Callers treat it as success.
func IsAlreadyExists(err error) bool {
	var re *ResponseError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Code {
	case CodePlatformAlreadyExists, CodeTestPlanAlreadyExists, CodeTestCaseVersionLinked:
		return true
	}
	return false
}
