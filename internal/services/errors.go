package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRejected marks submissions refused by policy before any damage is
	// done: no asset selected, or the video exceeds the size ceiling.
	ErrRejected      = errors.New("submission rejected")
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails captures the classification and human-readable portion of a
// wrapped stage error.
type ErrorDetails struct {
	Kind    string
	Message string
	Cause   error
}

// Details extracts structured information from an error produced by Wrap.
// Errors without a known sentinel yield their Error() text unchanged.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: err.Error(), Cause: err}
	for _, sentinel := range []error{ErrRejected, ErrExternalTool, ErrValidation, ErrConfiguration, ErrNotFound, ErrTransient} {
		if errors.Is(err, sentinel) {
			details.Kind = sentinel.Error()
			details.Message = strings.TrimSpace(strings.TrimPrefix(err.Error(), sentinel.Error()+":"))
			break
		}
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
