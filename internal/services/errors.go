package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient         = errors.New("transient failure")
	ErrValidation        = errors.New("validation mismatch")
	ErrUnrecoverablePath = errors.New("unrecoverable path")
	ErrUnknownState      = errors.New("unknown remote state")
	ErrExternalTool      = errors.New("external tool error")
	ErrTimeout           = errors.New("timeout")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
)

// Outcome is the result class of a single pipeline step.
type Outcome int

const (
	// OutcomeDone means the step completed or was already complete.
	OutcomeDone Outcome = iota
	// OutcomeRetryable leaves the step's flag unset for a later run.
	OutcomeRetryable
	// OutcomeFatal means the item cannot progress without operator action.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// Classify maps a step error to an Outcome. Validation mismatches and
// unrecoverable paths are never retried automatically within a run.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeDone
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnrecoverablePath),
		errors.Is(err, ErrConfiguration):
		return OutcomeFatal
	default:
		return OutcomeRetryable
	}
}

// IsRetryableCall reports whether an individual collaborator call may be
// repeated in place. Only transport-level failures qualify.
func IsRetryableCall(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
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
