package screening

import (
	"errors"
	"fmt"
)

// Sentinel errors for scoring.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidPartition = errors.New("invalid scoring band partition")
)

// UnknownQuestionnaireError is returned when a questionnaire id is not one of
// the supported set. It matches ErrInvalidInput with errors.Is.
type UnknownQuestionnaireError struct {
	ID string
}

func (e *UnknownQuestionnaireError) Error() string {
	return fmt.Sprintf("unknown questionnaire: %q", e.ID)
}

func (e *UnknownQuestionnaireError) Is(target error) bool {
	return target == ErrInvalidInput
}
