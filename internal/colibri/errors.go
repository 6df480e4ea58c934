package colibri

import (
	"errors"
	"fmt"
)

// Condition classifies a ProcessingError the way the wire protocol
// reports failures.
type Condition string

const (
	ConditionBadRequest          Condition = "bad-request"
	ConditionItemNotFound        Condition = "item-not-found"
	ConditionInternalServerError Condition = "internal-server-error"
)

// ProcessingError is a structured failure raised while applying a
// conference request. I/O-class collaborator failures convert to one;
// data-quality problems (for example malformed payload-type
// declarations) do not and are skipped instead.
type ProcessingError struct {
	Condition Condition
	Message   string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Condition, e.Message)
}

func NewProcessingError(c Condition, msg string) *ProcessingError {
	return &ProcessingError{Condition: c, Message: msg}
}

func BadRequestf(format string, args ...any) *ProcessingError {
	return &ProcessingError{Condition: ConditionBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *ProcessingError {
	return &ProcessingError{Condition: ConditionItemNotFound, Message: fmt.Sprintf(format, args...)}
}

func InternalErrorf(format string, args ...any) *ProcessingError {
	return &ProcessingError{Condition: ConditionInternalServerError, Message: fmt.Sprintf(format, args...)}
}

// AsProcessingError unwraps err into a ProcessingError if one is in its
// chain.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
