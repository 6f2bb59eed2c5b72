package answer

import (
	"errors"
	"fmt"

	"github.com/poiesic/primer/core"
)

// ErrGeneratorRequired is returned when a generator is not provided.
var ErrGeneratorRequired = errors.New("generator required")

// MalformedAnswerError reports generated output that could not be parsed
// into a StructuredAnswer.
type MalformedAnswerError struct {
	Raw    string // the generator's reply, untouched
	Reason string
}

func (e *MalformedAnswerError) Error() string {
	return fmt.Sprintf("%s: %s", core.ErrMalformedAnswer, e.Reason)
}

// Is matches core.ErrMalformedAnswer.
func (e *MalformedAnswerError) Is(target error) bool {
	return target == core.ErrMalformedAnswer
}

func malformed(raw, format string, args ...any) error {
	return &MalformedAnswerError{Raw: raw, Reason: fmt.Sprintf(format, args...)}
}
