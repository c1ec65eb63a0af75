package engine

import (
	"errors"
	"fmt"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// ErrPipeline matches every PipelineError via errors.Is.
var ErrPipeline = errors.New("analysis pipeline failed")

// PipelineError reports an analysis that could not produce a score and had
// no cached entry to fall back to.
type PipelineError struct {
	Token token.Address
	Phase Phase
	Panic bool
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Panic {
		return fmt.Sprintf("analysis of %s panicked in %s: %v", e.Token, e.Phase, e.Err)
	}
	return fmt.Sprintf("analysis of %s failed in %s: %v", e.Token, e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func (e *PipelineError) Is(target error) bool { return target == ErrPipeline }
