package subtitle

import "errors"

var (
	// ErrTimestampMapping means phrases could not be aligned to token times,
	// typically because the token sequence is empty.
	ErrTimestampMapping = errors.New("subtitle: timestamp mapping unavailable")

	// ErrMergeRender means the merger received a malformed timed phrase.
	ErrMergeRender = errors.New("subtitle: malformed timed phrase")
)

const (
	stageMap   = "map"
	stageMerge = "merge"
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
