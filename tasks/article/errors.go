package article

import "fmt"

const (
	StageOutline = "outline"
	StageSection = "section"
)

// StageError names the pipeline stage that failed a run.
type StageError struct {
	Stage   string
	Index   int
	Heading string
	Err     error
}

func (e *StageError) Error() string {
	if e.Stage == StageSection {
		return fmt.Sprintf("%s stage failed for section %d %q: %v", e.Stage, e.Index+1, e.Heading, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
