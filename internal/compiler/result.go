package compiler

import "time"

// Status tags a compile result.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
)

// Result is the outcome of one compiler run.
//
// On success Output holds the compiler's standard output (warnings and other
// diagnostics); on failure it holds standard error. Both are meant for the
// submitter.
type Result struct {
	Status    Status
	Output    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// OK reports whether the compiler exited with status zero.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
