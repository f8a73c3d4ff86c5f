package language

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Outcome is the result of loading one definition file.
type Outcome string

const (
	OutcomeLoaded  Outcome = "loaded"
	OutcomeSkipped Outcome = "skipped"
)

// FileResult records what happened to one definition file.
type FileResult struct {
	Path       string
	Outcome    Outcome
	LanguageID uuid.UUID
	Err        error
}

// LoadReport lists per-file outcomes of a registry load in directory order.
type LoadReport struct {
	Dir   string
	Files []FileResult
}

// Loaded returns the number of files that produced a descriptor.
func (r LoadReport) Loaded() int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == OutcomeLoaded {
			n++
		}
	}
	return n
}

// Skipped returns the files that were rejected, with their reasons.
func (r LoadReport) Skipped() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Outcome == OutcomeSkipped {
			out = append(out, f)
		}
	}
	return out
}

func (r LoadReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d loaded, %d skipped", r.Dir, r.Loaded(), len(r.Skipped()))
	for _, f := range r.Skipped() {
		fmt.Fprintf(&b, "\n  skipped %s: %v", f.Path, f.Err)
	}
	return b.String()
}
