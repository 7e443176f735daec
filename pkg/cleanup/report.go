// Package cleanup defines the cleanup modes and the step report the
// command builds as it works through a run. Every step outcome lands
// here; nothing is silently swallowed.
package cleanup

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Mode selects how far cleanup reaches into local state
type Mode string

const (
	// ModeQuick destroys the infrastructure and the tracked local tunnel
	ModeQuick Mode = "quick"
	// ModeFull additionally removes the bastion SSH config and host keys
	ModeFull Mode = "full"
	// ModeUltra additionally removes any remaining project WireGuard configs
	ModeUltra Mode = "ultra"
)

// Includes reports whether this mode covers the scope of other.
// ultra ⊃ full ⊃ quick.
func (m Mode) Includes(other Mode) bool {
	rank := map[Mode]int{ModeQuick: 0, ModeFull: 1, ModeUltra: 2}
	return rank[m] >= rank[other]
}

// Status is the outcome of a single cleanup step
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusWould   Status = "would run"
)

// StepResult records one step of a cleanup run
type StepResult struct {
	Name   string
	Status Status
	Detail string
	Err    error
}

// Report accumulates step results over a cleanup run
type Report struct {
	Steps []StepResult
}

// OK records a successful step
func (r *Report) OK(name, detail string) {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: StatusOK, Detail: detail})
}

// Skip records a step the operator declined or that had nothing to do
func (r *Report) Skip(name, detail string) {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: StatusSkipped, Detail: detail})
}

// Fail records a step that errored; the run continues
func (r *Report) Fail(name string, err error) {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: StatusFailed, Detail: err.Error(), Err: err})
}

// Would records a step a dry run would have performed
func (r *Report) Would(name, detail string) {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: StatusWould, Detail: detail})
}

// HasFailures reports whether any step failed
func (r *Report) HasFailures() bool {
	for _, step := range r.Steps {
		if step.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Count returns the number of steps with the given status
func (r *Report) Count(status Status) int {
	n := 0
	for _, step := range r.Steps {
		if step.Status == status {
			n++
		}
	}
	return n
}

// Render writes the summary table
func (r *Report) Render(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tDETAIL")
	for _, step := range r.Steps {
		detail := step.Detail
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", step.Name, step.Status, detail)
	}
	tw.Flush()
}
