package scenario

import "github.com/robertbuff/imagine/internal/journal"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expectation and assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains all recorded events in order.
	Trace []journal.Event `json:"trace"`

	// Errors contains failed expectation and assertion messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Depths contains the final number of active overrides per mapping.
	Depths map[string]int `json:"depths,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []journal.Event{},
		Errors: []string{},
		Depths: make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
