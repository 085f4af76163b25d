// Package flow runs multi-step data-entry flows that create and edit
// config entries.
package flow

import (
	"context"
	"errors"

	"github.com/joshp123/gohome-tfiac/internal/entries"
)

var (
	ErrUnknownFlow    = errors.New("unknown flow")
	ErrUnknownHandler = errors.New("no flow handler for domain")
)

// ResultType says what a step produced.
type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
)

// Source says why a flow was started.
type Source string

const (
	SourceUser        Source = "user"
	SourceReconfigure Source = "reconfigure"
	SourceOptions     Source = "options"
)

// Common abort reasons and form errors.
const (
	ReasonAlreadyConfigured     = "already_configured"
	ReasonReconfigureSuccessful = "reconfigure_successful"

	ErrorBase          = "base"
	ErrorCannotConnect = "cannot_connect"
	ErrorRequired      = "required"
)

// Field is one input of a form.
type Field struct {
	Key      string `json:"key"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
}

// Result is the outcome of one flow step.
type Result struct {
	Type    ResultType        `json:"type"`
	FlowID  string            `json:"flow_id"`
	Handler string            `json:"handler"`
	Source  Source            `json:"source"`
	StepID  string            `json:"step_id,omitempty"`
	Schema  []Field           `json:"schema,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Title   string            `json:"title,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
	EntryID string            `json:"entry_id,omitempty"`
}

// Form asks the user for the fields in schema. errs may be nil.
func Form(stepID string, schema []Field, errs map[string]string) Result {
	return Result{Type: ResultForm, StepID: stepID, Schema: schema, Errors: errs}
}

func CreateEntry(title string, data map[string]string) Result {
	return Result{Type: ResultCreateEntry, Title: title, Data: data}
}

func Abort(reason string) Result {
	return Result{Type: ResultAbort, Reason: reason}
}

// Handler drives one flow. Step is called with a nil input when the step
// is first shown, and with the validated user input afterwards.
type Handler interface {
	Step(ctx context.Context, stepID string, input map[string]string) (Result, error)
}

// Factory builds flow handlers for one integration domain. Handlers reach
// existing entries through host. entry is nil for SourceUser and the
// bound entry otherwise.
type Factory interface {
	Domain() string
	NewFlow(ctx context.Context, host entries.Host, source Source, entry *entries.Entry) (Handler, error)
}

// firstStep is the step a new flow of the given source starts at.
func firstStep(source Source) string {
	switch source {
	case SourceOptions:
		return "init"
	default:
		return string(source)
	}
}
