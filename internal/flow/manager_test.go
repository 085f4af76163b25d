package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-tfiac/internal/climate"
	"github.com/joshp123/gohome-tfiac/internal/entries"
)

type echoFactory struct{}

func (echoFactory) Domain() string { return "echo" }

func (echoFactory) NewFlow(_ context.Context, _ entries.Host, source Source, entry *entries.Entry) (Handler, error) {
	return &echoHandler{source: source, entry: entry}, nil
}

type echoHandler struct {
	source Source
	entry  *entries.Entry
	calls  []map[string]string
}

var echoSchema = []Field{
	{Key: entries.KeyHost, Required: true},
	{Key: entries.KeyFriendlyName, Default: "unnamed"},
}

func (h *echoHandler) Step(_ context.Context, stepID string, input map[string]string) (Result, error) {
	h.calls = append(h.calls, input)
	if input == nil {
		return Form(stepID, echoSchema, nil), nil
	}
	switch input[entries.KeyHost] {
	case "boom":
		return Result{}, errors.New("exploded")
	case "dup":
		return Abort(ReasonAlreadyConfigured), nil
	case "retry":
		return Form(stepID, echoSchema, map[string]string{ErrorBase: ErrorCannotConnect}), nil
	}
	return CreateEntry(input[entries.KeyHost], input), nil
}

type nopIntegration struct{}

func (nopIntegration) Domain() string { return "echo" }
func (nopIntegration) SetupEntry(context.Context, entries.Host, entries.Entry) (bool, error) {
	return true, nil
}
func (nopIntegration) UnloadEntry(context.Context, entries.Host, entries.Entry) (bool, error) {
	return true, nil
}

func newTestFlows(t *testing.T) (*Manager, *entries.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	em := entries.NewManager(entries.NewMemoryStore(), climate.NewRegistry(logger), entries.WithLogger(logger))
	require.NoError(t, em.Register(nopIntegration{}))

	fm := NewManager(em, logger)
	require.NoError(t, fm.Register(echoFactory{}))
	return fm, em
}

func TestUserFlowCreatesEntry(t *testing.T) {
	fm, em := newTestFlows(t)

	res, err := fm.Init(testContext(t), "echo", SourceUser, "")
	require.NoError(t, err)
	assert.Equal(t, ResultForm, res.Type)
	assert.Equal(t, "user", res.StepID)
	assert.NotEmpty(t, res.FlowID)
	assert.Len(t, fm.Progress(), 1)

	res, err = fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: " 10.0.0.5 ", "junk": "x"})
	require.NoError(t, err)
	assert.Equal(t, ResultCreateEntry, res.Type)
	assert.Equal(t, "10.0.0.5", res.Title)
	assert.Equal(t, map[string]string{entries.KeyHost: "10.0.0.5", entries.KeyFriendlyName: "unnamed"}, res.Data)
	assert.Empty(t, fm.Progress())

	entry, err := em.Entry(res.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "echo", entry.Domain)
	assert.Equal(t, "10.0.0.5", entry.Data[entries.KeyHost])
	assert.Equal(t, entries.StateLoaded, entry.State)
}

func TestConfigureRequiresFields(t *testing.T) {
	fm, _ := newTestFlows(t)
	res, err := fm.Init(testContext(t), "echo", SourceUser, "")
	require.NoError(t, err)

	again, err := fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: "  "})
	require.NoError(t, err)
	assert.Equal(t, ResultForm, again.Type)
	assert.Equal(t, map[string]string{entries.KeyHost: ErrorRequired}, again.Errors)
	assert.Equal(t, res.FlowID, again.FlowID)
}

func TestConfigureFormErrorKeepsFlow(t *testing.T) {
	fm, _ := newTestFlows(t)
	res, err := fm.Init(testContext(t), "echo", SourceUser, "")
	require.NoError(t, err)

	again, err := fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: "retry"})
	require.NoError(t, err)
	assert.Equal(t, ErrorCannotConnect, again.Errors[ErrorBase])

	done, err := fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: "ok"})
	require.NoError(t, err)
	assert.Equal(t, ResultCreateEntry, done.Type)
}

func TestAbortResultDropsFlow(t *testing.T) {
	fm, em := newTestFlows(t)
	res, err := fm.Init(testContext(t), "echo", SourceUser, "")
	require.NoError(t, err)

	done, err := fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: "dup"})
	require.NoError(t, err)
	assert.Equal(t, ResultAbort, done.Type)
	assert.Equal(t, ReasonAlreadyConfigured, done.Reason)
	assert.Empty(t, em.Entries("echo"))

	_, err = fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: "ok"})
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestHandlerErrorDropsFlow(t *testing.T) {
	fm, _ := newTestFlows(t)
	res, err := fm.Init(testContext(t), "echo", SourceUser, "")
	require.NoError(t, err)

	_, err = fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: "boom"})
	assert.ErrorContains(t, err, "exploded")
	assert.Empty(t, fm.Progress())
}

func TestOptionsFlowSetsOptions(t *testing.T) {
	fm, em := newTestFlows(t)
	entry, err := em.Add(testContext(t), entries.Entry{Domain: "echo", Title: "one", Data: map[string]string{entries.KeyHost: "a"}})
	require.NoError(t, err)

	res, err := fm.Init(testContext(t), "echo", SourceOptions, entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "init", res.StepID)
	assert.Equal(t, SourceOptions, res.Source)

	done, err := fm.Configure(testContext(t), res.FlowID, map[string]string{entries.KeyHost: "b", entries.KeyFriendlyName: "Den"})
	require.NoError(t, err)
	assert.Equal(t, ResultCreateEntry, done.Type)
	assert.Equal(t, entry.EntryID, done.EntryID)

	got, err := em.Entry(entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{entries.KeyHost: "b", entries.KeyFriendlyName: "Den"}, got.Options)
	assert.Len(t, em.Entries("echo"), 1)
}

func TestInitErrors(t *testing.T) {
	fm, _ := newTestFlows(t)

	_, err := fm.Init(testContext(t), "nope", SourceUser, "")
	assert.ErrorIs(t, err, ErrUnknownHandler)

	_, err = fm.Init(testContext(t), "echo", SourceReconfigure, "missing")
	assert.ErrorIs(t, err, entries.ErrEntryNotFound)

	assert.ErrorIs(t, fm.Abort("missing"), ErrUnknownFlow)
}

func TestAbortFlow(t *testing.T) {
	fm, _ := newTestFlows(t)
	res, err := fm.Init(testContext(t), "echo", SourceUser, "")
	require.NoError(t, err)

	require.NoError(t, fm.Abort(res.FlowID))
	assert.Empty(t, fm.Progress())
}
