package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joshp123/gohome-tfiac/internal/entries"
)

// EntryStore is the part of the entry manager flows write through.
type EntryStore interface {
	entries.Host
	Entry(entryID string) (entries.Entry, error)
	Add(ctx context.Context, entry entries.Entry) (entries.Entry, error)
}

type flowState struct {
	mu      sync.Mutex
	id      string
	domain  string
	source  Source
	entryID string
	handler Handler
	current Result
}

// Manager tracks in-progress flows and applies their terminal results.
type Manager struct {
	entries EntryStore
	logger  *slog.Logger
	newID   func() string

	mu        sync.Mutex
	factories map[string]Factory
	flows     map[string]*flowState
}

func NewManager(store EntryStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		entries:   store,
		logger:    logger,
		newID:     uuid.NewString,
		factories: make(map[string]Factory),
		flows:     make(map[string]*flowState),
	}
}

func (m *Manager) Register(f Factory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.factories[f.Domain()]; exists {
		return fmt.Errorf("flow handler %q already registered", f.Domain())
	}
	m.factories[f.Domain()] = f
	return nil
}

// Init starts a flow and returns its first step. entryID is required for
// reconfigure and options flows and ignored for user flows.
func (m *Manager) Init(ctx context.Context, domain string, source Source, entryID string) (Result, error) {
	m.mu.Lock()
	factory, ok := m.factories[domain]
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownHandler, domain)
	}

	var bound *entries.Entry
	switch source {
	case SourceUser:
		entryID = ""
	case SourceReconfigure, SourceOptions:
		entry, err := m.entries.Entry(entryID)
		if err != nil {
			return Result{}, err
		}
		if entry.Domain != domain {
			return Result{}, fmt.Errorf("entry %s belongs to %q, not %q", entryID, entry.Domain, domain)
		}
		bound = &entry
	default:
		return Result{}, fmt.Errorf("unknown flow source %q", source)
	}

	handler, err := factory.NewFlow(ctx, m.entries, source, bound)
	if err != nil {
		return Result{}, err
	}
	fs := &flowState{
		id:      m.newID(),
		domain:  domain,
		source:  source,
		entryID: entryID,
		handler: handler,
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	m.logger.Debug("flow started", "flow_id", fs.id, "domain", domain, "source", source)
	return m.step(ctx, fs, firstStep(source), nil)
}

// Configure submits input to the current step of a flow.
func (m *Manager) Configure(ctx context.Context, flowID string, input map[string]string) (Result, error) {
	m.mu.Lock()
	fs, ok := m.flows[flowID]
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	normalized, errs := validate(fs.current.Schema, input)
	if len(errs) > 0 {
		res := fs.current
		res.Errors = errs
		fs.current = res
		return res, nil
	}
	return m.step(ctx, fs, fs.current.StepID, normalized)
}

// Progress lists flows waiting for input.
func (m *Manager) Progress() []Result {
	m.mu.Lock()
	flows := make([]*flowState, 0, len(m.flows))
	for _, fs := range m.flows {
		flows = append(flows, fs)
	}
	m.mu.Unlock()

	out := make([]Result, 0, len(flows))
	for _, fs := range flows {
		fs.mu.Lock()
		out = append(out, fs.current)
		fs.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlowID < out[j].FlowID })
	return out
}

func (m *Manager) Abort(flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[flowID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}
	delete(m.flows, flowID)
	return nil
}

// step runs one handler step with fs locked and applies the result.
func (m *Manager) step(ctx context.Context, fs *flowState, stepID string, input map[string]string) (Result, error) {
	res, err := fs.handler.Step(ctx, stepID, input)
	if err != nil {
		m.drop(fs.id)
		return Result{}, fmt.Errorf("flow %s step %s: %w", fs.domain, stepID, err)
	}
	res.FlowID = fs.id
	res.Handler = fs.domain
	res.Source = fs.source

	switch res.Type {
	case ResultForm:
		fs.current = res
		m.mu.Lock()
		m.flows[fs.id] = fs
		m.mu.Unlock()
		return res, nil

	case ResultCreateEntry:
		m.drop(fs.id)
		return m.finish(ctx, fs, res)

	case ResultAbort:
		m.drop(fs.id)
		m.logger.Info("flow aborted", "flow_id", fs.id, "domain", fs.domain, "reason", res.Reason)
		return res, nil

	default:
		m.drop(fs.id)
		return Result{}, fmt.Errorf("flow %s returned unknown result type %q", fs.domain, res.Type)
	}
}

func (m *Manager) finish(ctx context.Context, fs *flowState, res Result) (Result, error) {
	switch fs.source {
	case SourceOptions:
		if _, err := m.entries.UpdateEntry(ctx, fs.entryID, entries.Update{Options: res.Data}); err != nil {
			return Result{}, err
		}
		res.EntryID = fs.entryID
	default:
		entry, err := m.entries.Add(ctx, entries.Entry{
			Domain: fs.domain,
			Title:  res.Title,
			Data:   res.Data,
		})
		if err != nil {
			return Result{}, err
		}
		res.EntryID = entry.EntryID
	}
	m.logger.Info("flow finished", "flow_id", fs.id, "domain", fs.domain, "source", fs.source, "entry_id", res.EntryID)
	return res, nil
}

func (m *Manager) drop(flowID string) {
	m.mu.Lock()
	delete(m.flows, flowID)
	m.mu.Unlock()
}

// validate keeps only schema keys, fills defaults for fields the input
// leaves out, and reports required fields that end up blank.
func validate(schema []Field, input map[string]string) (map[string]string, map[string]string) {
	out := make(map[string]string, len(schema))
	errs := make(map[string]string)
	for _, f := range schema {
		v, ok := input[f.Key]
		if ok {
			v = strings.TrimSpace(v)
		} else {
			v = f.Default
		}
		if f.Required && v == "" {
			errs[f.Key] = ErrorRequired
			continue
		}
		out[f.Key] = v
	}
	return out, errs
}
