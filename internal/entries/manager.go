package entries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshp123/gohome-tfiac/internal/climate"
)

const defaultVersion = 1

// Option configures a Manager.
type Option func(*Manager)

// WithMirror mirrors every mutation to blob storage and restores from it
// when the local store is empty.
func WithMirror(b BlobStore) Option {
	return func(m *Manager) { m.mirror = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns config entries: persistence, integration lookup, and the
// setup/unload lifecycle.
type Manager struct {
	store   Store
	mirror  BlobStore
	climate *climate.Registry
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu           sync.Mutex
	entries      map[string]Entry
	integrations map[string]Integration
	forwarded    map[string]map[Platform]bool
}

var _ Host = (*Manager)(nil)

func NewManager(store Store, registry *climate.Registry, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		climate:      registry,
		logger:       slog.Default(),
		now:          time.Now,
		newID:        uuid.NewString,
		entries:      make(map[string]Entry),
		integrations: make(map[string]Integration),
		forwarded:    make(map[string]map[Platform]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register makes an integration available for its domain.
func (m *Manager) Register(in Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	domain := in.Domain()
	if domain == "" {
		return fmt.Errorf("integration domain is empty")
	}
	if _, exists := m.integrations[domain]; exists {
		return fmt.Errorf("integration %q already registered", domain)
	}
	m.integrations[domain] = in
	return nil
}

// Load reads persisted entries and sets each one up. A failing entry is
// recorded as setup_error and does not stop the others.
func (m *Manager) Load(ctx context.Context) error {
	stored, err := m.store.List(ctx)
	if err != nil {
		return err
	}
	if len(stored) == 0 && m.mirror != nil {
		stored, err = m.restoreMirror(ctx)
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	for _, e := range stored {
		e.State = StateNotLoaded
		m.entries[e.EntryID] = e.Clone()
	}
	m.mu.Unlock()

	for _, e := range stored {
		if err := m.Setup(ctx, e.EntryID); err != nil {
			m.logger.Warn("config entry setup failed", "entry_id", e.EntryID, "domain", e.Domain, "error", err)
		}
	}
	m.logger.Info("config entries loaded", "count", len(stored))
	return nil
}

// Entries lists entries of one domain, or all entries when domain is "".
func (m *Manager) Entries(domain string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if domain == "" || e.Domain == domain {
			out = append(out, e.Clone())
		}
	}
	sortEntries(out)
	return out
}

func (m *Manager) Entry(entryID string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	return e.Clone(), nil
}

// Add persists a new entry and sets it up. A setup failure is recorded
// on the entry, not returned.
func (m *Manager) Add(ctx context.Context, entry Entry) (Entry, error) {
	if _, err := m.integration(entry.Domain); err != nil {
		return Entry{}, err
	}

	now := m.now()
	entry = entry.Clone()
	entry.EntryID = m.newID()
	if entry.Version == 0 {
		entry.Version = defaultVersion
	}
	entry.State = StateNotLoaded
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if err := m.store.Put(ctx, entry); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	m.entries[entry.EntryID] = entry
	m.mu.Unlock()
	m.saveMirror(ctx)

	m.logger.Info("config entry created", "entry_id", entry.EntryID, "domain", entry.Domain, "title", entry.Title)
	if err := m.Setup(ctx, entry.EntryID); err != nil {
		m.logger.Warn("config entry setup failed", "entry_id", entry.EntryID, "error", err)
	}
	return m.Entry(entry.EntryID)
}

// UpdateEntry applies a partial update and persists it.
func (m *Manager) UpdateEntry(ctx context.Context, entryID string, u Update) (Entry, error) {
	m.mu.Lock()
	e, ok := m.entries[entryID]
	if !ok {
		m.mu.Unlock()
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	e = e.Clone()
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.UniqueID != nil {
		e.UniqueID = *u.UniqueID
	}
	if u.Data != nil {
		e.Data = u.Data
	}
	if u.Options != nil {
		e.Options = u.Options
	}
	e = e.Clone()
	e.UpdatedAt = m.now()
	m.mu.Unlock()

	if err := m.store.Put(ctx, e); err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	if current, ok := m.entries[entryID]; ok {
		e.State = current.State
		e.Reason = current.Reason
	}
	m.entries[entryID] = e
	m.mu.Unlock()
	m.saveMirror(ctx)

	return e.Clone(), nil
}

// Setup runs the integration's setup for a not-loaded entry.
func (m *Manager) Setup(ctx context.Context, entryID string) error {
	entry, err := m.Entry(entryID)
	if err != nil {
		return err
	}
	if entry.State == StateLoaded {
		return nil
	}
	in, err := m.integration(entry.Domain)
	if err != nil {
		m.setState(entryID, StateNotLoaded, err.Error())
		return err
	}

	ok, err := in.SetupEntry(ctx, m, entry)
	switch {
	case err != nil:
		m.setState(entryID, StateSetupError, err.Error())
		return fmt.Errorf("setup %s: %w", entryID, err)
	case !ok:
		m.setState(entryID, StateSetupError, "setup returned false")
		return fmt.Errorf("setup %s: integration reported failure", entryID)
	}
	m.setState(entryID, StateLoaded, "")
	m.logger.Debug("config entry loaded", "entry_id", entryID, "domain", entry.Domain)
	return nil
}

// Unload reverses Setup. Entries that are not loaded unload trivially.
func (m *Manager) Unload(ctx context.Context, entryID string) (bool, error) {
	entry, err := m.Entry(entryID)
	if err != nil {
		return false, err
	}
	if entry.State != StateLoaded && entry.State != StateFailedUnload {
		m.setState(entryID, StateNotLoaded, "")
		return true, nil
	}
	in, err := m.integration(entry.Domain)
	if err != nil {
		return false, err
	}

	ok, err := in.UnloadEntry(ctx, m, entry)
	if err != nil {
		m.setState(entryID, StateFailedUnload, err.Error())
		return false, fmt.Errorf("unload %s: %w", entryID, err)
	}
	if !ok {
		m.setState(entryID, StateFailedUnload, "unload returned false")
		return false, nil
	}
	m.setState(entryID, StateNotLoaded, "")
	return true, nil
}

// Reload unloads and sets the entry up again, picking up changed data
// and options.
func (m *Manager) Reload(ctx context.Context, entryID string) error {
	ok, err := m.Unload(ctx, entryID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reload %s: unload failed", entryID)
	}
	m.logger.Info("config entry reloading", "entry_id", entryID)
	return m.Setup(ctx, entryID)
}

// Remove unloads and deletes an entry.
func (m *Manager) Remove(ctx context.Context, entryID string) error {
	if _, err := m.Entry(entryID); err != nil {
		return err
	}
	if _, err := m.Unload(ctx, entryID); err != nil {
		m.logger.Warn("unload before remove failed", "entry_id", entryID, "error", err)
	}
	if err := m.store.Delete(ctx, entryID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.entries, entryID)
	delete(m.forwarded, entryID)
	m.mu.Unlock()
	m.saveMirror(ctx)

	m.logger.Info("config entry removed", "entry_id", entryID)
	return nil
}

// ForwardEntrySetups sets up the entry's entities on each platform.
func (m *Manager) ForwardEntrySetups(ctx context.Context, entry Entry, platforms []Platform) error {
	in, err := m.integration(entry.Domain)
	if err != nil {
		return err
	}
	provider, ok := in.(PlatformProvider)
	if !ok {
		return fmt.Errorf("%w: %s has no entity platforms", ErrUnknownPlatform, entry.Domain)
	}

	for _, p := range platforms {
		if p != PlatformClimate {
			return fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
		}
		add := func(entities ...climate.Entity) error {
			return m.climate.Add(entry.EntryID, entities...)
		}
		if err := provider.SetupPlatform(ctx, p, entry, add); err != nil {
			return fmt.Errorf("setup %s platform: %w", p, err)
		}

		m.mu.Lock()
		if m.forwarded[entry.EntryID] == nil {
			m.forwarded[entry.EntryID] = make(map[Platform]bool)
		}
		m.forwarded[entry.EntryID][p] = true
		m.mu.Unlock()
	}
	return nil
}

// UnloadPlatforms removes the entry's entities from each platform.
func (m *Manager) UnloadPlatforms(_ context.Context, entry Entry, platforms []Platform) (bool, error) {
	for _, p := range platforms {
		if p != PlatformClimate {
			return false, fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
		}
		m.climate.RemoveEntry(entry.EntryID)

		m.mu.Lock()
		delete(m.forwarded[entry.EntryID], p)
		if len(m.forwarded[entry.EntryID]) == 0 {
			delete(m.forwarded, entry.EntryID)
		}
		m.mu.Unlock()
	}
	return true, nil
}

// Close unloads every loaded entry.
func (m *Manager) Close(ctx context.Context) {
	for _, e := range m.Entries("") {
		if e.State != StateLoaded {
			continue
		}
		if _, err := m.Unload(ctx, e.EntryID); err != nil {
			m.logger.Warn("config entry unload failed", "entry_id", e.EntryID, "error", err)
		}
	}
}

func (m *Manager) integration(domain string) (Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.integrations[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegration, domain)
	}
	return in, nil
}

func (m *Manager) setState(entryID string, state State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[entryID]; ok {
		e.State = state
		e.Reason = reason
		m.entries[entryID] = e
	}
}

func (m *Manager) saveMirror(ctx context.Context) {
	if m.mirror == nil {
		return
	}
	entries := m.Entries("")
	for i := range entries {
		entries[i].State = ""
		entries[i].Reason = ""
	}
	data, err := encodeMirror(entries, m.now())
	if err != nil {
		m.logger.Warn("encode entries mirror", "error", err)
		return
	}
	if err := m.mirror.Save(ctx, mirrorKey, data); err != nil {
		m.logger.Warn("save entries mirror", "error", err)
	}
}

func (m *Manager) restoreMirror(ctx context.Context) ([]Entry, error) {
	data, err := m.mirror.Load(ctx, mirrorKey)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		m.logger.Warn("load entries mirror", "error", err)
		return nil, nil
	}
	restored, err := decodeMirror(data)
	if err != nil {
		return nil, err
	}
	for _, e := range restored {
		if err := m.store.Put(ctx, e); err != nil {
			return nil, fmt.Errorf("restore entry %s: %w", e.EntryID, err)
		}
	}
	m.logger.Info("config entries restored from mirror", "count", len(restored))
	return restored, nil
}
