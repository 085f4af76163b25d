package climate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"
)

// Listener receives a state every time an entity is added, refreshed,
// commanded, or removed. Listeners run on the calling goroutine and must
// not call back into the Registry for the same entity.
type Listener func(State)

type handle struct {
	mu      sync.Mutex
	entryID string
	entity  Entity
	last    State
}

// Registry owns the live climate entities of every loaded config entry.
type Registry struct {
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	handles   map[string]*handle
	listeners []Listener
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		now:     time.Now,
		handles: make(map[string]*handle),
	}
}

// Subscribe registers a state listener.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Add registers entities that belong to entryID. It fails without adding
// anything when a unique ID is empty or already taken.
func (r *Registry) Add(entryID string, entities ...Entity) error {
	r.mu.Lock()
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		id := e.UniqueID()
		if id == "" {
			r.mu.Unlock()
			return fmt.Errorf("climate entity for entry %s has no unique id", entryID)
		}
		if _, exists := r.handles[id]; exists || seen[id] {
			r.mu.Unlock()
			return fmt.Errorf("climate entity %s already registered", id)
		}
		seen[id] = true
	}

	added := make([]State, 0, len(entities))
	for _, e := range entities {
		state := Snapshot(entryID, e, r.now())
		r.handles[e.UniqueID()] = &handle{entryID: entryID, entity: e, last: state}
		added = append(added, state)
	}
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	for _, state := range added {
		r.logger.Info("climate entity added", "entity", state.UniqueID, "entry_id", entryID, "name", state.Name)
		notify(listeners, state)
	}
	return nil
}

// RemoveEntry drops every entity owned by entryID and returns how many
// were removed.
func (r *Registry) RemoveEntry(entryID string) int {
	r.mu.Lock()
	var removed []State
	for id, h := range r.handles {
		if h.entryID != entryID {
			continue
		}
		state := h.last
		state.Available = false
		state.UpdatedAt = r.now()
		removed = append(removed, state)
		delete(r.handles, id)
	}
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	for _, state := range removed {
		r.logger.Info("climate entity removed", "entity", state.UniqueID, "entry_id", entryID)
		notify(listeners, state)
	}
	return len(removed)
}

// Entities returns the entities owned by entryID.
func (r *Registry) Entities(entryID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entity
	for _, h := range r.handles {
		if h.entryID == entryID {
			out = append(out, h.entity)
		}
	}
	return out
}

// States returns the last known state of every entity, ordered by ID.
func (r *Registry) States() []State {
	r.mu.RLock()
	handles := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	out := make([]State, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		out = append(out, h.last)
		h.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

// State returns the last known state of one entity.
func (r *Registry) State(uniqueID string) (State, error) {
	h, err := r.lookup(uniqueID)
	if err != nil {
		return State{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, nil
}

// Polled lists the unique IDs of entities that want periodic refresh.
func (r *Registry) Polled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.handles))
	for id, h := range r.handles {
		if h.entity.ShouldPoll() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Refresh runs the entity's update hook and publishes the new state.
func (r *Registry) Refresh(ctx context.Context, uniqueID string) (State, error) {
	h, err := r.lookup(uniqueID)
	if err != nil {
		return State{}, err
	}

	h.mu.Lock()
	h.entity.Update(ctx)
	state := Snapshot(h.entryID, h.entity, r.now())
	h.last = state
	h.mu.Unlock()

	r.publish(state)
	return state, nil
}

// Call runs fn against one entity while holding its command lock. A
// successful command is followed by a refresh so the returned state
// reflects the device.
func (r *Registry) Call(ctx context.Context, uniqueID string, fn func(context.Context, Entity) error) (State, error) {
	h, err := r.lookup(uniqueID)
	if err != nil {
		return State{}, err
	}

	h.mu.Lock()
	if err := fn(ctx, h.entity); err != nil {
		h.mu.Unlock()
		return State{}, err
	}
	h.entity.Update(ctx)
	state := Snapshot(h.entryID, h.entity, r.now())
	h.last = state
	h.mu.Unlock()

	r.publish(state)
	return state, nil
}

// SetTemperature validates the request against the entity before sending.
func (r *Registry) SetTemperature(ctx context.Context, uniqueID string, req SetTemperatureRequest) (State, error) {
	return r.Call(ctx, uniqueID, func(ctx context.Context, e Entity) error {
		if !e.SupportedFeatures().Has(FeatureTargetTemperature) {
			return fmt.Errorf("%w: target temperature", ErrNotSupported)
		}
		if req.Temperature != nil {
			if t := *req.Temperature; t < e.MinTemp() || t > e.MaxTemp() {
				return fmt.Errorf("%w: %v outside %v-%v", ErrOutOfRange, t, e.MinTemp(), e.MaxTemp())
			}
		}
		if req.HVACMode != "" {
			if err := checkHVACMode(e, req.HVACMode); err != nil {
				return err
			}
			if err := e.SetHVACMode(ctx, req.HVACMode); err != nil {
				return err
			}
		}
		return e.SetTemperature(ctx, req)
	})
}

func (r *Registry) SetHVACMode(ctx context.Context, uniqueID string, mode HVACMode) (State, error) {
	return r.Call(ctx, uniqueID, func(ctx context.Context, e Entity) error {
		if err := checkHVACMode(e, mode); err != nil {
			return err
		}
		return e.SetHVACMode(ctx, mode)
	})
}

func (r *Registry) SetFanMode(ctx context.Context, uniqueID, mode string) (State, error) {
	return r.Call(ctx, uniqueID, func(ctx context.Context, e Entity) error {
		if !e.SupportedFeatures().Has(FeatureFanMode) {
			return fmt.Errorf("%w: fan mode", ErrNotSupported)
		}
		if !slices.Contains(e.FanModes(), mode) {
			return fmt.Errorf("%w: fan mode %q", ErrNotSupported, mode)
		}
		return e.SetFanMode(ctx, mode)
	})
}

func (r *Registry) SetSwingMode(ctx context.Context, uniqueID, mode string) (State, error) {
	return r.Call(ctx, uniqueID, func(ctx context.Context, e Entity) error {
		if !e.SupportedFeatures().Has(FeatureSwingMode) {
			return fmt.Errorf("%w: swing mode", ErrNotSupported)
		}
		if !slices.Contains(e.SwingModes(), mode) {
			return fmt.Errorf("%w: swing mode %q", ErrNotSupported, mode)
		}
		return e.SetSwingMode(ctx, mode)
	})
}

func (r *Registry) TurnOn(ctx context.Context, uniqueID string) (State, error) {
	return r.Call(ctx, uniqueID, func(ctx context.Context, e Entity) error {
		if !e.SupportedFeatures().Has(FeatureTurnOn) {
			return fmt.Errorf("%w: turn on", ErrNotSupported)
		}
		return e.TurnOn(ctx)
	})
}

func (r *Registry) TurnOff(ctx context.Context, uniqueID string) (State, error) {
	return r.Call(ctx, uniqueID, func(ctx context.Context, e Entity) error {
		if !e.SupportedFeatures().Has(FeatureTurnOff) {
			return fmt.Errorf("%w: turn off", ErrNotSupported)
		}
		return e.TurnOff(ctx)
	})
}

func checkHVACMode(e Entity, mode HVACMode) error {
	if !slices.Contains(e.HVACModes(), mode) {
		return fmt.Errorf("%w: hvac mode %q", ErrNotSupported, mode)
	}
	return nil
}

func (r *Registry) lookup(uniqueID string) (*handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[uniqueID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, uniqueID)
	}
	return h, nil
}

func (r *Registry) publish(state State) {
	r.mu.RLock()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()
	notify(listeners, state)
}

func notify(listeners []Listener, state State) {
	for _, l := range listeners {
		l(state)
	}
}
