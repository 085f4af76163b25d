// Package entries persists config entries and drives their lifecycle:
// setup, unload, reload, and forwarding to entity platforms.
package entries

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/joshp123/gohome-tfiac/internal/climate"
)

var (
	ErrEntryNotFound      = errors.New("config entry not found")
	ErrUnknownIntegration = errors.New("unknown integration")
	ErrUnknownPlatform    = errors.New("unknown platform")
)

// State is the load state of a config entry.
type State string

const (
	StateNotLoaded    State = "not_loaded"
	StateLoaded       State = "loaded"
	StateSetupError   State = "setup_error"
	StateFailedUnload State = "failed_unload"
)

// Platform names an entity platform an integration can forward to.
type Platform string

const PlatformClimate Platform = "climate"

// Well-known keys in Data and Options.
const (
	KeyHost         = "host"
	KeyFriendlyName = "friendly_name"
)

// Entry is one configured device instance.
type Entry struct {
	EntryID   string            `json:"entry_id"`
	Domain    string            `json:"domain"`
	Title     string            `json:"title"`
	UniqueID  string            `json:"unique_id,omitempty"`
	Version   int               `json:"version"`
	Data      map[string]string `json:"data"`
	Options   map[string]string `json:"options"`
	State     State             `json:"state"`
	Reason    string            `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate manager state.
func (e Entry) Clone() Entry {
	e.Data = maps.Clone(e.Data)
	e.Options = maps.Clone(e.Options)
	if e.Data == nil {
		e.Data = map[string]string{}
	}
	if e.Options == nil {
		e.Options = map[string]string{}
	}
	return e
}

// Update describes a partial entry mutation. Nil fields are left alone;
// Data and Options replace the whole map when set.
type Update struct {
	Title    *string
	UniqueID *string
	Data     map[string]string
	Options  map[string]string
}

// Host is the slice of the Manager that integrations call back into.
type Host interface {
	Entries(domain string) []Entry
	UpdateEntry(ctx context.Context, entryID string, u Update) (Entry, error)
	Reload(ctx context.Context, entryID string) error
	ForwardEntrySetups(ctx context.Context, entry Entry, platforms []Platform) error
	UnloadPlatforms(ctx context.Context, entry Entry, platforms []Platform) (bool, error)
}

// Integration is implemented by plugins that own config entries.
type Integration interface {
	Domain() string
	SetupEntry(ctx context.Context, host Host, entry Entry) (bool, error)
	UnloadEntry(ctx context.Context, host Host, entry Entry) (bool, error)
}

// PlatformProvider is implemented by integrations that expose entity
// platforms. SetupPlatform adds the entry's entities through add.
type PlatformProvider interface {
	SetupPlatform(ctx context.Context, platform Platform, entry Entry, add AddEntities) error
}

// AddEntities hands freshly built climate entities to the host.
type AddEntities func(entities ...climate.Entity) error
