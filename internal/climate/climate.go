// Package climate defines the host's climate entity contract and the
// registry that polls and commands climate entities.
package climate

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEntityNotFound = errors.New("climate entity not found")
	ErrNotSupported   = errors.New("climate feature not supported")
	ErrOutOfRange     = errors.New("temperature out of range")
)

// HVACMode is the host-level operating mode of a climate device.
type HVACMode string

const (
	HVACOff     HVACMode = "off"
	HVACHeat    HVACMode = "heat"
	HVACCool    HVACMode = "cool"
	HVACAuto    HVACMode = "auto"
	HVACDry     HVACMode = "dry"
	HVACFanOnly HVACMode = "fan_only"
)

// ParseHVACMode accepts the canonical lower-case mode names.
func ParseHVACMode(s string) (HVACMode, bool) {
	switch mode := HVACMode(s); mode {
	case HVACOff, HVACHeat, HVACCool, HVACAuto, HVACDry, HVACFanOnly:
		return mode, true
	default:
		return "", false
	}
}

const (
	FanAuto   = "auto"
	FanHigh   = "high"
	FanMedium = "medium"
	FanLow    = "low"

	SwingOff        = "off"
	SwingHorizontal = "horizontal"
	SwingVertical   = "vertical"
	SwingBoth       = "both"
)

// Feature is a bit set of optional climate capabilities.
type Feature uint32

const (
	FeatureTargetTemperature Feature = 1 << iota
	FeatureFanMode
	FeatureSwingMode
	FeatureTurnOff
	FeatureTurnOn
)

func (f Feature) Has(other Feature) bool {
	return f&other == other
}

// TemperatureUnit is the unit an entity reports temperatures in.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "°C"
	Fahrenheit TemperatureUnit = "°F"
)

// DeviceInfo groups entities under a physical device.
type DeviceInfo struct {
	Identifiers [][2]string `json:"identifiers"`
	Name        string      `json:"name"`
}

// Entity is the contract every climate platform implements.
//
// Read methods must not block: they answer from the last refreshed state.
// Update and the command methods are never called concurrently for the
// same entity; the Registry serializes them.
type Entity interface {
	UniqueID() string
	Name() string
	DeviceInfo() DeviceInfo
	Available() bool
	ShouldPoll() bool

	SupportedFeatures() Feature
	TemperatureUnit() TemperatureUnit
	MinTemp() float64
	MaxTemp() float64
	HVACModes() []HVACMode
	FanModes() []string
	SwingModes() []string

	CurrentTemperature() (float64, bool)
	TargetTemperature() (float64, bool)
	HVACMode() (HVACMode, bool)
	FanMode() string
	SwingMode() string

	Update(ctx context.Context)
	SetTemperature(ctx context.Context, req SetTemperatureRequest) error
	SetHVACMode(ctx context.Context, mode HVACMode) error
	SetFanMode(ctx context.Context, mode string) error
	SetSwingMode(ctx context.Context, mode string) error
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// SetTemperatureRequest carries the optional arguments of a
// set-temperature command.
type SetTemperatureRequest struct {
	Temperature *float64 `json:"temperature,omitempty"`
	HVACMode    HVACMode `json:"hvac_mode,omitempty"`
}

// State is a point-in-time view of an entity.
type State struct {
	UniqueID           string          `json:"unique_id"`
	EntryID            string          `json:"entry_id"`
	Name               string          `json:"name"`
	Device             DeviceInfo      `json:"device"`
	Available          bool            `json:"available"`
	HVACMode           HVACMode        `json:"hvac_mode,omitempty"`
	CurrentTemperature *float64        `json:"current_temperature,omitempty"`
	TargetTemperature  *float64        `json:"target_temperature,omitempty"`
	FanMode            string          `json:"fan_mode"`
	SwingMode          string          `json:"swing_mode"`
	Unit               TemperatureUnit `json:"temperature_unit"`
	MinTemp            float64         `json:"min_temp"`
	MaxTemp            float64         `json:"max_temp"`
	HVACModes          []HVACMode      `json:"hvac_modes"`
	FanModes           []string        `json:"fan_modes,omitempty"`
	SwingModes         []string        `json:"swing_modes,omitempty"`
	Features           Feature         `json:"supported_features"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Snapshot reads every property of e into a State.
func Snapshot(entryID string, e Entity, now time.Time) State {
	state := State{
		UniqueID:  e.UniqueID(),
		EntryID:   entryID,
		Name:      e.Name(),
		Device:    e.DeviceInfo(),
		Available: e.Available(),
		FanMode:   e.FanMode(),
		SwingMode: e.SwingMode(),
		Unit:      e.TemperatureUnit(),
		MinTemp:   e.MinTemp(),
		MaxTemp:   e.MaxTemp(),
		HVACModes: e.HVACModes(),
		Features:  e.SupportedFeatures(),
		UpdatedAt: now,
	}
	if mode, ok := e.HVACMode(); ok {
		state.HVACMode = mode
	}
	if v, ok := e.CurrentTemperature(); ok {
		state.CurrentTemperature = &v
	}
	if v, ok := e.TargetTemperature(); ok {
		state.TargetTemperature = &v
	}
	if state.Features.Has(FeatureFanMode) {
		state.FanModes = e.FanModes()
	}
	if state.Features.Has(FeatureSwingMode) {
		state.SwingModes = e.SwingModes()
	}
	return state
}
