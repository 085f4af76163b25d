package tfiac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/joshp123/gohome-tfiac/internal/climate"
)

var ErrUnsupportedMode = errors.New("unsupported hvac mode")

const (
	minTemp = 61
	maxTemp = 88
)

// Entity adapts one TFIAC unit to the climate entity contract. Reads come
// from the device's last status; writes go straight to the device.
type Entity struct {
	device       Device
	entryID      string
	friendlyName string
	logger       *slog.Logger
	onPoll       func(entryID string, err error)

	mu        sync.Mutex
	available bool
}

var _ climate.Entity = (*Entity)(nil)

func NewEntity(device Device, entryID, friendlyName string, logger *slog.Logger) *Entity {
	if logger == nil {
		logger = slog.Default()
	}
	return &Entity{
		device:       device,
		entryID:      entryID,
		friendlyName: friendlyName,
		logger:       logger,
		available:    true,
	}
}

func (e *Entity) UniqueID() string { return e.entryID }

func (e *Entity) Name() string {
	if e.friendlyName != "" {
		return e.friendlyName
	}
	if name := e.device.Name(); name != "" {
		return name
	}
	return "TFIAC " + e.device.Host()
}

func (e *Entity) DeviceInfo() climate.DeviceInfo {
	name := e.friendlyName
	if name == "" {
		name = e.device.Name()
	}
	if name == "" {
		name = "TFIAC"
	}
	return climate.DeviceInfo{
		Identifiers: [][2]string{{Domain, e.entryID}},
		Name:        name,
	}
}

func (e *Entity) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

func (e *Entity) ShouldPoll() bool { return true }

func (e *Entity) SupportedFeatures() climate.Feature {
	return climate.FeatureTargetTemperature | climate.FeatureFanMode | climate.FeatureSwingMode |
		climate.FeatureTurnOn | climate.FeatureTurnOff
}

func (e *Entity) TemperatureUnit() climate.TemperatureUnit { return climate.Fahrenheit }
func (e *Entity) MinTemp() float64                         { return minTemp }
func (e *Entity) MaxTemp() float64                         { return maxTemp }
func (e *Entity) HVACModes() []climate.HVACMode            { return append([]climate.HVACMode(nil), hvacModes...) }
func (e *Entity) FanModes() []string                       { return append([]string(nil), fanModes...) }
func (e *Entity) SwingModes() []string                     { return append([]string(nil), swingModes...) }

func (e *Entity) CurrentTemperature() (float64, bool) {
	if t := e.device.Status().CurrentTemp; t != nil {
		return *t, true
	}
	return 0, false
}

func (e *Entity) TargetTemperature() (float64, bool) {
	if t := e.device.Status().TargetTemp; t != nil {
		return *t, true
	}
	return 0, false
}

// HVACMode reports off whenever the unit is not powered on. An operation
// the unit reports but the table does not know yields no mode.
func (e *Entity) HVACMode() (climate.HVACMode, bool) {
	status := e.device.Status()
	if status.Power != PowerOn {
		return climate.HVACOff, true
	}
	mode, ok := operationToHVAC[status.Operation]
	return mode, ok
}

// PoweredOn reports the unit's own power flag, whatever its operation.
func (e *Entity) PoweredOn() bool {
	return e.device.Status().Power == PowerOn
}

func (e *Entity) FanMode() string {
	return strings.ToLower(e.device.Status().FanMode)
}

func (e *Entity) SwingMode() string {
	return strings.ToLower(e.device.Status().SwingMode)
}

// Update polls the unit. Failures only flip availability.
func (e *Entity) Update(ctx context.Context) {
	err := e.device.Update(ctx)

	e.mu.Lock()
	e.available = err == nil
	e.mu.Unlock()

	if err != nil {
		e.logger.Debug("tfiac update failed", "entity", e.entryID, "host", e.device.Host(), "error", err)
	}
	if e.onPoll != nil {
		e.onPoll(e.entryID, err)
	}
}

func (e *Entity) SetTemperature(ctx context.Context, req climate.SetTemperatureRequest) error {
	if req.Temperature == nil {
		return nil
	}
	return e.device.SetTargetTemperature(ctx, *req.Temperature)
}

func (e *Entity) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	if mode == climate.HVACOff {
		return e.device.SetPower(ctx, PowerOff)
	}
	operation, ok := hvacToOperation[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	return e.device.SetOperationMode(ctx, operation)
}

func (e *Entity) SetFanMode(ctx context.Context, mode string) error {
	return e.device.SetFanMode(ctx, capitalize(mode))
}

func (e *Entity) SetSwingMode(ctx context.Context, mode string) error {
	return e.device.SetSwingMode(ctx, capitalize(mode))
}

// TurnOn always resumes in cool mode.
func (e *Entity) TurnOn(ctx context.Context) error {
	return e.device.SetOperationMode(ctx, OperationCool)
}

func (e *Entity) TurnOff(ctx context.Context) error {
	return e.device.SetPower(ctx, PowerOff)
}
