// Package statestream mirrors climate entity state to MQTT and accepts
// commands from it.
//
// State is published retained as JSON on <prefix>/climate/<unique_id>/state.
// Commands arrive as plain-text payloads on
// <prefix>/climate/<unique_id>/set/<attribute>.
package statestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joshp123/gohome-tfiac/internal/climate"
)

// Command attributes accepted on the set topics.
const (
	AttrTemperature = "temperature"
	AttrHVACMode    = "hvac_mode"
	AttrFanMode     = "fan_mode"
	AttrSwingMode   = "swing_mode"
	AttrPower       = "power"
)

const (
	queueSize      = 64
	commandTimeout = 15 * time.Second
)

var ErrBadCommand = errors.New("bad command")

// Broker is the MQTT surface the stream needs.
type Broker interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Close()
}

// Stream publishes registry state changes and applies MQTT commands.
type Stream struct {
	broker   Broker
	registry *climate.Registry
	prefix   string
	logger   *slog.Logger

	queue chan climate.State
	ctx   context.Context
}

func New(broker Broker, registry *climate.Registry, prefix string, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		broker:   broker,
		registry: registry,
		prefix:   strings.TrimSuffix(prefix, "/"),
		logger:   logger.With("component", "statestream"),
		queue:    make(chan climate.State, queueSize),
		ctx:      context.Background(),
	}
}

// StateTopic is where the state of uniqueID is published.
func (s *Stream) StateTopic(uniqueID string) string {
	return s.prefix + "/climate/" + uniqueID + "/state"
}

// CommandTopic is where commands for one attribute of uniqueID arrive.
func (s *Stream) CommandTopic(uniqueID, attr string) string {
	return s.prefix + "/climate/" + uniqueID + "/set/" + attr
}

// Run subscribes to command topics, publishes the current state of every
// entity, and then forwards state changes until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	s.ctx = ctx
	s.registry.Subscribe(s.enqueue)

	if err := s.broker.Subscribe(s.CommandTopic("+", "+"), s.handleCommand); err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	for _, state := range s.registry.States() {
		s.publish(state)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case state := <-s.queue:
			s.publish(state)
		}
	}
}

func (s *Stream) enqueue(state climate.State) {
	select {
	case s.queue <- state:
	default:
		s.logger.Warn("state queue full, dropping update", "entity", state.UniqueID)
	}
}

func (s *Stream) publish(state climate.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		s.logger.Error("encode state", "entity", state.UniqueID, "error", err)
		return
	}
	if err := s.broker.Publish(s.StateTopic(state.UniqueID), true, payload); err != nil {
		s.logger.Warn("publish state", "entity", state.UniqueID, "error", err)
	}
}

func (s *Stream) handleCommand(topic string, payload []byte) {
	uniqueID, attr, ok := s.parseCommandTopic(topic)
	if !ok {
		s.logger.Debug("ignoring topic", "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()

	value := strings.TrimSpace(string(payload))
	if err := s.apply(ctx, uniqueID, attr, value); err != nil {
		s.logger.Warn("command failed", "entity", uniqueID, "attribute", attr, "value", value, "error", err)
		return
	}
	s.logger.Info("command applied", "entity", uniqueID, "attribute", attr, "value", value)
}

func (s *Stream) apply(ctx context.Context, uniqueID, attr, value string) error {
	var err error
	switch attr {
	case AttrTemperature:
		temp, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("%w: temperature %q", ErrBadCommand, value)
		}
		_, err = s.registry.SetTemperature(ctx, uniqueID, climate.SetTemperatureRequest{Temperature: &temp})
	case AttrHVACMode:
		mode, ok := climate.ParseHVACMode(strings.ToLower(value))
		if !ok {
			return fmt.Errorf("%w: hvac mode %q", ErrBadCommand, value)
		}
		_, err = s.registry.SetHVACMode(ctx, uniqueID, mode)
	case AttrFanMode:
		_, err = s.registry.SetFanMode(ctx, uniqueID, strings.ToLower(value))
	case AttrSwingMode:
		_, err = s.registry.SetSwingMode(ctx, uniqueID, strings.ToLower(value))
	case AttrPower:
		switch strings.ToLower(value) {
		case "on":
			_, err = s.registry.TurnOn(ctx, uniqueID)
		case "off":
			_, err = s.registry.TurnOff(ctx, uniqueID)
		default:
			return fmt.Errorf("%w: power %q", ErrBadCommand, value)
		}
	default:
		return fmt.Errorf("%w: unknown attribute %q", ErrBadCommand, attr)
	}
	return err
}

// parseCommandTopic splits <prefix>/climate/<id>/set/<attr>.
func (s *Stream) parseCommandTopic(topic string) (string, string, bool) {
	rest, ok := strings.CutPrefix(topic, s.prefix+"/climate/")
	if !ok {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != "set" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}
