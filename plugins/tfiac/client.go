package tfiac

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joshp123/gohome-tfiac/internal/rate"
)

const maxReplySize = 4096

var (
	ErrUnsupportedSwing = errors.New("unsupported swing mode")
	ErrUnsupportedPower = errors.New("unsupported power value")
	ErrBadReply         = errors.New("unexpected reply from unit")
)

// Device is what the climate entity needs from a unit.
type Device interface {
	Host() string
	Name() string
	Status() Status
	Update(ctx context.Context) error
	SetTargetTemperature(ctx context.Context, temp float64) error
	SetOperationMode(ctx context.Context, mode string) error
	SetFanMode(ctx context.Context, mode string) error
	SetSwingMode(ctx context.Context, mode string) error
	SetPower(ctx context.Context, power string) error
}

// Client talks to one TFIAC unit over UDP. Each call is a single
// request/response exchange.
type Client struct {
	host           string
	addr           string
	requestTimeout time.Duration
	logger         *slog.Logger
	guard          *rate.Guard
	now            func() time.Time

	mu     sync.Mutex
	name   string
	status Status
}

var _ Device = (*Client)(nil)

func NewClient(host string, opts ...ClientOption) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("tfiac host is empty")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		host:           host,
		addr:           net.JoinHostPort(host, strconv.Itoa(cfg.port)),
		requestTimeout: cfg.requestTimeout,
		logger:         logger.With("tfiac_host", host),
		now:            time.Now,
	}
	if cfg.perMinute > 0 {
		client.guard = rate.NewGuard(rate.Provider("tfiac:" + host).MaxRequestsPer(rate.Minute, cfg.perMinute))
	}
	return client, nil
}

func (c *Client) Host() string { return c.host }

// Name is the device name from the last successful update.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.clone()
}

// Update reads the unit's current status.
func (c *Client) Update(ctx context.Context) error {
	payload, err := xml.Marshal(controlMsg{
		MsgID:         "SyncStatusReq",
		Type:          "Control",
		Seq:           c.seq(),
		SyncStatusReq: &struct{}{},
	})
	if err != nil {
		return fmt.Errorf("encode status request: %w", err)
	}

	reply, err := c.exchange(ctx, payload)
	if err != nil {
		return err
	}

	var msg statusReply
	if err := xml.Unmarshal(reply, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	if msg.Status == nil {
		return fmt.Errorf("%w: no statusUpdateMsg", ErrBadReply)
	}
	status, err := parseStatus(*msg.Status)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.name = strings.TrimSpace(msg.Status.DeviceName)
	c.status = status
	c.mu.Unlock()
	return nil
}

func (c *Client) SetTargetTemperature(ctx context.Context, temp float64) error {
	return c.set(ctx, func(s *Status) { s.TargetTemp = &temp })
}

// SetOperationMode also powers the unit on.
func (c *Client) SetOperationMode(ctx context.Context, mode string) error {
	return c.set(ctx, func(s *Status) {
		s.Operation = mode
		s.Power = PowerOn
	})
}

func (c *Client) SetFanMode(ctx context.Context, mode string) error {
	return c.set(ctx, func(s *Status) { s.FanMode = mode })
}

func (c *Client) SetPower(ctx context.Context, power string) error {
	if power != PowerOn && power != PowerOff {
		return fmt.Errorf("%w: %q", ErrUnsupportedPower, power)
	}
	return c.set(ctx, func(s *Status) { s.Power = power })
}

// SetSwingMode sets the louvre directions for one of Off, Horizontal,
// Vertical, or Both.
func (c *Client) SetSwingMode(ctx context.Context, mode string) error {
	dir, ok := swingDirections[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedSwing, mode)
	}
	body := &setBody{WindDirectionH: onOff(dir.horizontal), WindDirectionV: onOff(dir.vertical)}
	if err := c.send(ctx, body); err != nil {
		return err
	}

	c.mu.Lock()
	c.status.SwingMode = mode
	c.mu.Unlock()
	return nil
}

// set refreshes the status, applies one change, and writes the full
// control state back.
func (c *Client) set(ctx context.Context, apply func(*Status)) error {
	if err := c.Update(ctx); err != nil {
		return err
	}
	next := c.Status()
	apply(&next)

	body := &setBody{
		TurnOn:    next.Power,
		BaseMode:  next.Operation,
		WindSpeed: next.FanMode,
	}
	if next.TargetTemp != nil {
		body.SetTemp = formatTemp(*next.TargetTemp)
	}
	if err := c.send(ctx, body); err != nil {
		return err
	}

	c.mu.Lock()
	c.status = next
	c.mu.Unlock()
	return nil
}

func (c *Client) send(ctx context.Context, body *setBody) error {
	payload, err := xml.Marshal(controlMsg{
		MsgID:      "SetMessage",
		Type:       "Control",
		Seq:        c.seq(),
		SetMessage: body,
	})
	if err != nil {
		return fmt.Errorf("encode set message: %w", err)
	}
	_, err = c.exchange(ctx, payload)
	return err
}

func (c *Client) exchange(ctx context.Context, payload []byte) ([]byte, error) {
	if c.guard != nil {
		if err := c.guard.Allow(c.now()); err != nil {
			return nil, err
		}
	}
	// An earlier caller deadline still wins.
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("send to %s: %w", c.addr, err)
	}
	c.logger.Debug("tfiac request sent", "bytes", len(payload))

	buf := make([]byte, maxReplySize)
	n, err := conn.Read(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("read from %s: %w", c.addr, ctxErr)
		}
		return nil, fmt.Errorf("read from %s: %w", c.addr, err)
	}
	return buf[:n], nil
}

func (c *Client) seq() int64 {
	return c.now().UnixMilli()
}

type controlMsg struct {
	XMLName       xml.Name  `xml:"msg"`
	MsgID         string    `xml:"msgid,attr"`
	Type          string    `xml:"type,attr"`
	Seq           int64     `xml:"seq,attr"`
	SyncStatusReq *struct{} `xml:"SyncStatusReq"`
	SetMessage    *setBody  `xml:"SetMessage"`
}

type setBody struct {
	TurnOn         string `xml:"TurnOn,omitempty"`
	BaseMode       string `xml:"BaseMode,omitempty"`
	SetTemp        string `xml:"SetTemp,omitempty"`
	WindSpeed      string `xml:"WindSpeed,omitempty"`
	WindDirectionH string `xml:"WindDirection_H,omitempty"`
	WindDirectionV string `xml:"WindDirection_V,omitempty"`
}

type swingDirection struct {
	horizontal bool
	vertical   bool
}

var swingDirections = map[string]swingDirection{
	SwingOff:        {},
	SwingHorizontal: {horizontal: true},
	SwingVertical:   {vertical: true},
	SwingBoth:       {horizontal: true, vertical: true},
}

func parseStatus(m statusUpdateMsg) (Status, error) {
	current, err := parseTemp(m.IndoorTemp)
	if err != nil {
		return Status{}, fmt.Errorf("%w: IndoorTemp: %v", ErrBadReply, err)
	}
	target, err := parseTemp(m.SetTemp)
	if err != nil {
		return Status{}, fmt.Errorf("%w: SetTemp: %v", ErrBadReply, err)
	}

	h := strings.EqualFold(strings.TrimSpace(m.WindDirectionH), PowerOn)
	v := strings.EqualFold(strings.TrimSpace(m.WindDirectionV), PowerOn)
	swing := SwingOff
	switch {
	case h && v:
		swing = SwingBoth
	case h:
		swing = SwingHorizontal
	case v:
		swing = SwingVertical
	}

	return Status{
		CurrentTemp: current,
		TargetTemp:  target,
		Operation:   strings.TrimSpace(m.BaseMode),
		FanMode:     strings.TrimSpace(m.WindSpeed),
		SwingMode:   swing,
		Power:       strings.TrimSpace(m.TurnOn),
	}, nil
}

func parseTemp(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func onOff(b bool) string {
	if b {
		return PowerOn
	}
	return PowerOff
}
