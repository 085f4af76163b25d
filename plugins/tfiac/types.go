package tfiac

// Power values reported in the TurnOn field.
const (
	PowerOn  = "on"
	PowerOff = "off"
)

// Swing values accepted by Client.SetSwingMode.
const (
	SwingOff        = "Off"
	SwingHorizontal = "Horizontal"
	SwingVertical   = "Vertical"
	SwingBoth       = "Both"
)

// Status is the last snapshot read from a unit. Nil temperatures and
// empty strings mean the unit has not reported the field.
type Status struct {
	CurrentTemp *float64 `json:"current_temp,omitempty"`
	TargetTemp  *float64 `json:"target_temp,omitempty"`
	Operation   string   `json:"operation,omitempty"`
	FanMode     string   `json:"fan_mode,omitempty"`
	SwingMode   string   `json:"swing_mode,omitempty"`
	Power       string   `json:"is_on,omitempty"`
}

func (s Status) clone() Status {
	if s.CurrentTemp != nil {
		v := *s.CurrentTemp
		s.CurrentTemp = &v
	}
	if s.TargetTemp != nil {
		v := *s.TargetTemp
		s.TargetTemp = &v
	}
	return s
}

// statusUpdateMsg is the body of a SyncStatusReq reply.
type statusUpdateMsg struct {
	IndoorTemp     string `xml:"IndoorTemp"`
	SetTemp        string `xml:"SetTemp"`
	BaseMode       string `xml:"BaseMode"`
	WindSpeed      string `xml:"WindSpeed"`
	TurnOn         string `xml:"TurnOn"`
	WindDirectionH string `xml:"WindDirection_H"`
	WindDirectionV string `xml:"WindDirection_V"`
	DeviceName     string `xml:"DeviceName"`
}

type statusReply struct {
	Status *statusUpdateMsg `xml:"statusUpdateMsg"`
}
