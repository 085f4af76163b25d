package rate

import "time"

// Window represents a rate-limit bucket.
type Window int

const (
	Minute Window = iota
)

func (w Window) String() string {
	switch w {
	case Minute:
		return "minute"
	default:
		return "unknown"
	}
}

func (Window) Duration() time.Duration {
	return time.Minute
}

// Declaration defines the request budget of one provider, usually a
// single device.
type Declaration struct {
	provider string
	limits   map[Window]int
}

// Provider creates a new declaration for a provider.
func Provider(name string) Declaration {
	return Declaration{provider: name}
}

func (d Declaration) ProviderName() string {
	return d.provider
}

func (d Declaration) MaxRequestsPer(window Window, limit int) Declaration {
	limits := make(map[Window]int, len(d.limits)+1)
	for w, l := range d.limits {
		limits[w] = l
	}
	limits[window] = limit
	d.limits = limits
	return d
}

func (d Declaration) Limits() map[Window]int {
	return d.limits
}

func (d Declaration) HasLimits() bool {
	return len(d.limits) > 0
}
