package tfiac

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exports the last known state of every loaded unit.
type MetricsCollector struct {
	entities func() []*Entity

	available   *prometheus.GaugeVec
	currentTemp *prometheus.GaugeVec
	targetTemp  *prometheus.GaugeVec
	power       *prometheus.GaugeVec
	hvacMode    *prometheus.GaugeVec
	polls       *prometheus.CounterVec
	pollErrors  *prometheus.CounterVec
}

func NewMetricsCollector(entities func() []*Entity) *MetricsCollector {
	labels := []string{"entry_id", "name"}
	return &MetricsCollector{
		entities: entities,
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tfiac_available",
			Help: "Whether the last poll reached the unit (1=yes, 0=no)",
		}, labels),
		currentTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tfiac_current_temperature_fahrenheit",
			Help: "Indoor temperature reported by the unit (fahrenheit)",
		}, labels),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tfiac_target_temperature_fahrenheit",
			Help: "Target temperature set on the unit (fahrenheit)",
		}, labels),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tfiac_power_on",
			Help: "Whether the unit is powered on (1=on, 0=off)",
		}, labels),
		hvacMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tfiac_hvac_mode",
			Help: "Current hvac mode (1=active)",
		}, []string{"entry_id", "name", "mode"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gohome_tfiac_polls_total",
			Help: "Status polls sent to the unit",
		}, []string{"entry_id"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gohome_tfiac_poll_errors_total",
			Help: "Status polls that failed",
		}, []string{"entry_id"}),
	}
}

func (c *MetricsCollector) observePoll(entryID string, err error) {
	c.polls.WithLabelValues(entryID).Inc()
	if err != nil {
		c.pollErrors.WithLabelValues(entryID).Inc()
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.available.Describe(ch)
	c.currentTemp.Describe(ch)
	c.targetTemp.Describe(ch)
	c.power.Describe(ch)
	c.hvacMode.Describe(ch)
	c.polls.Describe(ch)
	c.pollErrors.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.available.Reset()
	c.currentTemp.Reset()
	c.targetTemp.Reset()
	c.power.Reset()
	c.hvacMode.Reset()

	for _, e := range c.entities() {
		labels := prometheus.Labels{"entry_id": e.UniqueID(), "name": e.Name()}
		c.available.With(labels).Set(boolToFloat(e.Available()))

		if v, ok := e.CurrentTemperature(); ok {
			c.currentTemp.With(labels).Set(v)
		}
		if v, ok := e.TargetTemperature(); ok {
			c.targetTemp.With(labels).Set(v)
		}
		c.power.With(labels).Set(boolToFloat(e.PoweredOn()))
		if mode, ok := e.HVACMode(); ok {
			c.hvacMode.With(prometheus.Labels{
				"entry_id": e.UniqueID(),
				"name":     e.Name(),
				"mode":     string(mode),
			}).Set(1)
		}
	}

	c.available.Collect(ch)
	c.currentTemp.Collect(ch)
	c.targetTemp.Collect(ch)
	c.power.Collect(ch)
	c.hvacMode.Collect(ch)
	c.polls.Collect(ch)
	c.pollErrors.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
