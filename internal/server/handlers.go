package server

import (
	"encoding/json"
	"net/http"

	"github.com/joshp123/gohome-tfiac/internal/core"
)

type pluginHealth struct {
	Status  core.HealthStatus `json:"status"`
	Message string            `json:"message,omitempty"`
}

type healthReport struct {
	Status  string                  `json:"status"`
	Plugins map[string]pluginHealth `json:"plugins"`
}

// HealthHandler reports liveness plus per-plugin health. It answers 503
// only when a plugin is in the error state; degraded plugins still pass.
func HealthHandler(plugins []core.Plugin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		report := healthReport{Status: "ok", Plugins: make(map[string]pluginHealth, len(plugins))}
		code := http.StatusOK
		for _, p := range plugins {
			health := p.Health()
			report.Plugins[p.ID()] = pluginHealth{Status: health, Message: p.HealthMessage()}
			if health == core.HealthError {
				report.Status = "error"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
}
