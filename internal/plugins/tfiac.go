package plugins

import (
	"log/slog"

	"github.com/joshp123/gohome-tfiac/internal/config"
	"github.com/joshp123/gohome-tfiac/internal/core"
	"github.com/joshp123/gohome-tfiac/plugins/tfiac"
)

func init() {
	Register(func(cfg *config.Config, logger *slog.Logger) (core.Plugin, bool) {
		return tfiac.NewPlugin(cfg.TFIAC, logger)
	})
}
