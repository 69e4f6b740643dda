package app

import (
	"github.com/dillspilit/scripthub/internal/config"
	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/runner"
	"github.com/dillspilit/scripthub/internal/settings"
)

// autoInstall answers the controller's settings lookups: a per-script
// setting wins, the global configuration provides the default.
type autoInstall struct {
	cfg   *config.Config
	store *settings.Store
}

var _ runner.Settings = autoInstall{}

func (a autoInstall) Bool(script domain.Script, key string, def bool) bool {
	if key == runner.SettingKeyAutoInstall && a.cfg.AutoInstallDeps {
		def = true
	}
	return a.store.Bool(script, key, def)
}
