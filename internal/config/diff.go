package config

import (
	"strings"

	logx "teleecho/pkg/logx"
)

// SummarizeChange returns the changed sections and safe structured attrs
// for logging a reload.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Relay.SendInterval) != strings.TrimSpace(newCfg.Relay.SendInterval) ||
		oldCfg.Relay.CollapseOverwrites != newCfg.Relay.CollapseOverwrites {
		changed = append(changed, "relay")
		attrs = append(attrs,
			logx.String("relay.send_interval", strings.TrimSpace(newCfg.Relay.SendInterval)),
			logx.Bool("relay.collapse_overwrites", newCfg.Relay.CollapseOverwrites),
		)
	}

	// The API URL may embed credentials of a self-hosted server; only log that it is set.
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		strings.TrimSpace(oldCfg.Telegram.APIURL) != strings.TrimSpace(newCfg.Telegram.APIURL) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.api_url_set", strings.TrimSpace(newCfg.Telegram.APIURL) != ""),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
		)
	}

	return changed, attrs
}
