package config

import (
	"reflect"
	"sort"
	"strings"

	logx "offhoursbot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus
// safe structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "timezone")
		attrs = append(attrs, logx.String("timezone", strings.TrimSpace(newCfg.Timezone)))
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Gateway (never log token)
	if strings.TrimSpace(oldCfg.Gateway.BaseURL) != strings.TrimSpace(newCfg.Gateway.BaseURL) ||
		strings.TrimSpace(oldCfg.Gateway.SessionDir) != strings.TrimSpace(newCfg.Gateway.SessionDir) ||
		strings.TrimSpace(oldCfg.Gateway.RequestTimeout) != strings.TrimSpace(newCfg.Gateway.RequestTimeout) ||
		oldCfg.Gateway.SendRatePerSec != newCfg.Gateway.SendRatePerSec ||
		(strings.TrimSpace(oldCfg.Gateway.Token) != "") != (strings.TrimSpace(newCfg.Gateway.Token) != "") {
		changed = append(changed, "gateway")
		attrs = append(attrs,
			logx.String("gateway.base_url", strings.TrimSpace(newCfg.Gateway.BaseURL)),
			logx.Bool("gateway.token_set", strings.TrimSpace(newCfg.Gateway.Token) != ""),
			logx.Int("gateway.send_rate_per_sec", newCfg.Gateway.SendRatePerSec),
		)
	}

	if oldCfg.Hours != newCfg.Hours {
		changed = append(changed, "hours")
		attrs = append(attrs,
			logx.Int("hours.open", newCfg.Hours.Open),
			logx.Int("hours.close", newCfg.Hours.Close),
			logx.Int("hours.lunch_start", newCfg.Hours.LunchStart),
			logx.Int("hours.lunch_end", newCfg.Hours.LunchEnd),
		)
	}

	if oldCfg.Responder != newCfg.Responder {
		changed = append(changed, "responder")
		attrs = append(attrs,
			logx.String("responder.user_delay", strings.TrimSpace(newCfg.Responder.UserDelay)),
			logx.String("responder.group_delay", strings.TrimSpace(newCfg.Responder.GroupDelay)),
			logx.String("responder.lunch_scope", strings.TrimSpace(newCfg.Responder.LunchScope)),
		)
	}

	if oldCfg.Broadcast != newCfg.Broadcast {
		changed = append(changed, "broadcast")
		attrs = append(attrs,
			logx.String("broadcast.prepare_at", strings.TrimSpace(newCfg.Broadcast.PrepareAt)),
			logx.String("broadcast.broadcast_at", strings.TrimSpace(newCfg.Broadcast.BroadcastAt)),
		)
	}

	// Admin (never log token)
	if strings.TrimSpace(oldCfg.Admin.Addr) != strings.TrimSpace(newCfg.Admin.Addr) ||
		oldCfg.Admin.AllowInsecure != newCfg.Admin.AllowInsecure ||
		strings.TrimSpace(oldCfg.Admin.ReadTimeout) != strings.TrimSpace(newCfg.Admin.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Admin.WriteTimeout) != strings.TrimSpace(newCfg.Admin.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Admin.IdleTimeout) != strings.TrimSpace(newCfg.Admin.IdleTimeout) ||
		(strings.TrimSpace(oldCfg.Admin.Token) != "") != (strings.TrimSpace(newCfg.Admin.Token) != "") {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.String("admin.addr", strings.TrimSpace(newCfg.Admin.Addr)),
			logx.Bool("admin.token_set", strings.TrimSpace(newCfg.Admin.Token) != ""),
			logx.Bool("admin.allow_insecure", newCfg.Admin.AllowInsecure),
		)
	}

	oldD, newD := derefDedupe(oldCfg.Dedupe), derefDedupe(newCfg.Dedupe)
	if oldD != newD {
		changed = append(changed, "dedupe")
		attrs = append(attrs,
			logx.Int("dedupe.high_water", newD.HighWater),
			logx.Int("dedupe.keep_tail", newD.KeepTail),
		)
	}

	// Storage. Nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver = strings.TrimSpace(s.Driver)
		oBusy = strings.TrimSpace(s.BusyTimeout)
		oPathSet = strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver = strings.TrimSpace(s.Driver)
		nBusy = strings.TrimSpace(s.BusyTimeout)
		nPathSet = strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
		)
	}

	if !reflect.DeepEqual(oldCfg.Whitelist, newCfg.Whitelist) {
		changed = append(changed, "whitelist")
		attrs = append(attrs, logx.Int("whitelist.count", len(newCfg.Whitelist)))
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefDedupe(d *DedupeConfig) DedupeConfig {
	if d == nil {
		return DedupeConfig{}
	}
	return *d
}
