package config

import (
	"os"
	"strconv"

	"github.com/knadh/koanf/v2"
)

// Environment variables that override file settings.
const (
	EnvStudy         = "TESTPILOT_STUDY"
	EnvStoragePath   = "TESTPILOT_STORAGE_PATH"
	EnvRetentionDays = "TESTPILOT_RETENTION_DAYS"
	EnvDaemonHost    = "TESTPILOT_DAEMON_HOST"
	EnvDaemonPort    = "TESTPILOT_DAEMON_PORT"
	EnvLogLevel      = "TESTPILOT_LOG_LEVEL"
)

func applyEnvOverrides(k *koanf.Koanf) {
	if study := getString(EnvStudy, ""); study != "" {
		k.Set("study.kind", study)
	}
	if path := getString(EnvStoragePath, ""); path != "" {
		k.Set("storage.path", path)
	}
	if days := getInt(EnvRetentionDays, 0); days > 0 {
		k.Set("retention.days", days)
	}
	if host := getString(EnvDaemonHost, ""); host != "" {
		k.Set("daemon.host", host)
	}
	if port := getInt(EnvDaemonPort, 0); port > 0 {
		k.Set("daemon.port", port)
	}
	if level := getString(EnvLogLevel, ""); level != "" {
		k.Set("logging.level", level)
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
