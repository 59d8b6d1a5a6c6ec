package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Study: StudyConfig{
			Kind:      StudyWeekLife,
			Concluded: false,
		},
		Retention: RetentionConfig{
			Days:               7,
			PruneIntervalHours: 24,
		},
		Report: ReportConfig{
			TopN:     15,
			Denylist: DefaultDenylist(),
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalSeconds: 300,
		},
		Storage: StorageConfig{
			Path:              "~/.config/testpilot",
			SQLiteFile:        "testpilot.db",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           7774,
			MaxRequestSize: 1048576,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// DefaultDenylist returns the interactions that fire on nearly every
// keystroke or click and would drown out the frequency table.
func DefaultDenylist() []DenyPair {
	return []DenyPair{
		{Item: "urlbar", SubItem: "text selection"},
	}
}
