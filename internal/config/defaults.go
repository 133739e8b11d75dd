package config

const (
	DefaultPeriodSeconds    = 30
	DefaultWindow           = "5m"
	DefaultStalenessHorizon = "10m"
	DefaultSQLitePath       = "./hiveagent-state.db"
	DefaultInertInterval    = "1m"
	DefaultCollectInterval  = "10s"
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultNATSSubject      = "hivemind.essence"
	DefaultNATSTimeout      = "5s"
	DefaultHTTPTimeout      = "10s"
	DefaultAdminAddr        = "127.0.0.1:9464"
)

// applyDefaults fills every unset field. Explicit values are never replaced.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}

	if cfg.Sync.PeriodSeconds == 0 {
		cfg.Sync.PeriodSeconds = DefaultPeriodSeconds
	}
	setDefault(&cfg.Sync.Window, DefaultWindow)

	if cfg.State.Backend == "" {
		cfg.State.Backend = StateBackendMemory
	}
	if cfg.State.Backend == StateBackendSQLite {
		setDefault(&cfg.State.Path, DefaultSQLitePath)
	}
	setDefault(&cfg.State.StalenessHorizon, DefaultStalenessHorizon)

	setDefault(&cfg.Lifecycle.InertInterval, DefaultInertInterval)
	setDefault(&cfg.Collector.Interval, DefaultCollectInterval)

	if cfg.Coordinator.Transport == "" {
		cfg.Coordinator.Transport = TransportNATS
	}
	setDefault(&cfg.Coordinator.NATS.URL, DefaultNATSURL)
	setDefault(&cfg.Coordinator.NATS.Subject, DefaultNATSSubject)
	setDefault(&cfg.Coordinator.NATS.Timeout, DefaultNATSTimeout)
	setDefault(&cfg.Coordinator.HTTP.Timeout, DefaultHTTPTimeout)

	setDefault(&cfg.Admin.Addr, DefaultAdminAddr)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
