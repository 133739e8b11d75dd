package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
)

// ValidateConfig checks a defaulted configuration and returns the first problem found.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, step := range []func() error{
		cv.validateSync,
		cv.validateState,
		cv.validateLifecycle,
		cv.validateCollector,
		cv.validateCoordinator,
		cv.validateLogging,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateSync() error {
	if cv.config.Sync.PeriodSeconds <= 0 {
		return invalid("sync.period_seconds", cv.config.Sync.PeriodSeconds, "must be a positive number of seconds")
	}
	return positiveDuration("sync.window", cv.config.Sync.Window)
}

func (cv *configurationValidator) validateState() error {
	s := cv.config.State
	switch s.Backend {
	case StateBackendMemory:
	case StateBackendSQLite:
		if s.Path == "" {
			return invalid("state.path", s.Path, "required for the sqlite backend")
		}
	default:
		return invalid("state.backend", s.Backend, "must be memory or sqlite")
	}
	return positiveDuration("state.staleness_horizon", s.StalenessHorizon)
}

func (cv *configurationValidator) validateLifecycle() error {
	l := cv.config.Lifecycle
	if err := positiveDuration("lifecycle.inert_interval", l.InertInterval); err != nil {
		return err
	}
	if l.FullResetCron == "" {
		return nil
	}
	if _, err := cron.ParseStandard(l.FullResetCron); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid lifecycle.full_reset_cron").
			Fatal().UserAction().
			WithContext("value", l.FullResetCron).
			Build()
	}
	return nil
}

func (cv *configurationValidator) validateCollector() error {
	if !cv.config.Collector.IsEnabled() {
		return nil
	}
	return positiveDuration("collector.interval", cv.config.Collector.Interval)
}

func (cv *configurationValidator) validateCoordinator() error {
	c := cv.config.Coordinator
	switch c.Transport {
	case TransportNATS:
		if c.NATS.URL == "" {
			return invalid("coordinator.nats.url", c.NATS.URL, "required for the nats transport")
		}
		if c.NATS.Subject == "" {
			return invalid("coordinator.nats.subject", c.NATS.Subject, "required for the nats transport")
		}
		return positiveDuration("coordinator.nats.timeout", c.NATS.Timeout)
	case TransportHTTP:
		u, err := url.Parse(c.HTTP.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("coordinator.http.endpoint", c.HTTP.Endpoint, "must be an absolute http or https URL")
		}
		return positiveDuration("coordinator.http.timeout", c.HTTP.Timeout)
	default:
		return invalid("coordinator.transport", c.Transport, "must be nats or http")
	}
}

func (cv *configurationValidator) validateLogging() error {
	switch cv.config.Logging.Format {
	case LogFormatText, LogFormatJSON:
		return nil
	default:
		return invalid("logging.format", cv.config.Logging.Format, "must be text or json")
	}
}

func positiveDuration(field, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return invalid(field, raw, "must be a duration such as 30s or 5m")
	}
	if d <= 0 {
		return invalid(field, raw, "must be positive")
	}
	return nil
}

func invalid(field string, value any, reason string) error {
	return errors.ConfigError(fmt.Sprintf("invalid %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		Build()
}
