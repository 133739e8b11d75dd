package config

import "git.home.luguber.info/inful/hiveagent/internal/foundation/normalization"

// StateBackend selects the state store implementation.
type StateBackend string

const (
	StateBackendMemory StateBackend = "memory"
	StateBackendSQLite StateBackend = "sqlite"
)

var stateBackendNormalizer = normalization.NewEnumNormalizer("state backend", map[string]StateBackend{
	"memory": StateBackendMemory,
	"sqlite": StateBackendSQLite,
}, StateBackendMemory)

// Transport selects the coordinator transport.
type Transport string

const (
	TransportNATS Transport = "nats"
	TransportHTTP Transport = "http"
)

var transportNormalizer = normalization.NewEnumNormalizer("coordinator transport", map[string]Transport{
	"nats": TransportNATS,
	"http": TransportHTTP,
}, TransportNATS)

// normalizeConfig case-folds enumerations. Unknown non-empty values are left
// in place for validation to reject.
func normalizeConfig(cfg *Config) {
	if cfg.Logging.Level != "" {
		cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	}
	if cfg.Logging.Format != "" {
		cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	}
	if cfg.State.Backend != "" && stateBackendNormalizer.IsKnown(string(cfg.State.Backend)) {
		cfg.State.Backend = stateBackendNormalizer.Normalize(string(cfg.State.Backend))
	}
	if cfg.Coordinator.Transport != "" && transportNormalizer.IsKnown(string(cfg.Coordinator.Transport)) {
		cfg.Coordinator.Transport = transportNormalizer.Normalize(string(cfg.Coordinator.Transport))
	}
}
