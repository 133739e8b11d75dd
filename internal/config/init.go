package config

import (
	"os"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
)

const exampleConfig = `# hiveagent configuration
version: "1"

node:
  # Leave empty to generate an ID at startup.
  id: ""
  hostname: ""

sync:
  period_seconds: 30
  window: 5m

state:
  backend: memory # memory|sqlite
  path: ./hiveagent-state.db
  staleness_horizon: 10m

lifecycle:
  inert_interval: 1m
  # Standard five-field cron expression; empty disables the full reset.
  full_reset_cron: ""

collector:
  enabled: true
  interval: 10s

coordinator:
  transport: nats # nats|http
  nats:
    url: nats://127.0.0.1:4222
    subject: hivemind.essence
    stream: ""
    timeout: 5s
  http:
    endpoint: https://hivemind.example.com/v1/essence
    timeout: 10s
    token: ${HIVEMIND_TOKEN}

admin:
  enabled: true
  addr: 127.0.0.1:9464

logging:
  level: info # debug|info|warn|error
  format: text # text|json
`

// Init writes an example configuration file. An existing file is only
// replaced when force is set.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
