package daemon

import (
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
)

// newRegistry returns a registry with the Go runtime and process collectors.
// Each agent owns its registry so tests can build several agents.
func newRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)
	return reg
}
