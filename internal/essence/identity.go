package essence

import (
	"os"

	"github.com/google/uuid"
)

// Identity names the node an Essence describes.
type Identity struct {
	NodeID       string
	Hostname     string
	AgentVersion string
}

// ResolveIdentity fills in a generated node ID and the OS hostname when they
// are not configured.
func ResolveIdentity(nodeID, hostname, agentVersion string) Identity {
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	if hostname == "" {
		if h, err := os.Hostname(); err == nil {
			hostname = h
		} else {
			hostname = "unknown"
		}
	}
	return Identity{NodeID: nodeID, Hostname: hostname, AgentVersion: agentVersion}
}
