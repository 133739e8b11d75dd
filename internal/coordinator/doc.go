// Package coordinator delivers essence payloads to the Hivemind.
//
// Two transports are provided: NATSCoordinator publishes to a JetStream
// subject with the payload ID as the message ID, and HTTPCoordinator POSTs to
// an HTTP endpoint over an HTTP/2-capable transport. New selects one from
// configuration.
package coordinator
