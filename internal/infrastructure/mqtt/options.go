package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// connectWaitGrace is added to the engine's own connect timeout when
	// waiting on the connect token, so the engine's timeout fires first.
	connectWaitGrace = 5 * time.Second

	// unboundedConnectWait caps the wait when ConnectTimeout is 0 (no engine timeout).
	unboundedConnectWait = 5 * time.Minute

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 * time.Millisecond
)

// buildClientOptions creates paho MQTT options for one connect call.
//
// This configures:
//   - Broker URLs: the request's server URI list in order, or the creation URI
//   - Client ID and in-memory store (persistence "none")
//   - Keepalive, clean session, in-order delivery ("reliable")
//   - Credentials (if provided)
//   - Connect timeout
//   - Protocol version (when not left to the engine)
//   - Last Will and Testament (if provided)
//   - TLS configuration (if provided)
//
// Automatic reconnection is left off; a Client connects exactly when asked.
func buildClientOptions(serverURI, clientID string, req *ConnectRequest) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	if req.ServerURIs.Len() > 0 {
		for _, uri := range req.ServerURIs.uris {
			opts.AddBroker(uri)
		}
	} else {
		opts.AddBroker(serverURI)
	}

	opts.SetClientID(clientID)
	opts.SetStore(pahomqtt.NewMemoryStore())

	opts.SetKeepAlive(req.KeepAlive())
	opts.SetCleanSession(req.CleanSession)
	opts.SetOrderMatters(req.Reliable)

	if req.Username != "" {
		opts.SetUsername(req.Username)
	}
	if req.Password != "" {
		opts.SetPassword(req.Password)
	}

	// RetryInterval has no paho counterpart: paho resends unacknowledged
	// messages only on reconnect, and connect retries stay off.
	opts.SetConnectTimeout(req.Timeout())
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(false)

	if req.MQTTVersion != MQTTVersionDefault {
		// #nosec G115 -- validated to 3 or 4 by BuildRequest
		opts.SetProtocolVersion(uint(req.MQTTVersion))
	}

	if req.Will != nil {
		// #nosec G115 -- QoS validated to 0..2 by BuildRequest
		opts.SetWill(req.Will.TopicName, req.Will.Message, byte(req.Will.QoS), req.Will.Retained)
	}

	if req.TLS != nil {
		tlsConfig, err := req.TLS.Config()
		if err != nil {
			return nil, fmt.Errorf("ssl: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// connectWait bounds how long a connect token is waited on. The engine
// tries each server in turn, each bounded by the connect timeout.
func connectWait(opts *pahomqtt.ClientOptions) time.Duration {
	if opts.ConnectTimeout <= 0 {
		return unboundedConnectWait
	}
	servers := len(opts.Servers)
	if servers == 0 {
		servers = 1
	}
	return time.Duration(servers)*opts.ConnectTimeout + connectWaitGrace
}
