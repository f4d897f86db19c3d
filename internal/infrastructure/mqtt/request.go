package mqtt

import "time"

// Default connect values, matching the protocol engine's initializer.
const (
	defaultKeepAliveInterval = 60 // seconds
	defaultConnectTimeout    = 30 // seconds
	defaultRetryInterval     = 20 // seconds

	// MQTTVersionDefault lets the engine choose (3.1.1, falling back to 3.1).
	MQTTVersionDefault = 0
	// MQTTVersion31 selects MQTT 3.1.
	MQTTVersion31 = 3
	// MQTTVersion311 selects MQTT 3.1.1.
	MQTTVersion311 = 4

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// Options is the loosely-typed connect configuration handed to BuildRequest,
// typically decoded from YAML or JSON. Keys are camelCase.
type Options map[string]any

// ConnectRequest is the structured form of a connect configuration.
//
// A request is single use: the connect call that consumes it releases its
// transient parts (will, TLS and server URI list) before returning.
type ConnectRequest struct {
	KeepAliveInterval int // seconds
	CleanSession      bool
	Reliable          bool
	Username          string
	Password          string
	ConnectTimeout    int // seconds
	RetryInterval     int // seconds; PahoEngine has no equivalent and ignores it
	MQTTVersion       int

	// Will, TLS and ServerURIs are nil unless the configuration supplied them.
	Will       *WillSpec
	TLS        *TLSSpec
	ServerURIs *ServerURIList

	spent bool
}

// WillSpec is the last-will message registered with the broker.
type WillSpec struct {
	TopicName string
	Message   string
	Retained  bool
	QoS       int
}

// TLSSpec holds TLS parameters. File fields are paths to PEM files.
type TLSSpec struct {
	TrustStore          string
	KeyStore            string
	PrivateKey          string
	PrivateKeyPassword  string
	EnabledCipherSuites string

	// EnableServerCertAuth is nil when unset, in which case the server
	// certificate is verified.
	EnableServerCertAuth *bool
}

// NewConnectRequest returns a request populated with engine defaults.
func NewConnectRequest() *ConnectRequest {
	return &ConnectRequest{
		KeepAliveInterval: defaultKeepAliveInterval,
		CleanSession:      true,
		Reliable:          true,
		ConnectTimeout:    defaultConnectTimeout,
		RetryInterval:     defaultRetryInterval,
		MQTTVersion:       MQTTVersionDefault,
	}
}

// KeepAlive returns the keepalive interval as a Duration.
func (r *ConnectRequest) KeepAlive() time.Duration {
	return time.Duration(r.KeepAliveInterval) * time.Second
}

// Timeout returns the per-server connect timeout as a Duration.
func (r *ConnectRequest) Timeout() time.Duration {
	return time.Duration(r.ConnectTimeout) * time.Second
}

// Retry returns the retry interval as a Duration.
func (r *ConnectRequest) Retry() time.Duration {
	return time.Duration(r.RetryInterval) * time.Second
}

// release drops the transient parts of the request and marks it spent.
func (r *ConnectRequest) release() {
	if r.ServerURIs != nil {
		r.ServerURIs.Release()
	}
	r.ServerURIs = nil
	r.Will = nil
	r.TLS = nil
	r.spent = true
}
