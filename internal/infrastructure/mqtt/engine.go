package mqtt

import "time"

// Persistence selects the engine's in-flight message store.
type Persistence int

const (
	// PersistenceNone keeps in-flight messages in memory only.
	PersistenceNone Persistence = iota
)

// Engine is the MQTT protocol implementation a Client delegates to.
//
// Create validates its arguments and returns a Session bound to one
// (serverURI, clientID) pair, or a non-zero code describing why it could not.
type Engine interface {
	Create(serverURI, clientID string, persistence Persistence) (Session, ReturnCode)
}

// Session is the engine resource owned by exactly one Client.
type Session interface {
	// Connect performs a blocking connect. The error is non-nil only when
	// the request could not be prepared (e.g. unreadable TLS files); in
	// that case the engine was not contacted and the code is meaningless.
	Connect(req *ConnectRequest) (ReturnCode, error)

	IsConnected() bool

	// Disconnect closes the network connection, waiting up to quiesce for
	// in-flight work.
	Disconnect(quiesce time.Duration)

	// Destroy releases the session. It is called exactly once.
	Destroy()
}
