package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// maxClientIDLength is the longest client identifier MQTT can encode.
const maxClientIDLength = 65535

// supportedSchemes lists the broker URI schemes paho can dial.
var supportedSchemes = map[string]bool{
	"tcp":   true,
	"mqtt":  true,
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"tcps":  true,
	"ws":    true,
	"wss":   true,
	"unix":  true,
}

// PahoEngine implements Engine with github.com/eclipse/paho.mqtt.golang.
type PahoEngine struct{}

// NewPahoEngine returns the default engine.
func NewPahoEngine() *PahoEngine {
	return &PahoEngine{}
}

// Create validates the broker URI and client ID and returns a session.
// No network activity happens until Connect.
func (e *PahoEngine) Create(serverURI, clientID string, persistence Persistence) (Session, ReturnCode) {
	if serverURI == "" || clientID == "" {
		return nil, CodeNullParameter
	}
	if persistence != PersistenceNone {
		return nil, CodePersistenceError
	}
	if !utf8.ValidString(clientID) || len(clientID) > maxClientIDLength {
		return nil, CodeBadUTF8String
	}
	if !validBrokerURI(serverURI) {
		return nil, CodeBadProtocol
	}
	return &pahoSession{serverURI: serverURI, clientID: clientID}, CodeSuccess
}

func validBrokerURI(uri string) bool {
	if !strings.Contains(uri, "://") {
		return false
	}
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return supportedSchemes[strings.ToLower(u.Scheme)]
}

// pahoSession holds the paho client of the most recent connect call.
// Paho fixes options at client construction, so each connect builds a new
// paho client from the request.
type pahoSession struct {
	serverURI string
	clientID  string

	mu     sync.Mutex
	client pahomqtt.Client
}

func (s *pahoSession) Connect(req *ConnectRequest) (ReturnCode, error) {
	opts, err := buildClientOptions(s.serverURI, s.clientID, req)
	if err != nil {
		return CodeFailure, err
	}

	client := pahomqtt.NewClient(opts)

	s.mu.Lock()
	previous := s.client
	s.client = client
	s.mu.Unlock()
	if previous != nil && previous.IsConnectionOpen() {
		previous.Disconnect(0)
	}

	token := client.Connect()
	if !token.WaitTimeout(connectWait(opts)) {
		client.Disconnect(0)
		return CodeFailure, nil
	}
	return returnCodeFor(token.Error()), nil
}

func (s *pahoSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnectionOpen()
}

func (s *pahoSession) Disconnect(quiesce time.Duration) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client != nil && client.IsConnected() {
		// #nosec G115 -- quiesce is a small positive duration
		client.Disconnect(uint(quiesce.Milliseconds()))
	}
}

func (s *pahoSession) Destroy() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(0)
	}
}

// returnCodeFor maps a paho connect token error back to a numeric code.
//
// CONNACK refusals carry their return code; network failures and errors
// paho does not classify map to CodeFailure.
func returnCodeFor(err error) ReturnCode {
	if err == nil {
		return CodeSuccess
	}
	for rc, connErr := range packets.ConnErrors {
		if connErr == nil || !errors.Is(err, connErr) {
			continue
		}
		if rc == packets.ErrNetworkError {
			return CodeFailure
		}
		return ReturnCode(rc)
	}
	return CodeFailure
}

// engineLogger adapts a Logger to paho's Println/Printf logger interface.
type engineLogger struct {
	log   func(msg string, args ...any)
	level string
}

func (l engineLogger) Println(v ...interface{}) {
	l.log("paho", "level", l.level, "detail", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l engineLogger) Printf(format string, v ...interface{}) {
	l.log("paho", "level", l.level, "detail", fmt.Sprintf(format, v...))
}

// RouteEngineLogs sends paho's internal logging to logger. Paho's loggers
// are process-wide, so this affects every client in the process.
// DEBUG output is routed only when debug is true.
func RouteEngineLogs(logger Logger, debug bool) {
	pahomqtt.CRITICAL = engineLogger{log: logger.Error, level: "critical"}
	pahomqtt.ERROR = engineLogger{log: logger.Error, level: "error"}
	pahomqtt.WARN = engineLogger{log: logger.Warn, level: "warn"}
	if debug {
		pahomqtt.DEBUG = engineLogger{log: logger.Debug, level: "debug"}
	} else {
		pahomqtt.DEBUG = pahomqtt.NOOPLogger{}
	}
}
