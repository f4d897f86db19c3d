package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// recordTimeout bounds how long recorders may take per attempt.
const recordTimeout = 5 * time.Second

// Logger defines the logging interface used by the package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State is the lifecycle state of a Client.
type State int

// Client states.
const (
	StateCreated State = iota
	StateConnecting
	StateConnected
	StateRejected
	StateDisconnected
	StateClosed
)

var stateNames = [...]string{
	StateCreated:      "created",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateRejected:     "rejected",
	StateDisconnected: "disconnected",
	StateClosed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Client owns one engine session for a (serverURI, clientID) pair.
//
// Connect calls block until the engine finishes the handshake, fails, or its
// connect timeout elapses. A Client accepts one connect at a time; a second
// concurrent call fails with ErrConnectInProgress. The engine session is
// released exactly once, by Close.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	serverURI string
	clientID  string
	session   Session
	logger    Logger
	recorder  Recorder
	quiesce   time.Duration

	// onClose is set by a Factory to drop the client from its registry.
	onClose func(*Client)

	mu    sync.Mutex
	state State
}

// Option configures a Client at creation.
type Option func(*clientOptions)

type clientOptions struct {
	engine   Engine
	logger   Logger
	recorder Recorder
	quiesce  time.Duration
}

// WithEngine sets the protocol engine. The default is NewPahoEngine().
func WithEngine(engine Engine) Option {
	return func(o *clientOptions) { o.engine = engine }
}

// WithLogger sets the logger for connect and lifecycle events.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithRecorder sets the recorder notified of every connect attempt.
func WithRecorder(recorder Recorder) Option {
	return func(o *clientOptions) { o.recorder = recorder }
}

// WithDisconnectQuiesce sets how long Disconnect and Close wait for
// in-flight work before dropping the connection.
func WithDisconnectQuiesce(d time.Duration) Option {
	return func(o *clientOptions) { o.quiesce = d }
}

func newClientOptions(opts []Option) clientOptions {
	o := clientOptions{
		logger:  noopLogger{},
		quiesce: defaultDisconnectQuiesce,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = NewPahoEngine()
	}
	if o.logger == nil {
		o.logger = noopLogger{}
	}
	return o
}

// Create creates a client ready for connection to serverURI using clientID.
// Persistence is always PersistenceNone.
//
// Parameters:
//   - serverURI: Broker URI, e.g. "tcp://localhost:1883"
//   - clientID: MQTT client identifier
//   - opts: Engine, logger, recorder and quiesce options
//
// Returns:
//   - *Client: Client in StateCreated, not yet connected
//   - error: *CreationError (errors.Is ErrCreationFailed) carrying the engine code
func Create(serverURI, clientID string, opts ...Option) (*Client, error) {
	o := newClientOptions(opts)

	if serverURI == "" || clientID == "" {
		return nil, &CreationError{Code: CodeNullParameter}
	}

	session, code := o.engine.Create(serverURI, clientID, PersistenceNone)
	if code != CodeSuccess || session == nil {
		if code == CodeSuccess {
			code = CodeFailure
		}
		o.logger.Warn("mqtt client creation failed",
			"server_uri", serverURI,
			"client_id", clientID,
			"code", int(code),
		)
		return nil, &CreationError{Code: code}
	}

	return &Client{
		serverURI: serverURI,
		clientID:  clientID,
		session:   session,
		logger:    o.logger,
		recorder:  o.recorder,
		quiesce:   o.quiesce,
		state:     StateCreated,
	}, nil
}

// ServerURI returns the broker URI given at creation.
func (c *Client) ServerURI() string { return c.serverURI }

// ClientID returns the client identifier given at creation.
func (c *Client) ClientID() string { return c.clientID }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect builds a ConnectRequest from options and connects with it.
//
// Returns:
//   - nil once the broker accepted the connection
//   - ErrInvalidConfig if options are malformed (the engine is not contacted)
//   - *ConnectError or *UnmappedCodeError describing the engine's result
//   - ErrConnectInProgress, ErrAlreadyConnected or ErrClosed for lifecycle misuse
func (c *Client) Connect(options Options) error {
	req, err := BuildRequest(options)
	if err != nil {
		c.record(Attempt{
			ClientID:  c.clientID,
			ServerURI: c.serverURI,
			Outcome:   OutcomeInvalidConfig,
			Message:   err.Error(),
			At:        time.Now().UTC(),
		})
		return err
	}
	return c.ConnectWith(req)
}

// ConnectWith connects using a prepared request.
//
// The request is consumed by every call that gets past the nil and reuse
// checks, including calls refused for lifecycle reasons: its server URI list,
// will and TLS parts are released before ConnectWith returns. Passing the
// same request again fails with ErrInvalidConfig.
func (c *Client) ConnectWith(req *ConnectRequest) (err error) {
	if req == nil {
		return fmt.Errorf("%w: nil connect request", ErrInvalidConfig)
	}
	if req.spent {
		return fmt.Errorf("%w: connect request already used", ErrInvalidConfig)
	}
	defer req.release()

	if err := c.beginConnect(); err != nil {
		return err
	}

	connected := false
	defer func() { c.finishConnect(connected) }()

	attempt := Attempt{
		ClientID:   c.clientID,
		ServerURI:  c.serverURI,
		ServerURIs: req.ServerURIs.URIs(),
		At:         time.Now().UTC(),
	}

	start := time.Now()
	code, prepErr := c.session.Connect(req)
	attempt.Duration = time.Since(start)

	if prepErr != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidConfig, prepErr)
	} else {
		attempt.Code = code
		err = MapResult(code)
	}
	connected = err == nil

	attempt.Outcome = outcomeOf(err)
	if err != nil {
		attempt.Message = err.Error()
		c.logger.Warn("mqtt connect failed",
			"client_id", c.clientID,
			"code", int(code),
			"error", err,
			"duration", attempt.Duration,
		)
	} else {
		c.logger.Info("mqtt connected",
			"client_id", c.clientID,
			"server_uri", c.serverURI,
			"fallback_uris", len(attempt.ServerURIs),
			"duration", attempt.Duration,
		)
	}
	c.record(attempt)

	return err
}

// beginConnect moves the client into StateConnecting.
func (c *Client) beginConnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateConnecting:
		return ErrConnectInProgress
	case StateConnected:
		// The engine does not reconnect on its own; a dropped connection
		// may be connected again.
		if c.session.IsConnected() {
			return ErrAlreadyConnected
		}
	}
	c.state = StateConnecting
	return nil
}

func (c *Client) finishConnect(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if connected {
		c.state = StateConnected
	} else {
		c.state = StateRejected
	}
}

func (c *Client) record(attempt Attempt) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := c.recorder.RecordAttempt(ctx, attempt); err != nil {
		c.logger.Warn("recording mqtt connect attempt failed",
			"client_id", c.clientID,
			"error", err,
		)
	}
}

// Disconnect closes the broker connection. The client may connect again.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateConnected:
	default:
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.session.Disconnect(c.quiesce)
	c.logger.Info("mqtt disconnected", "client_id", c.clientID)
	return nil
}

// Close disconnects if needed and releases the engine session.
//
// Close is idempotent; only the first call releases the session. It fails
// with ErrConnectInProgress while a connect is running.
func (c *Client) Close() error {
	c.mu.Lock()
	previous := c.state
	switch previous {
	case StateClosed:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	c.state = StateClosed
	onClose := c.onClose
	c.mu.Unlock()

	if previous == StateConnected {
		c.session.Disconnect(c.quiesce)
	}
	c.session.Destroy()

	if onClose != nil {
		onClose(c)
	}
	c.logger.Debug("mqtt client closed", "client_id", c.clientID)
	return nil
}

// IsConnected reports whether the client is connected to a broker.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected && c.session.IsConnected()
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if c.State() == StateClosed {
		return ErrClosed
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
