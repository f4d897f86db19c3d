package mqtt

import (
	"errors"
	"fmt"
)

// Domain-specific errors for MQTT client operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrCreationFailed is returned when the engine cannot create a client.
	// The concrete error is a *CreationError carrying the engine code.
	ErrCreationFailed = errors.New("mqtt: client creation failed")

	// ErrConnectRefused is returned when a connect attempt ends with one of
	// the known failure codes. The concrete error is a *ConnectError.
	ErrConnectRefused = errors.New("mqtt: connect refused")

	// ErrUnmappedCode is returned when the engine reports a connect result
	// code outside the known set. It is never treated as success.
	ErrUnmappedCode = errors.New("mqtt: unmapped connect result code")

	// ErrInvalidConfig is returned when a connect configuration entry has the
	// wrong type, is out of range, or a mandatory field is missing.
	ErrInvalidConfig = errors.New("mqtt: invalid connect configuration")

	// ErrConnectInProgress is returned when connect is called on a client
	// that is already connecting.
	ErrConnectInProgress = errors.New("mqtt: connect already in progress")

	// ErrAlreadyConnected is returned when connect is called on a connected client.
	ErrAlreadyConnected = errors.New("mqtt: client already connected")

	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrClosed is returned for any operation on a closed client.
	ErrClosed = errors.New("mqtt: client closed")

	// ErrClientExists is returned by a Factory when the client ID is already registered.
	ErrClientExists = errors.New("mqtt: client id already registered")
)

// CreationError reports an engine failure while creating a client.
type CreationError struct {
	Code ReturnCode
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("cannot create a new client : %d", int(e.Code))
}

// Is makes errors.Is(err, ErrCreationFailed) match.
func (e *CreationError) Is(target error) bool {
	return target == ErrCreationFailed
}

// ConnectError reports a connect attempt that ended with a known failure code.
// Message is the fixed diagnostic for Code.
type ConnectError struct {
	Code    ReturnCode
	Message string
}

func (e *ConnectError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrConnectRefused) match.
func (e *ConnectError) Is(target error) bool {
	return target == ErrConnectRefused
}

// UnmappedCodeError reports a connect result code with no known meaning.
type UnmappedCodeError struct {
	Code ReturnCode
}

func (e *UnmappedCodeError) Error() string {
	return fmt.Sprintf("unmapped connect result code %d", int(e.Code))
}

// Is makes errors.Is(err, ErrUnmappedCode) match.
func (e *UnmappedCodeError) Is(target error) bool {
	return target == ErrUnmappedCode
}
