package mqtt

import "strconv"

// ReturnCode is a numeric result reported by the protocol engine for
// create and connect operations.
type ReturnCode int

// Connect result codes. Values 1-5 are the MQTT v3 CONNACK refusal codes.
const (
	CodeSuccess               ReturnCode = 0
	CodeFailure               ReturnCode = -1
	CodeUnacceptableProtocol  ReturnCode = 1
	CodeIdentifierRejected    ReturnCode = 2
	CodeServerUnavailable     ReturnCode = 3
	CodeBadUsernameOrPassword ReturnCode = 4
	CodeNotAuthorized         ReturnCode = 5
	CodeProtocolViolation     ReturnCode = 0xFF
)

// Create result codes.
const (
	CodePersistenceError ReturnCode = -2
	CodeBadUTF8String    ReturnCode = -5
	CodeNullParameter    ReturnCode = -6
	CodeBadProtocol      ReturnCode = -14
)

// connectMessages holds the fixed diagnostic for every mapped connect code.
var connectMessages = map[ReturnCode]string{
	CodeFailure:               "connection error",
	CodeUnacceptableProtocol:  "unacceptable protocol version",
	CodeIdentifierRejected:    "identifier rejected",
	CodeServerUnavailable:     "server unavailable",
	CodeBadUsernameOrPassword: "bad username or password",
	CodeNotAuthorized:         "not authorized",
}

// String returns the diagnostic for mapped codes and the number otherwise.
func (c ReturnCode) String() string {
	if c == CodeSuccess {
		return "success"
	}
	if msg, ok := connectMessages[c]; ok {
		return msg
	}
	return strconv.Itoa(int(c))
}

// MapResult converts a connect result code into an outcome.
//
// Returns:
//   - nil for CodeSuccess
//   - *ConnectError for -1 and 1..5
//   - *UnmappedCodeError for every other code
func MapResult(code ReturnCode) error {
	if code == CodeSuccess {
		return nil
	}
	if msg, ok := connectMessages[code]; ok {
		return &ConnectError{Code: code, Message: msg}
	}
	return &UnmappedCodeError{Code: code}
}
