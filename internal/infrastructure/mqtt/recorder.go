package mqtt

import (
	"context"
	"errors"
	"time"
)

// Attempt outcomes.
const (
	OutcomeConnected     = "connected"
	OutcomeRejected      = "rejected"
	OutcomeUnmapped      = "unmapped"
	OutcomeInvalidConfig = "invalid_config"
)

// Attempt describes one connect call and how it ended.
type Attempt struct {
	ID         string
	ClientID   string
	ServerURI  string
	ServerURIs []string // copy of the fallback list, nil when none was given
	Code       ReturnCode
	Outcome    string
	Message    string
	Duration   time.Duration
	At         time.Time
}

// Recorder receives every connect attempt made by a Client.
//
// Recorders are called synchronously after the outcome is known. A recorder
// error is logged and never changes the connect result.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, attempt Attempt) error

// RecordAttempt calls f.
func (f RecorderFunc) RecordAttempt(ctx context.Context, attempt Attempt) error {
	return f(ctx, attempt)
}

type multiRecorder []Recorder

func (m multiRecorder) RecordAttempt(ctx context.Context, attempt Attempt) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordAttempt(ctx, attempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorders combines recorders; nil entries are skipped. Every recorder sees
// every attempt even if an earlier one fails.
func Recorders(recorders ...Recorder) Recorder {
	var m multiRecorder
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// outcomeOf classifies a connect result for recording.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeConnected
	case errors.Is(err, ErrInvalidConfig):
		return OutcomeInvalidConfig
	case errors.Is(err, ErrUnmappedCode):
		return OutcomeUnmapped
	default:
		return OutcomeRejected
	}
}
