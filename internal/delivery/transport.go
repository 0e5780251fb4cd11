package delivery

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a transport failure for the delivery driver.
type ErrorKind string

const (
	KindBodyTooLong ErrorKind = "body_too_long"
	KindRateLimited ErrorKind = "rate_limited"
	KindOther       ErrorKind = "other"
)

// Transport pushes a single, already size-checked message body to a destination.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, to, body string) error
}

// TransportError is returned by transports that can tell why a send failed.
type TransportError struct {
	Kind       ErrorKind
	StatusCode int
	Code       int
	Detail     string
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != 0 {
		return fmt.Sprintf("transport: %s (status %d, code %d): %s", e.Kind, e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("transport: %s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
}

// Classify maps any send error onto an ErrorKind. Errors that are not a
// TransportError (network failures, cancelled contexts) are KindOther.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}
	return KindOther
}
