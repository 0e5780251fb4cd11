package services

import (
	"errors"
	"fmt"
)

// ErrorKind names a failure in the advisory pipeline.
type ErrorKind string

const (
	KindDownloadFailure           ErrorKind = "DOWNLOAD_FAILURE"
	KindEmptyOrCorruptMedia       ErrorKind = "EMPTY_OR_CORRUPT_MEDIA"
	KindClassificationFailure     ErrorKind = "CLASSIFICATION_FAILURE"
	KindWeatherUnavailable        ErrorKind = "WEATHER_UNAVAILABLE"
	KindAdvisoryGenerationFailure ErrorKind = "ADVISORY_GENERATION_FAILURE"
	KindDeliveryFailure           ErrorKind = "DELIVERY_FAILURE"
)

// Error carries the failing stage plus a machine-readable reason.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("advisor: %s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("advisor: %s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the pipeline stage of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// userNotices are the short texts sent back to the farmer for each failure.
var userNotices = map[ErrorKind]string{
	KindDownloadFailure:           "⚠️ Couldn't download the image. Please resend a clear photo.",
	KindEmptyOrCorruptMedia:       "⚠️ The image seems empty or unreadable. Please resend a clear photo.",
	KindClassificationFailure:     "⚠️ Sorry, we couldn't recognise the disease in this photo. Please send a closer picture of a single leaf.",
	KindWeatherUnavailable:        "🌦️ Weather data is unavailable right now, so this advice does not account for current conditions.",
	KindAdvisoryGenerationFailure: "⚠️ Sorry, the Agro Advisor failed to prepare advice for your request.",
}

const genericNotice = "⚠️ An unexpected error occurred while processing your image. Please try again later."

// UserNotice maps an error to the message shown to the sender.
func UserNotice(err error) string {
	if msg, ok := userNotices[KindOf(err)]; ok {
		return msg
	}
	return genericNotice
}
