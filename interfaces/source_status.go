package interfaces

import (
	"fmt"
	"time"
)

// SourceStatusProvider is an interface for querying the status of the hub's data source.
//
// The data source is the component that delivers state updates into the hub, such as the
// streaming source, the polling source, or a file source. An application can monitor the
// source's health either by polling GetStatus or by subscribing with AddStatusListener.
//
// Obtain the provider from Hub.SourceStatusProvider(). Application code should not implement
// this interface.
type SourceStatusProvider interface {
	// GetStatus returns the current status of the data source.
	GetStatus() SourceStatus

	// AddStatusListener subscribes for notifications of status changes. The returned channel
	// will receive a new SourceStatus value for any change in state or error.
	//
	// It is the caller's responsibility to consume values from the channel. Allowing the
	// channel to accumulate a large number of unread values can cause the hub to block.
	AddStatusListener() <-chan SourceStatus

	// RemoveStatusListener unsubscribes from notifications of status changes. The parameter
	// must be the same channel that was returned by AddStatusListener; otherwise, the method
	// has no effect.
	RemoveStatusListener(listener <-chan SourceStatus)

	// WaitFor blocks until the source has reached the desired state, up to the given timeout.
	//
	// It returns true if the state was reached. It returns false if the timeout elapsed, or
	// if the source reached SourceStateOff (in which case the desired state can never be
	// reached). A timeout of zero or less means no timeout.
	WaitFor(desiredState SourceState, timeout time.Duration) bool
}

// SourceStatus is information about the data source's status and the last error it encountered,
// returned by SourceStatusProvider.
type SourceStatus struct {
	// State represents the overall current state of the source. It will always be one of the
	// SourceState constants.
	State SourceState

	// StateSince is the date/time that the value of State most recently changed.
	StateSince time.Time

	// LastError is information about the last error that the source encountered, if any. An
	// error does not necessarily mean the source is no longer working; see State.
	LastError SourceErrorInfo
}

func (s SourceStatus) String() string {
	return fmt.Sprintf("Status(%s,%s,%s)", s.State, s.StateSince.Format(time.RFC3339), s.LastError)
}

// SourceState is any of the allowable values for SourceStatus.State.
type SourceState string

const (
	// SourceStateInitializing is the initial state of the source when the hub is being built.
	// It remains in this state until it has either succeeded in delivering initial data, or
	// permanently failed.
	SourceStateInitializing SourceState = "INITIALIZING"

	// SourceStateValid indicates that the source is currently operational and has not had any
	// problems since the last time it delivered data.
	SourceStateValid SourceState = "VALID"

	// SourceStateInterrupted indicates that the source encountered an error that it will
	// attempt to recover from. During this state, the hub continues to serve the last known
	// data.
	SourceStateInterrupted SourceState = "INTERRUPTED"

	// SourceStateOff indicates that the source has been permanently shut down, either because
	// the hub was closed or because an unrecoverable error occurred (such as an HTTP 401 from
	// the remote endpoint).
	SourceStateOff SourceState = "OFF"
)

// SourceErrorInfo is a description of an error condition that the data source encountered.
type SourceErrorInfo struct {
	// Kind is the general category of the error. It will always be one of the SourceErrorKind
	// constants, or an empty string when there is no error.
	Kind SourceErrorKind

	// StatusCode is the HTTP status code if the error was SourceErrorKindErrorResponse, or
	// zero otherwise.
	StatusCode int

	// Message is any additional human-readable information relevant to the error.
	Message string

	// Time is the date/time that the error occurred.
	Time time.Time
}

func (e SourceErrorInfo) String() string {
	if e.Kind == "" {
		return "(no error)"
	}
	if e.StatusCode > 0 || e.Message != "" {
		details := ""
		if e.StatusCode > 0 {
			details = fmt.Sprintf("%d", e.StatusCode)
		}
		if e.Message != "" {
			if details != "" {
				details += ","
			}
			details += e.Message
		}
		return fmt.Sprintf("%s(%s)", e.Kind, details)
	}
	return string(e.Kind)
}

// SourceErrorKind is any of the allowable values for SourceErrorInfo.Kind.
type SourceErrorKind string

const (
	// SourceErrorKindUnknown is an unexpected error, such as an uncaught exception.
	SourceErrorKindUnknown SourceErrorKind = "UNKNOWN"

	// SourceErrorKindNetworkError is an I/O error such as a dropped connection.
	SourceErrorKindNetworkError SourceErrorKind = "NETWORK_ERROR"

	// SourceErrorKindErrorResponse means the remote endpoint returned an HTTP response with an
	// error status.
	SourceErrorKindErrorResponse SourceErrorKind = "ERROR_RESPONSE"

	// SourceErrorKindInvalidData means the source received malformed data, such as a file or a
	// response body that could not be parsed.
	SourceErrorKindInvalidData SourceErrorKind = "INVALID_DATA"

	// SourceErrorKindStoreError means the data source itself was working, but a failure
	// occurred when the update was pushed into the store.
	SourceErrorKindStoreError SourceErrorKind = "STORE_ERROR"
)
