package celeryconn

import "errors"

var (
	// ErrConnection is returned when a connection handle could not be established or was lost
	ErrConnection = errors.New("connection error")

	// ErrPublish is returned when an envelope could not be serialized or written to the store
	ErrPublish = errors.New("publish error")

	// ErrResultDecode is returned when a stored result record could not be deserialized
	ErrResultDecode = errors.New("result decode error")

	// ErrConfiguration is returned when connection details are missing required fields
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound is returned by Store.Get and Taker.Take when no record exists under a key
	ErrNotFound = errors.New("record not found")

	// ErrMissingTaskID is returned when headers or a call carry no task identifier
	ErrMissingTaskID = errors.New("missing task id")

	// ErrConnClosed is returned when using a connection handle after Close
	ErrConnClosed = errors.New("connection is closed")
)
