package bridge

import "errors"

var (
	// ErrOperationInFlight is returned when a second call of the same kind is
	// issued for the participant before the first one consumed its result.
	ErrOperationInFlight = errors.New("operation already in flight for this participant and kind")

	// ErrPublishFailed wraps a command channel publish failure. The command
	// never reached the transport, so polling would wait forever.
	ErrPublishFailed = errors.New("failed to publish command")

	// ErrMalformedEntry wraps a result entry that is missing or carries an
	// undecodable field for its operation kind.
	ErrMalformedEntry = errors.New("malformed result entry")
)
