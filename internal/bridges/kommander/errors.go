package kommander

import "errors"

// Domain errors for the Kommander bridge package.
var (
	// ErrInvalidAddress is recorded when the configured device URL does not
	// match the ws/wss address pattern. It surfaces as a BadConfig status.
	ErrInvalidAddress = errors.New("kommander: invalid device address")

	// ErrTransport is logged when the websocket reports an error. It never
	// changes the connection status on its own.
	ErrTransport = errors.New("kommander: transport error")

	// ErrTransportClosed is recorded when the websocket closes.
	ErrTransportClosed = errors.New("kommander: transport closed")

	// ErrMalformedNotification is returned when a recognised notification body
	// does not have the shape its tag requires.
	ErrMalformedNotification = errors.New("kommander: malformed notification")

	// ErrExtractionMiss is returned when a subscription path does not resolve
	// against a notification.
	ErrExtractionMiss = errors.New("kommander: path not found in notification")

	// ErrInvalidVariableName is returned when a subscription destination does
	// not match [-a-zA-Z0-9_]+.
	ErrInvalidVariableName = errors.New("kommander: invalid variable name")

	// ErrInvalidParameter is returned when a command or feedback option is out
	// of range or cannot be parsed.
	ErrInvalidParameter = errors.New("kommander: invalid parameter")

	// ErrUnknownAction is returned for an action id not in the catalog.
	ErrUnknownAction = errors.New("kommander: unknown action")

	// ErrUnknownFeedback is returned for a feedback kind not in the catalog.
	ErrUnknownFeedback = errors.New("kommander: unknown feedback")

	// ErrSubscriptionNotFound is returned when removing an unknown
	// subscription.
	ErrSubscriptionNotFound = errors.New("kommander: subscription not found")

	// ErrManagerStopped is returned by operations issued after Shutdown or
	// after the reactor has exited.
	ErrManagerStopped = errors.New("kommander: manager stopped")
)
