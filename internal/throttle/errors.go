package throttle

import (
	"errors"
	"fmt"
)

// ErrorType categorizes errors for handling strategy
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	InvalidArgument            // Bad operator input, fatal before any timer is armed
	SetupFailure               // Timer, handler or listener could not be installed, fatal
	SignalDeliveryFailure      // Stop/continue could not be delivered, absorbed
)

func (t ErrorType) String() string {
	switch t {
	case InvalidArgument:
		return "invalid argument"
	case SetupFailure:
		return "setup failure"
	case SignalDeliveryFailure:
		return "signal delivery failure"
	default:
		return "unknown"
	}
}

// Error wraps errors with context and categorization
type Error struct {
	Type    ErrorType
	Op      string // "parse", "tick", "terminate", "arm", ...
	PID     int
	Message string
	Err     error
}

// Error implements error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.PID > 0 {
		msg = fmt.Sprintf("%s (pid %d)", msg, e.PID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new categorized error
func NewError(errType ErrorType, op string, pid int, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Op:      op,
		PID:     pid,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err carries a *Error of the given type anywhere in its chain.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}
