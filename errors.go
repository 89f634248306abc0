package streamobject

import (
	"fmt"

	"github.com/xraph/streamobject/provider"
)

// ErrorKind classifies the failure modes the engine can surface. These are
// deliberately small and stable so callers can switch on Kind rather than
// parsing messages.
type ErrorKind string

const (
	KindInvalidArgument   ErrorKind = "invalid-argument"
	KindNoObjectGenerated ErrorKind = "no-object-generated"
	KindTypeValidation    ErrorKind = "type-validation"
	KindProviderError     ErrorKind = "provider-error"
	KindCancelled         ErrorKind = "cancelled"
	KindTransport         ErrorKind = "transport"
)

// Error is the engine's error type. Every failure the engine produces or
// passes through is wrapped in one of these so callers can inspect Kind
// without string matching.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error

	// Text and Usage are populated for KindNoObjectGenerated: the raw
	// accumulated text at the time validation failed, and whatever usage
	// accounting the provider had reported by then.
	Text  string
	Usage *provider.Usage
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("streamobject: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("streamobject: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match on Kind alone, so a caller can write
// errors.Is(err, &streamobject.Error{Kind: streamobject.KindCancelled}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

func newInvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func newNoObjectGenerated(cause error, text string, usage *provider.Usage) *Error {
	return &Error{
		Kind:    KindNoObjectGenerated,
		Message: "final text could not be parsed into a value satisfying the output strategy",
		Cause:   cause,
		Text:    text,
		Usage:   usage,
	}
}

func newTypeValidation(cause error) *Error {
	return &Error{Kind: KindTypeValidation, Message: "value failed schema validation", Cause: cause}
}

func newProviderError(cause error) *Error {
	return &Error{Kind: KindProviderError, Message: "provider reported an error", Cause: cause}
}

func newCancelled(cause error) *Error {
	return &Error{Kind: KindCancelled, Message: "call was cancelled", Cause: cause}
}

func newTransport(cause error) *Error {
	return &Error{Kind: KindTransport, Message: "transport or unknown failure", Cause: cause}
}
