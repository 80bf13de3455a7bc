package runtime

import (
	"errors"
	"fmt"
)

// ErrNoSuchElement is returned when a control operation targets a source,
// transform or output name that the runtime does not manage.
var ErrNoSuchElement = errors.New("runtime: no such element")

// PollErrorKind classifies a Source.Poll failure (spec.md §4.D: "Source
// errors classify as Fatal, CanRetry, NormalStop").
type PollErrorKind uint8

const (
	// PollFatal means the source cannot recover; its task must stop and
	// the error is reported.
	PollFatal PollErrorKind = iota
	// PollCanRetry means the failure is transient; the source task logs
	// and keeps running.
	PollCanRetry
	// PollNormalStop means the source's measured entity disappeared in an
	// expected way (e.g. a monitored process exited); the task stops
	// without reporting an error.
	PollNormalStop
)

// PollError is returned by Source.Poll. Wrap an underlying cause with
// NewPollError/RetryPoll, or use ErrNormalStop for an expected shutdown.
type PollError struct {
	Kind  PollErrorKind
	Cause error
}

func (e *PollError) Error() string {
	switch e.Kind {
	case PollFatal:
		return fmt.Sprintf("fatal error in Source.Poll: %v", e.Cause)
	case PollCanRetry:
		return fmt.Sprintf("polling failed (but could work later): %v", e.Cause)
	default:
		return "the source stopped in an expected way"
	}
}

func (e *PollError) Unwrap() error { return e.Cause }

// NewPollError wraps cause as a fatal poll error.
func NewPollError(cause error) *PollError { return &PollError{Kind: PollFatal, Cause: cause} }

// RetryPoll wraps cause as a retryable poll error, the Go equivalent of
// the original implementation's `.retry_poll()` helper trait
// (original_source/alumet/src/pipeline/elements/source/error.rs).
func RetryPoll(cause error) *PollError { return &PollError{Kind: PollCanRetry, Cause: cause} }

// ErrNormalStop reports an expected, non-error end of a source's work.
var ErrNormalStop = &PollError{Kind: PollNormalStop}

// TransformErrorKind classifies a Transform.Apply failure.
type TransformErrorKind uint8

const (
	// TransformFatal stops the transform task entirely.
	TransformFatal TransformErrorKind = iota
	// TransformUnexpectedInput means this buffer could not be processed
	// (e.g. a point with an unrecognized metric) but the task continues.
	TransformUnexpectedInput
)

// TransformError is returned by Transform.Apply.
type TransformError struct {
	Kind  TransformErrorKind
	Cause error
}

func (e *TransformError) Error() string {
	if e.Kind == TransformFatal {
		return fmt.Sprintf("fatal error in Transform.Apply: %v", e.Cause)
	}
	return fmt.Sprintf("unexpected input in Transform.Apply: %v", e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// NewTransformFatalError wraps cause as a fatal transform error.
func NewTransformFatalError(cause error) *TransformError {
	return &TransformError{Kind: TransformFatal, Cause: cause}
}

// NewTransformUnexpectedInputError wraps cause as a recoverable
// unexpected-input error.
func NewTransformUnexpectedInputError(cause error) *TransformError {
	return &TransformError{Kind: TransformUnexpectedInput, Cause: cause}
}

// WriteErrorKind classifies an Output.Write failure.
type WriteErrorKind uint8

const (
	// WriteFatal means the output can no longer be used and its task
	// must stop.
	WriteFatal WriteErrorKind = iota
	// WriteCanRetry means the failure is transient.
	WriteCanRetry
)

// WriteError is returned by Output.Write.
type WriteError struct {
	Kind  WriteErrorKind
	Cause error
}

func (e *WriteError) Error() string {
	if e.Kind == WriteFatal {
		return fmt.Sprintf("fatal error in Output.Write: %v", e.Cause)
	}
	return fmt.Sprintf("writing failed (but could work later): %v", e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

// NewWriteError wraps cause as a fatal write error.
func NewWriteError(cause error) *WriteError { return &WriteError{Kind: WriteFatal, Cause: cause} }

// RetryWrite wraps cause as a retryable write error.
func RetryWrite(cause error) *WriteError { return &WriteError{Kind: WriteCanRetry, Cause: cause} }
