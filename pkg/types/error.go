package types

import (
	"errors"
	"fmt"
)

// ErrorKind partitions failures into the categories callers must distinguish.
// HTTP handlers map kinds to status codes; the ingest loop maps them to
// ack/no-ack decisions.
type ErrorKind string

const (
	// KindSql covers record-not-found, uniqueness conflicts, and connection
	// failures raised by catalog operations.
	KindSql ErrorKind = "sql"
	// KindInputValidation covers unusable client or event data, such as a
	// bad email domain, the reserved partition name, or an empty object path.
	KindInputValidation ErrorKind = "input_validation"
	// KindAuth covers failed credentials: password mismatch, or a 403 from a
	// downstream service.
	KindAuth ErrorKind = "auth"
	// KindHttp covers transport errors and unexpected statuses from
	// downstream HTTP services.
	KindHttp ErrorKind = "http"
	// KindPool covers connection-pool checkout failures.
	KindPool ErrorKind = "pool"
	// KindPubsub carries ingest-loop decision signals.
	KindPubsub ErrorKind = "pubsub"
	// KindUtf8 covers string decoding failures on binary payloads.
	KindUtf8 ErrorKind = "utf8"
	// KindGeneric covers anything else, wrapping the underlying cause.
	KindGeneric ErrorKind = "generic"
)

// Error is the taxonomy error carried across package boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two taxonomy errors by kind, which lets sentinel values like
// ErrIgnoreAndAck work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// ErrIgnoreAndAck signals the ingest loop to acknowledge and drop the
// current message instead of retrying it.
var ErrIgnoreAndAck = &Error{Kind: KindPubsub, Message: "ignore and ack"}

// SqlError wraps a database error.
func SqlError(err error) *Error { return &Error{Kind: KindSql, Err: err} }

// InputValidationError reports unusable input.
func InputValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindInputValidation, Message: fmt.Sprintf(format, args...)}
}

// AuthError reports failed credentials.
func AuthError(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// HttpError reports a transport failure or unexpected downstream status.
func HttpError(format string, args ...any) *Error {
	return &Error{Kind: KindHttp, Message: fmt.Sprintf(format, args...)}
}

// PoolError wraps a connection-pool checkout failure.
func PoolError(err error) *Error { return &Error{Kind: KindPool, Err: err} }

// Utf8Error wraps a string-decoding failure.
func Utf8Error(err error) *Error { return &Error{Kind: KindUtf8, Err: err} }

// GenericError wraps anything that does not fit another kind.
func GenericError(err error) *Error { return &Error{Kind: KindGeneric, Err: err} }

// KindOf returns the taxonomy kind of err, or KindGeneric for errors from
// outside the taxonomy.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return err != nil && KindOf(err) == kind }
