// Package errs provides the unified error type used across all of Tessera.
//
// Every subsystem (database, sqlgen, backup, server, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In the driver — wrap native errors:
//	return errs.Wrap(errs.KindConnectionFailed, "connect failed", pgErr)
//
//	// In a handler — check error kind:
//	if errs.IsTableNotPresent(err) {
//	    http.Error(w, "no such table", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error without exposing backend-specific codes.
// The driver and the SQL generator map their failures onto exactly one kind,
// giving callers a single consistent API.
type Kind int

const (
	KindUnknown          Kind = iota
	KindConnectionFailed      // cannot reach or authenticate to the store; fatal
	KindPoolExhausted         // connection pool acquire timed out; retryable
	KindQueryFailed           // SQL execution error reported by the store
	KindTimeout               // context deadline / cancellation during a query
	KindTableNotPresent       // referenced table is not part of the schema
	KindColumnsNotPresent     // requested columns missing from the table descriptor
	KindInsertEmptyData       // insert called with zero rows
	KindInsertFormat          // row value kind unsupported on a write path
	KindRowParse              // query result row was not a JSON object
	KindDriftDetected         // live schema diverges from the declared spec
	KindSerialization         // backup file IO or JSON encode/decode failure
	KindInvalidInput          // bad arguments from the caller
)

func (k Kind) String() string {
	switch k {
	case KindConnectionFailed:
		return "connection_failed"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindQueryFailed:
		return "query_failed"
	case KindTimeout:
		return "timeout"
	case KindTableNotPresent:
		return "table_not_present"
	case KindColumnsNotPresent:
		return "columns_not_present"
	case KindInsertEmptyData:
		return "insert_empty_data"
	case KindInsertFormat:
		return "insert_format_unimplemented"
	case KindRowParse:
		return "row_parse"
	case KindDriftDetected:
		return "drift_detected"
	case KindSerialization:
		return "serialization"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all Tessera subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    Kind
	Message string
	Cause   error // original backend-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool { return KindOf(err) == KindConnectionFailed }

// IsPoolExhausted reports whether err was caused by pool acquire timing out.
// Such errors are safe to retry once load subsides.
func IsPoolExhausted(err error) bool { return KindOf(err) == KindPoolExhausted }

// IsQueryFailed reports whether err is a SQL execution error.
func IsQueryFailed(err error) bool { return KindOf(err) == KindQueryFailed }

// IsTimeout reports whether err was caused by a deadline or cancellation.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsTableNotPresent reports whether err names a table outside the schema.
func IsTableNotPresent(err error) bool { return KindOf(err) == KindTableNotPresent }

// IsColumnsNotPresent reports whether err names columns missing from a table.
func IsColumnsNotPresent(err error) bool { return KindOf(err) == KindColumnsNotPresent }

// IsInsertEmptyData reports whether err came from an insert with no rows.
func IsInsertEmptyData(err error) bool { return KindOf(err) == KindInsertEmptyData }

// IsInsertFormat reports whether err came from an unsupported value kind
// on a write path.
func IsInsertFormat(err error) bool { return KindOf(err) == KindInsertFormat }

// IsRowParse reports whether err came from a malformed result row.
func IsRowParse(err error) bool { return KindOf(err) == KindRowParse }

// IsDriftDetected reports whether err is a schema drift report.
func IsDriftDetected(err error) bool { return KindOf(err) == KindDriftDetected }

// IsSerialization reports whether err is a backup IO or JSON failure.
func IsSerialization(err error) bool { return KindOf(err) == KindSerialization }

// IsInvalidInput reports whether err was caused by bad caller input.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// KindOf extracts the Kind from any error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
