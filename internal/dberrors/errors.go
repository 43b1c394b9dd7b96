// Package dberrors defines the closed error-kind taxonomy that crosses every
// public boundary of corvus. No panic is allowed to cross that boundary;
// every failure is wrapped into a *DBError carrying a Kind, the offending
// operation, and a human-readable message.
package dberrors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories a public operation can fail
// with. Callers switch on Kind rather than comparing error strings.
type Kind int

const (
	FilterError Kind = iota + 1
	IndexingError
	IndexNotFound
	IndexAlreadyExists
	IndexBuildFailed
	IndexCorrupted
	IndexTypeMismatch
	IndexingInProgress
	InvalidId
	NotIdentifiable
	NotFound
	InvalidOperation
	IOError
	DiskFull
	FileNotFound
	PermissionDenied
	FileCorrupted
	FileAccessError
	EncodingError
	ObjectMappingError
	SecurityError
	UniqueConstraintViolation
	ValidationError
	InvalidDataType
	InvalidFieldName
	MissingRequiredField
	CollectionNotFound
	RepositoryNotFound
	EventError
	PluginError
	PluginLoadFailed
	BackendError
	StoreNotInitialized
	StoreAlreadyClosed
	MigrationError
	Extension
	InternalError
)

var kindNames = map[Kind]string{
	FilterError:               "FilterError",
	IndexingError:             "IndexingError",
	IndexNotFound:             "IndexNotFound",
	IndexAlreadyExists:        "IndexAlreadyExists",
	IndexBuildFailed:          "IndexBuildFailed",
	IndexCorrupted:            "IndexCorrupted",
	IndexTypeMismatch:         "IndexTypeMismatch",
	IndexingInProgress:        "IndexingInProgress",
	InvalidId:                 "InvalidId",
	NotIdentifiable:           "NotIdentifiable",
	NotFound:                  "NotFound",
	InvalidOperation:          "InvalidOperation",
	IOError:                   "IOError",
	DiskFull:                  "DiskFull",
	FileNotFound:              "FileNotFound",
	PermissionDenied:          "PermissionDenied",
	FileCorrupted:             "FileCorrupted",
	FileAccessError:           "FileAccessError",
	EncodingError:             "EncodingError",
	ObjectMappingError:        "ObjectMappingError",
	SecurityError:             "SecurityError",
	UniqueConstraintViolation: "UniqueConstraintViolation",
	ValidationError:           "ValidationError",
	InvalidDataType:           "InvalidDataType",
	InvalidFieldName:          "InvalidFieldName",
	MissingRequiredField:      "MissingRequiredField",
	CollectionNotFound:        "CollectionNotFound",
	RepositoryNotFound:        "RepositoryNotFound",
	EventError:                "EventError",
	PluginError:               "PluginError",
	PluginLoadFailed:          "PluginLoadFailed",
	BackendError:              "BackendError",
	StoreNotInitialized:       "StoreNotInitialized",
	StoreAlreadyClosed:        "StoreAlreadyClosed",
	MigrationError:            "MigrationError",
	Extension:                 "Extension",
	InternalError:             "InternalError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UnknownKind"
}

// DBError is the concrete error type returned across the public API. It
// keeps the originating Kind, the operation name (e.g. "Collection.Insert"),
// a human message naming the offending key/field/descriptor, and an
// optional wrapped cause.
type DBError struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *DBError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *DBError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, dberrors.New(SomeKind, "", "")) to match purely
// on Kind, which is how callers typically probe the taxonomy.
func (e *DBError) Is(target error) bool {
	var other *DBError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a DBError with no wrapped cause.
func New(kind Kind, op, message string) *DBError {
	return &DBError{Kind: kind, Op: op, Message: message}
}

// Wrap builds a DBError that preserves cause.
func Wrap(kind Kind, op, message string, cause error) *DBError {
	return &DBError{Kind: kind, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to InternalError when err is
// not a *DBError (e.g. a raw I/O error bubbling up from a storage plug-in).
func KindOf(err error) Kind {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	return InternalError
}
