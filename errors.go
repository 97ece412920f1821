package contextkb

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure the way the rest of the pipeline needs to
// react to it: some kinds are always fatal (Storage, Config), others are
// routinely logged and swallowed by a caller (Network, Conversion).
type ErrorKind int

const (
	KindConfig ErrorKind = iota
	KindNetwork
	KindParse
	KindStorage
	KindEnrichment
	KindIO
	KindValidation
	KindConversion
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindStorage:
		return "storage"
	case KindEnrichment:
		return "enrichment"
	case KindIO:
		return "io"
	case KindValidation:
		return "validation"
	case KindConversion:
		return "conversion"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across package boundaries. It
// carries a machine-checkable Kind alongside the wrapped cause so callers
// can both log a human message and branch with errors.Is/errors.As.
type Error struct {
	Kind    ErrorKind
	Message string
	Path    string // set only for Kind == KindIO
	Err     error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func ConfigError(msg string, cause error) *Error     { return newErr(KindConfig, msg, cause) }
func NetworkError(msg string, cause error) *Error    { return newErr(KindNetwork, msg, cause) }
func ParseError(msg string, cause error) *Error      { return newErr(KindParse, msg, cause) }
func StorageError(msg string, cause error) *Error    { return newErr(KindStorage, msg, cause) }
func EnrichmentError(msg string, cause error) *Error { return newErr(KindEnrichment, msg, cause) }
func ValidationError(msg string, cause error) *Error { return newErr(KindValidation, msg, cause) }
func ConversionError(msg string, cause error) *Error { return newErr(KindConversion, msg, cause) }

func IOError(path, msg string, cause error) *Error {
	return &Error{Kind: KindIO, Message: msg, Path: path, Err: cause}
}

// KindOf reports the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

var (
	// ErrKBNotFound is returned when a manifest cannot be located on update.
	ErrKBNotFound = errors.New("contextkb: knowledge base not found")

	// ErrSchemaMismatch is returned when a manifest's schema_version is
	// not the version this build understands.
	ErrSchemaMismatch = errors.New("contextkb: unsupported manifest schema version")

	// ErrNoPages is returned when a crawl or discovery yields nothing to
	// convert, making an add/update impossible.
	ErrNoPages = errors.New("contextkb: no pages fetched")

	// ErrReadOnly names a write attempted on a read-only store. The store
	// package's write calls return their own store.ErrReadOnly, not this
	// value.
	ErrReadOnly = errors.New("contextkb: store is open read-only")
)
