// Package errs defines the error kinds returned across the tokenization pipeline.
//
// Errors returned by this module wrap one of the sentinel values below, so callers can
// classify them with `errors.Is(err, errs.ErrConfig)` and still get a descriptive message
// (and, thanks to github.com/pkg/errors, a stack trace with "%+v").
package errs

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfig is returned for malformed saved configurations or incompatible option combinations.
	ErrConfig = errors.New("configuration error")

	// ErrInvalidPattern is returned when a literal-or-regex pattern fails to compile.
	// It is a specialization of ErrConfig.
	ErrInvalidPattern = &kindError{kind: ErrConfig, msg: "invalid pattern"}

	// ErrInvalidPrecompiledData is returned when a SentencePiece precompiled charsmap can't be parsed.
	// It is a specialization of ErrConfig.
	ErrInvalidPrecompiledData = &kindError{kind: ErrConfig, msg: "invalid precompiled charsmap"}

	// ErrModelLoad is returned when a vocabulary or merges file is missing or malformed.
	ErrModelLoad = errors.New("model load error")

	// ErrIO is returned on filesystem failures while loading or saving.
	ErrIO = errors.New("i/o error")

	// ErrInvalidInput is returned when the input to an operation has the wrong shape.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTemplate is returned when a template post-processor is malformed or references an
	// unknown special token.
	ErrTemplate = errors.New("template error")

	// ErrTraining is returned when a trainer can't produce a valid vocabulary.
	ErrTraining = errors.New("training error")

	// ErrInternal signals a broken invariant, e.g. an Encoding with parallel slices of different lengths.
	ErrInternal = errors.New("internal error")
)

// kindError is a sentinel that is also a sub-kind of another sentinel.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// causeError attaches a sentinel kind to an underlying cause, so that both are reachable
// with errors.Is / errors.As.
type causeError struct {
	kind, cause error
}

func (e *causeError) Error() string   { return e.kind.Error() + ": " + e.cause.Error() }
func (e *causeError) Unwrap() []error { return []error{e.kind, e.cause} }

// Wrap classifies cause as being of the given kind, and adds the formatted message.
// It returns nil if cause is nil.
func Wrap(kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return errors.Wrapf(&causeError{kind: kind, cause: cause}, format, args...)
}

// Errorf creates a new error of the given kind with the formatted message.
func Errorf(kind error, format string, args ...any) error {
	return errors.Wrapf(kind, format, args...)
}
