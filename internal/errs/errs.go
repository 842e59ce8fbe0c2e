// Package errs provides the error kinds shared by the declaration, validation
// and persistence layers.
//
// Callers never switch on messages. They compare against the sentinel values
// with errors.Is:
//
//	if errors.Is(err, errs.ErrConfiguration) {
//	    // the declaration itself is wrong
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error independently of the layer that raised it.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindValidation
	KindUnknownAttribute
	KindNotMapped
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindUnknownAttribute:
		return "unknown_attribute"
	case KindNotMapped:
		return "not_mapped"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Sentinels used as errors.Is targets. They are never returned directly.
var (
	ErrConfiguration    = &Error{Kind: KindConfiguration, Message: "configuration error"}
	ErrValidation       = &Error{Kind: KindValidation, Message: "validation error"}
	ErrUnknownAttribute = &Error{Kind: KindUnknownAttribute, Message: "unknown attribute"}
	ErrNotMapped        = &Error{Kind: KindNotMapped, Message: "class is not mapped"}
	ErrStorage          = &Error{Kind: KindStorage, Message: "storage error"}
)

// Error is the error type raised by model declaration and instance access.
type Error struct {
	Kind    Kind
	Model   string
	Attr    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var subject string
	switch {
	case e.Model != "" && e.Attr != "":
		subject = e.Model + "." + e.Attr + ": "
	case e.Model != "":
		subject = e.Model + ": "
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %v", subject, e.Message, e.Cause)
	}
	return subject + e.Message
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, which lets the sentinels work as
// errors.Is targets regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new *Error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Configf builds a configuration error for a model attribute.
func Configf(model, attr, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Model: model, Attr: attr, Message: fmt.Sprintf(format, args...)}
}

// UnknownAttribute builds the error returned for names a model does not declare.
func UnknownAttribute(model, attr string) *Error {
	return &Error{Kind: KindUnknownAttribute, Model: model, Attr: attr, Message: "object has no attribute " + fmt.Sprintf("%q", attr)}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsUnknownAttribute reports whether err names an attribute the model lacks.
func IsUnknownAttribute(err error) bool { return errors.Is(err, ErrUnknownAttribute) }
