package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nazmi/sqlmodel/internal/errs"
)

// Issue codes
const (
	CodeRequired       = "required"
	CodeInvalidType    = "invalid_type"
	CodeNoneNotAllowed = "none_not_allowed"
	CodeTooSmall       = "too_small"
	CodeTooBig         = "too_big"
	CodeTooShort       = "too_short"
	CodeTooLong        = "too_long"
	CodePattern        = "pattern"
	CodeInvalidEnum    = "invalid_enum"
	CodeInvalidFormat  = "invalid_format"
	CodeConst          = "const"
	CodeImmutable      = "immutable"
	CodeMultipleOf     = "multiple_of"
	CodeDigits         = "digits"
	CodeUniqueItems    = "unique_items"
	CodeExtraForbidden = "extra_forbidden"
	CodeValueError     = "value_error"
)

// Issue is a single validation failure.
type Issue struct {
	// Path is the dotted location of the value, e.g. "teams.0.name".
	Path    string         `json:"path"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Errors collects the issues found while validating one model.
type Errors struct {
	Model  string
	Issues []Issue
}

// NewErrors creates an empty Errors for model.
func NewErrors(model string) *Errors {
	return &Errors{Model: model}
}

// Add records an issue.
func (e *Errors) Add(path, code, message string, params map[string]any) {
	e.Issues = append(e.Issues, Issue{Path: path, Code: code, Message: message, Params: params})
}

// Merge appends the issues of other under prefix.
func (e *Errors) Merge(prefix string, other *Errors) {
	if other == nil {
		return
	}
	for _, iss := range other.Issues {
		iss.Path = joinPath(prefix, iss.Path)
		e.Issues = append(e.Issues, iss)
	}
}

// HasErrors returns true if there are any validation errors
func (e *Errors) HasErrors() bool {
	return e != nil && len(e.Issues) > 0
}

// Count returns the number of issues.
func (e *Errors) Count() int {
	if e == nil {
		return 0
	}
	return len(e.Issues)
}

// Fields groups messages by path.
func (e *Errors) Fields() map[string][]string {
	out := make(map[string][]string, len(e.Issues))
	for _, iss := range e.Issues {
		out[iss.Path] = append(out[iss.Path], iss.Message)
	}
	return out
}

// Codes returns the distinct issue codes in first-seen order.
func (e *Errors) Codes() []string {
	var codes []string
	for _, iss := range e.Issues {
		if !slices.Contains(codes, iss.Code) {
			codes = append(codes, iss.Code)
		}
	}
	return codes
}

// OnlyCodes reports whether every issue has one of codes.
func (e *Errors) OnlyCodes(codes ...string) bool {
	for _, iss := range e.Issues {
		if !slices.Contains(codes, iss.Code) {
			return false
		}
	}
	return true
}

// Without returns a copy holding the issues whose code is not in codes.
func (e *Errors) Without(codes ...string) *Errors {
	out := NewErrors(e.Model)
	for _, iss := range e.Issues {
		if !slices.Contains(codes, iss.Code) {
			out.Issues = append(out.Issues, iss)
		}
	}
	return out
}

// Error implements the error interface
func (e *Errors) Error() string {
	subject := "validation failed"
	if e.Model != "" {
		subject = "validation failed for " + e.Model
	}
	if len(e.Issues) == 0 {
		return subject
	}
	if len(e.Issues) == 1 {
		return subject + ": " + e.Issues[0].String()
	}
	lines := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		lines = append(lines, "  - "+iss.String())
	}
	return fmt.Sprintf("%s (%d issues):\n%s", subject, len(e.Issues), strings.Join(lines, "\n"))
}

// Is matches the validation error kind.
func (e *Errors) Is(target error) bool {
	t, ok := target.(*errs.Error)
	return ok && t.Kind == errs.KindValidation
}

// MarshalJSON implements json.Marshaler for custom JSON serialization
func (e *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string  `json:"error"`
		Model  string  `json:"model,omitempty"`
		Issues []Issue `json:"issues"`
	}{
		Error:  "validation_failed",
		Model:  e.Model,
		Issues: e.Issues,
	})
}

// AsErrors extracts *Errors from an error chain.
func AsErrors(err error) (*Errors, bool) {
	var ve *Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	}
	return prefix + "." + path
}
