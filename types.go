package sqlmodel

import "github.com/nazmi/sqlmodel/schema"

// String is an unbounded string.
func String() *TypeSpec { return schema.String() }

// StringN is a string stored as VARCHAR(n).
func StringN(n int) *TypeSpec { return schema.StringN(n) }

// Text is a long string.
func Text() *TypeSpec { return schema.Text() }

// Int is an integer.
func Int() *TypeSpec { return schema.Int() }

// BigInt is a 64-bit integer.
func BigInt() *TypeSpec { return schema.BigInt() }

// Float is a floating point number.
func Float() *TypeSpec { return schema.Float() }

// Decimal is a fixed-point number.
func Decimal(precision, scale int) *TypeSpec { return schema.Decimal(precision, scale) }

// Boolean is a bool.
func Boolean() *TypeSpec { return schema.Bool() }

// Timestamp is a date and time.
func Timestamp() *TypeSpec { return schema.Timestamp() }

// Date is a calendar date.
func Date() *TypeSpec { return schema.Date() }

// Time is a time of day.
func Time() *TypeSpec { return schema.Time() }

// Duration is a time span.
func Duration() *TypeSpec { return schema.Duration() }

// UUID is a universally unique identifier.
func UUID() *TypeSpec { return schema.UUID() }

// Email is an e-mail address.
func Email() *TypeSpec { return schema.Email() }

// URL is an absolute URL.
func URL() *TypeSpec { return schema.URL() }

// JSON is an arbitrary JSON document.
func JSON() *TypeSpec { return schema.JSON() }

// Bytes is a binary value.
func Bytes() *TypeSpec { return schema.Bytes() }

// Any accepts any value.
func Any() *TypeSpec { return schema.Any() }

// Enum is a string restricted to values.
func Enum(values ...string) *TypeSpec { return schema.Enum(values...) }

// Of is an annotation naming a declared model.
func Of(m *Model) *TypeSpec { return schema.Model(m) }

// Ref is a forward reference to a model by name, resolved through the
// registry when first needed.
func Ref(name string) *TypeSpec { return schema.Ref(name) }

// Optional marks t as accepting nil.
func Optional(t *TypeSpec) *TypeSpec { return schema.Optional(t) }

// List is a list of t.
func List(t *TypeSpec) *TypeSpec { return schema.List(t) }
