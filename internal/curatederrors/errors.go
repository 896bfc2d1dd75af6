// Package curatederrors classifies the errors this engine's pipeline can
// produce into a small, closed set of categories (ParseError, IoError,
// MismatchError, MissingCfiError) so that a caller several layers up -
// the CLI deciding an exit code, a worker deciding whether a collect
// failure is fatal to the whole run - can branch on what kind of error it
// is seeing without either package importing the other's types.
package curatederrors

import (
	"fmt"
	"strings"
)

// Category is a printf-style format string naming one kind of error. Two
// curated errors are the same kind iff they share a Category, regardless
// of the values formatted into them.
type Category string

type curated struct {
	category Category
	args     []interface{}
	cause    error // the one value among args that is itself an error, if any
}

// Errorf creates a new curated error of the given category. category's
// verbs are filled in from args exactly as fmt.Errorf would; if one of
// args is itself an error it becomes this error's cause, which Has and
// Unwrap both see through.
func Errorf(category Category, args ...interface{}) error {
	c := curated{category: category, args: args}
	for _, a := range args {
		if err, ok := a.(error); ok {
			c.cause = err
			break
		}
	}
	return c
}

// Error renders the category against its args. When the cause's own
// message is duplicated verbatim at the end of the rendered text - which
// happens when a lower stage's curated error is passed straight through
// as the sole %v of an outer one with no added detail - the duplicate
// prefix is dropped so the chain doesn't read "stage failed: stage
// failed: reason" twice.
func (c curated) Error() string {
	s := fmt.Sprintf(string(c.category), c.args...)
	if c.cause == nil {
		return s
	}
	causeMsg := c.cause.Error()
	if prefix, ok := strings.CutSuffix(s, causeMsg); ok && prefix == causeMsg+": " {
		return causeMsg
	}
	return s
}

// Unwrap exposes this error's cause (if any) to the standard library, so
// errors.Is and errors.As work against a curated error the same way they
// would against any other wrapped error.
func (c curated) Unwrap() error {
	return c.cause
}

// IsAny reports whether err is a curated error, of any category.
func IsAny(err error) bool {
	_, ok := err.(curated)
	return ok
}

// Is reports whether err is, specifically, a curated error of category -
// it does not look past err into whatever it might wrap. Use Has to
// search a chain.
func Is(err error, category Category) bool {
	c, ok := err.(curated)
	return ok && c.category == category
}

// Has reports whether category appears anywhere in err's causal chain:
// err itself, or the error it wraps, or the error that wraps, and so on.
func Has(err error, category Category) bool {
	c, ok := err.(curated)
	if !ok {
		return false
	}
	if c.category == category {
		return true
	}
	if c.cause == nil {
		return false
	}
	return Has(c.cause, category)
}
