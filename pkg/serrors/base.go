package serrors

import (
	"fmt"
	"sort"
	"strings"
)

// Base is a coded error shared across packages. Code is a stable machine-readable
// identifier, Message is for humans.
type Base struct {
	Code    string
	Message string
	Field   string
}

func NewError(code, message, field string) *Base {
	return &Base{Code: code, Message: message, Field: field}
}

func (e *Base) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationErrors maps a field name to the error describing it.
type ValidationErrors map[string]*Base

func (ve ValidationErrors) Error() string {
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, e.Error())
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Fields flattens the per-field messages for transport in an error envelope.
func (ve ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(ve))
	for field, e := range ve {
		out[field] = e.Message
	}
	return out
}
