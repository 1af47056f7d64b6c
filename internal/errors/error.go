package errors

import "fmt"

// Category represents the type of error.
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryCodec      Category = "codec"
	CategoryStorage    Category = "storage"
	CategoryFetch      Category = "fetch"
	CategoryValidation Category = "validation"
	CategoryBridge     Category = "bridge"
	CategoryCLI        Category = "cli"
)

// SiftError is a structured error with a stable code, a category and an
// optional fix suggestion.
type SiftError struct {
	// Code is a unique error identifier (e.g., "E003").
	Code string

	// Category is the error type (config, codec, storage, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *SiftError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *SiftError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *SiftError) WithSuggestion(s string) *SiftError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *SiftError) WithDetail(d string) *SiftError {
	e.Detail = d
	return e
}

// WithMessagef replaces the template message with a formatted one.
// The code and category are kept.
func (e *SiftError) WithMessagef(format string, args ...any) *SiftError {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *SiftError) Wrap(err error) *SiftError {
	e.Wrapped = err
	return e
}

// New creates a SiftError from a registered error code.
func New(code string) *SiftError {
	template, ok := registry[code]
	if !ok {
		return &SiftError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &SiftError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new SiftError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *SiftError {
	return &SiftError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a SiftError.
func FromError(err error, code string) *SiftError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SiftError); ok {
		return se
	}
	return New(code).Wrap(err)
}

// CodeOf returns the sift error code carried by err, or "" when err is not
// a coded error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := err.(*SiftError); ok {
		return se.Code
	}
	return ""
}
