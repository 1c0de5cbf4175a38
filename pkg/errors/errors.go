package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Error is the API error body. Status drives the HTTP response code and Err
// keeps the cause for logs without exposing it to clients.
type Error struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Status  int          `json:"status"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"`
}

// FieldError names one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is compares codes, so a Clone still matches its template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.Code == t.Code
}

func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a code, status and client message to cause.
func Wrap(cause error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: cause}
}

func Internal(cause error, message string) *Error {
	return Wrap(cause, ErrInternal.Code, ErrInternal.Status, message)
}

// Validation wraps cause as a 400. Struct validation failures are expanded
// into Fields.
func Validation(cause error, message string) *Error {
	e := Wrap(cause, ErrValidation.Code, ErrValidation.Status, message)
	var rejected validator.ValidationErrors
	if errors.As(cause, &rejected) {
		for _, fe := range rejected {
			e.Fields = append(e.Fields, FieldError{Field: snake(fe.Field()), Rule: fe.Tag(), Param: fe.Param()})
		}
	}
	return e
}

var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrScoreOutOfRange    = New("SCORE_OUT_OF_RANGE", http.StatusUnprocessableEntity, "score exceeds component maximum")
	ErrUnknownComponent   = New("UNKNOWN_EVALUATION_TYPE", http.StatusBadRequest, "unknown evaluation type")
	ErrNotCourseOwner     = New("NOT_COURSE_INSTRUCTOR", http.StatusForbidden, "instructor is not assigned to this course")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError returns the *Error in err's chain, or wraps err as internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err, ErrInternal.Message)
}

// Clone copies tmpl, replacing its message when one is given.
func Clone(tmpl *Error, message string) *Error {
	if tmpl == nil {
		return nil
	}
	c := *tmpl
	if message != "" {
		c.Message = message
	}
	return &c
}

// Clonef is Clone with a formatted message.
func Clonef(tmpl *Error, format string, args ...interface{}) *Error {
	return Clone(tmpl, fmt.Sprintf(format, args...))
}

// snake turns a Go field name into its JSON spelling: CourseID -> course_id.
func snake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
