// Package apierror defines the single error shape that every backend,
// processor, and local failure is normalized into before it reaches a page
// or the terminal.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/mohsenfayyazi/billder/validation"
)

type Kind string

const (
	KindAuth        Kind = "auth"
	KindValidation  Kind = "validation"
	KindNetwork     Kind = "network"
	KindProcessor   Kind = "processor"
	KindServer      Kind = "server"
	KindRateLimited Kind = "rate_limited"
	KindUnknown     Kind = "unknown"
)

const (
	MsgNetwork      = "Network error. Please check your connection and try again."
	MsgServer       = "Server error occurred"
	MsgUnknown      = "An unexpected error occurred"
	MsgAuthRequired = "Please log in to continue."
	MsgAuthExpired  = "Your session has expired. Please log in again."
)

// Error is the tagged error consumed by views and commands.
type Error struct {
	Kind       Kind
	Message    string
	Status     int
	Code       string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message, Status: http.StatusUnauthorized}
}

// Processor wraps a mapped payment processor failure.
func Processor(code, message string, cause error) *Error {
	return &Error{Kind: KindProcessor, Code: code, Message: message, Err: cause}
}

// RateLimited reports a locally rejected request.
func RateLimited(wait time.Duration) *Error {
	secs := int((wait + time.Second - 1) / time.Second)
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("Too many requests. Please wait %d seconds and try again.", secs),
		Status:     http.StatusTooManyRequests,
		RetryAfter: wait,
	}
}

// FromResponse builds the error for a non-2xx backend response. The
// backend's own message is used verbatim when the body carries one.
func FromResponse(status int, body []byte) *Error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Code    string `json:"code"`
	}
	_ = json.Unmarshal(body, &payload)

	message := firstNonEmpty(payload.Error, payload.Message, payload.Detail, fieldMessage(body))
	if status == http.StatusUnauthorized {
		if message == "" {
			message = MsgAuthExpired
		}
		return &Error{Kind: KindAuth, Message: message, Status: status, Code: payload.Code}
	}
	if message == "" {
		message = MsgServer
	}
	return &Error{Kind: KindServer, Message: message, Status: status, Code: payload.Code}
}

// Normalize converts any error into an *Error. Nil stays nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var fieldErr *validation.FieldError
	if errors.As(err, &fieldErr) {
		return &Error{Kind: KindValidation, Message: fieldErr.Problems[0], Code: fieldErr.Field, Err: err}
	}
	if isNetwork(err) {
		return &Error{Kind: KindNetwork, Message: MsgNetwork, Code: "NETWORK_ERROR", Err: err}
	}
	msg := err.Error()
	if msg == "" {
		msg = MsgUnknown
	}
	return &Error{Kind: KindUnknown, Message: msg, Code: "UNKNOWN_ERROR", Err: err}
}

// KindOf returns the normalized kind of err.
func KindOf(err error) Kind {
	if e := Normalize(err); e != nil {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message is the user-facing text for err.
func Message(err error) string {
	if e := Normalize(err); e != nil {
		return e.Message
	}
	return ""
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// fieldMessage reads a {"field": ["problem", ...]} validation body.
func fieldMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var problems []string
		if err := json.Unmarshal(fields[k], &problems); err != nil || len(problems) == 0 {
			continue
		}
		if k == "non_field_errors" {
			return problems[0]
		}
		return k + ": " + problems[0]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
