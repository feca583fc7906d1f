package llm

import (
	"fmt"
	"net/http"
)

// ErrorType classifies where a generation attempt failed.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeProvider: the configured provider could not be built.
	ErrorTypeProvider
	// ErrorTypeRequest: the request was not prepared or not delivered.
	ErrorTypeRequest
	// ErrorTypeResponse: the reply body was unreadable or malformed.
	ErrorTypeResponse
	// ErrorTypeAPI: the server answered with a non-200 status.
	ErrorTypeAPI
	// ErrorTypeRateLimit: waiting on the local limiter was cancelled.
	ErrorTypeRateLimit
	// ErrorTypeInvalidInput: the prompt was rejected before sending.
	ErrorTypeInvalidInput
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeProvider:     "provider",
	ErrorTypeRequest:      "request",
	ErrorTypeResponse:     "response",
	ErrorTypeAPI:          "api",
	ErrorTypeRateLimit:    "rate_limit",
	ErrorTypeInvalidInput: "invalid_input",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// LLMError is returned by Client.Generate for every failed attempt.
// StatusCode is set only for ErrorTypeAPI.
type LLMError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

// NewLLMError wraps cause, which may be nil, as an error of kind t.
func NewLLMError(t ErrorType, message string, cause error) *LLMError {
	return &LLMError{Type: t, Message: message, Err: cause}
}

func (e *LLMError) Error() string {
	msg := "llm " + e.Type.String() + " error: " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *LLMError) Unwrap() error { return e.Err }

// Retryable reports whether the client should try again. Provider
// construction and input errors are final; API errors are retried only
// for 429, 5xx or an unknown status.
func (e *LLMError) Retryable() bool {
	switch e.Type {
	case ErrorTypeInvalidInput, ErrorTypeProvider:
		return false
	case ErrorTypeAPI:
		return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	default:
		return true
	}
}

// LoggableFields returns key/value pairs for Logger calls.
func (e *LLMError) LoggableFields() []any {
	fields := []any{"error_type", e.Type.String(), "message", e.Message}
	if e.StatusCode != 0 {
		fields = append(fields, "status", e.StatusCode)
	}
	if e.Err != nil {
		fields = append(fields, "cause", e.Err.Error())
	}
	return fields
}
