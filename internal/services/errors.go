package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/novelx/internal/shared"
)

// ConnectionLostMessage is shown for transport failures that carry no server detail.
const ConnectionLostMessage = "Connection lost. Check that the backend is reachable and try again."

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Detail     string // Server supplied detail, empty when the body had none
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps 404 onto [shared.ErrNotFound] and everything else onto [shared.ErrAPIRequest].
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return shared.ErrNotFound
	}
	return shared.ErrAPIRequest
}

// newAPIError parses the FastAPI error body.
//
// detail is either a string or a list of validation issues with a msg field.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		apiErr.Detail = strings.TrimSpace(detail)
		return apiErr
	}

	var issues []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if m := strings.TrimSpace(issue.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		apiErr.Detail = strings.Join(msgs, "; ")
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ValidationError is an input problem caught before any request is made.
type ValidationError struct {
	Message string
}

// NewValidationError returns a [ValidationError] with msg.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return shared.ErrInvalidInput }

// ErrorMessage flattens err into a display string.
//
// Server detail and validation messages are returned verbatim, transport failures get
// [ConnectionLostMessage], and anything else gets fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fallback
	}

	if errors.Is(err, shared.ErrConnection) || errors.Is(err, shared.ErrTimeout) {
		return ConnectionLostMessage
	}
	if errors.Is(err, context.Canceled) {
		return ""
	}
	return fallback
}
