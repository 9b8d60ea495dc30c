package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Transport errors
	ErrConnection = fmt.Errorf("connection lost")
	ErrTimeout    = fmt.Errorf("operation timed out")
	ErrStream     = fmt.Errorf("stream failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrWorkNotFound       = fmt.Errorf("work not found")
	ErrChapterNotFound    = fmt.Errorf("chapter not found")
	ErrPromptNotAssigned  = fmt.Errorf("no prompt assigned")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotConfirmed    = fmt.Errorf("action not confirmed")
)
