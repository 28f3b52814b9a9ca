package attrs

import "errors"

var (
	// ErrInvalidAttribute is returned when an attribute definition lacks a
	// name or a description, or names an unknown task type.
	ErrInvalidAttribute = errors.New("invalid attribute definition")
	// ErrInvalidConfig wraps every validation failure of a task Config.
	ErrInvalidConfig = errors.New("invalid task configuration")
	// ErrNotImplemented is returned by operations this task type does not support.
	ErrNotImplemented = errors.New("not implemented")
	// ErrMissingVariable is returned by strict template execution.
	ErrMissingVariable = errors.New("template variable not bound")
)

var (
	ErrEmptyResponse = errors.New("empty LLM response")
	ErrNotJSONObject = errors.New("LLM response is not a JSON object")
	ErrNoJSONObject  = errors.New("no JSON object found in LLM response")
	ErrCacheMiss     = errors.New("transform cache miss")
)

// ErrorType classifies a row-level labeling failure.
type ErrorType string

const (
	ErrorTypeInvalidLLMResponse ErrorType = "INVALID_LLM_RESPONSE_ERROR"
	ErrorTypeLLMProvider        ErrorType = "LLM_PROVIDER_ERROR"
)

// LabelingError is attached to an annotation instead of being returned, so a
// batch of N rows always yields N annotations.
type LabelingError struct {
	Type    ErrorType `json:"error_type"`
	Message string    `json:"error_message"`
}

func (e *LabelingError) Error() string { return string(e.Type) + ": " + e.Message }
