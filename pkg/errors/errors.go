// Package errors provides structured error handling for neuromem
package errors

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/cortexkit/neuromem/pkg/types"
)

// ErrorCode represents specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"

	// Resource errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// System errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeTimeout  ErrorCode = "TIMEOUT"

	// Memory errors
	ErrCodeMemoryError    ErrorCode = "MEMORY_ERROR"
	ErrCodeMemoryNotFound ErrorCode = "MEMORY_NOT_FOUND"
	ErrCodeMemoryFull     ErrorCode = "MEMORY_FULL"

	// Storage errors
	ErrCodeStorageError   ErrorCode = "STORAGE_ERROR"
	ErrCodeQuotaExceeded  ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeFileError      ErrorCode = "FILE_ERROR"
	ErrCodeFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	ErrCodeFileCorrupted  ErrorCode = "FILE_CORRUPTED"

	// Gateway errors
	ErrCodeEmbeddingError ErrorCode = "EMBEDDING_ERROR"
	ErrCodeLLMError       ErrorCode = "LLM_ERROR"
	ErrCodeLLMTimeout     ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMAPIError    ErrorCode = "LLM_API_ERROR"

	// Graph errors
	ErrCodeGraphError ErrorCode = "GRAPH_ERROR"

	// Configuration errors
	ErrCodeConfigError    ErrorCode = "CONFIG_ERROR"
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
)

// NeuromemError represents a structured error in neuromem
type NeuromemError struct {
	Type       types.ErrorType        `json:"type"`
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *NeuromemError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *NeuromemError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *NeuromemError) WithDetail(key string, value interface{}) *NeuromemError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID adds a request ID to the error
func (e *NeuromemError) WithRequestID(requestID string) *NeuromemError {
	e.RequestID = requestID
	return e
}

// WithStackTrace adds a stack trace to the error
func (e *NeuromemError) WithStackTrace() *NeuromemError {
	e.StackTrace = getStackTrace()
	return e
}

// ToTypes converts to types.NeuromemError
func (e *NeuromemError) ToTypes() *types.NeuromemError {
	return &types.NeuromemError{
		Type:    e.Type,
		Message: e.Message,
		Code:    string(e.Code),
		Details: e.Details,
	}
}

// NewNeuromemError creates a new neuromem error
func NewNeuromemError(errType types.ErrorType, code ErrorCode, message string) *NeuromemError {
	return &NeuromemError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewNeuromemErrorWithCause creates a new neuromem error with a cause
func NewNeuromemErrorWithCause(errType types.ErrorType, code ErrorCode, message string, cause error) *NeuromemError {
	return &NeuromemError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation error constructors
func NewValidationError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeValidation, ErrCodeValidation, message)
}

func NewInvalidInputError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeValidation, ErrCodeInvalidInput, message)
}

func NewMissingFieldError(field string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeValidation, ErrCodeMissingField,
		fmt.Sprintf("missing required field: %s", field)).WithDetail("field", field)
}

// Resource error constructors
func NewNotFoundError(resource string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeNotFound, ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource)).WithDetail("resource", resource)
}

// System error constructors
func NewInternalError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeInternal, message)
}

func NewInternalErrorWithCause(message string, cause error) *NeuromemError {
	return NewNeuromemErrorWithCause(types.ErrorTypeInternal, ErrCodeInternal, message, cause)
}

func NewTimeoutError(operation string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeTimeout,
		fmt.Sprintf("%s operation timed out", operation)).WithDetail("operation", operation)
}

// Memory error constructors
func NewMemoryError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeMemoryError, message)
}

func NewMemoryNotFoundError(memoryID string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeNotFound, ErrCodeMemoryNotFound,
		fmt.Sprintf("memory not found: %s", memoryID)).WithDetail("memory_id", memoryID)
}

func NewMemoryFullError(storeName string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeMemoryFull,
		fmt.Sprintf("memory store full: %s", storeName)).WithDetail("store", storeName)
}

// Storage error constructors
func NewStorageError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeStorageError, message)
}

func NewStorageErrorWithCause(message string, cause error) *NeuromemError {
	return NewNeuromemErrorWithCause(types.ErrorTypeInternal, ErrCodeStorageError, message, cause)
}

func NewQuotaExceededError(sizeBytes, quotaBytes int64) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeQuotaExceeded,
		fmt.Sprintf("serialized size %d exceeds quota %d", sizeBytes, quotaBytes)).
		WithDetail("size_bytes", sizeBytes).WithDetail("quota_bytes", quotaBytes)
}

func NewFileError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeFileError, message)
}

func NewFileNotFoundError(filePath string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeNotFound, ErrCodeFileNotFound,
		fmt.Sprintf("file not found: %s", filePath)).WithDetail("file_path", filePath)
}

func NewFileCorruptedError(filePath string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeInternal, ErrCodeFileCorrupted,
		fmt.Sprintf("file corrupted: %s", filePath)).WithDetail("file_path", filePath)
}

// Gateway error constructors
func NewEmbeddingError(message string, cause error) *NeuromemError {
	return NewNeuromemErrorWithCause(types.ErrorTypeExternal, ErrCodeEmbeddingError, message, cause)
}

func NewLLMError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeExternal, ErrCodeLLMError, message)
}

func NewLLMTimeoutError(model string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeExternal, ErrCodeLLMTimeout,
		fmt.Sprintf("LLM request timed out: %s", model)).WithDetail("model", model)
}

func NewLLMAPIError(message string, cause error) *NeuromemError {
	return NewNeuromemErrorWithCause(types.ErrorTypeExternal, ErrCodeLLMAPIError, message, cause)
}

// Graph error constructors
func NewGraphError(message string, cause error) *NeuromemError {
	return NewNeuromemErrorWithCause(types.ErrorTypeInternal, ErrCodeGraphError, message, cause)
}

// Configuration error constructors
func NewConfigError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeValidation, ErrCodeConfigError, message)
}

func NewConfigNotFoundError(configPath string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeNotFound, ErrCodeConfigNotFound,
		fmt.Sprintf("configuration file not found: %s", configPath)).WithDetail("config_path", configPath)
}

func NewConfigInvalidError(message string) *NeuromemError {
	return NewNeuromemError(types.ErrorTypeValidation, ErrCodeConfigInvalid, message)
}

// Helper functions
func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var trace strings.Builder
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		trace.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
	}

	return trace.String()
}

// IsNeuromemError checks if an error is a NeuromemError
func IsNeuromemError(err error) bool {
	_, ok := err.(*NeuromemError)
	return ok
}

// GetNeuromemError extracts a NeuromemError from an error
func GetNeuromemError(err error) *NeuromemError {
	if nmErr, ok := err.(*NeuromemError); ok {
		return nmErr
	}
	return nil
}

// WrapError wraps an error as a NeuromemError
func WrapError(err error, errType types.ErrorType, code ErrorCode, message string) *NeuromemError {
	return NewNeuromemErrorWithCause(errType, code, message, err)
}

// ErrorList represents a list of errors
type ErrorList struct {
	Errors []*NeuromemError `json:"errors"`
}

// Error implements the error interface
func (el *ErrorList) Error() string {
	var messages []string
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Add adds an error to the list
func (el *ErrorList) Add(err *NeuromemError) {
	el.Errors = append(el.Errors, err)
}

// HasErrors returns true if there are errors
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// ToError returns the ErrorList as an error if it has errors, otherwise nil
func (el *ErrorList) ToError() error {
	if el.HasErrors() {
		return el
	}
	return nil
}

// NewErrorList creates a new error list
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*NeuromemError, 0),
	}
}
