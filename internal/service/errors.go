package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// ErrorType classifies pipeline failures. Backend types are per-unit:
// the failed unit is skipped and the run continues. Everything else
// would fail every following unit the same way and aborts the job.
type ErrorType string

const (
	ErrInput            ErrorType = "INPUT"
	ErrConfig           ErrorType = "CONFIG"
	ErrTool             ErrorType = "TOOL"
	ErrBackendAuth      ErrorType = "BACKEND_AUTH"
	ErrBackendRateLimit ErrorType = "BACKEND_RATE_LIMIT"
	ErrBackend          ErrorType = "BACKEND"
	ErrNoContent        ErrorType = "NO_CONTENT"
	ErrFileWrite        ErrorType = "FILE_WRITE"
	ErrUnknown          ErrorType = "UNKNOWN"
)

// PipelineError is a classified error with structured context.
type PipelineError struct {
	Type    ErrorType
	Message string
	Context map[string]interface{}
	Cause   error
}

func (e *PipelineError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Type, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(" | context: ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" | cause: %v", e.Cause))
	}
	return sb.String()
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func NewPipelineError(errType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WithContext attaches a key-value pair and returns the error for
// chaining.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WrapError wraps an underlying error with a classification.
func WrapError(err error, errType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Message: message,
		Context: make(map[string]interface{}),
		Cause:   err,
	}
}

// IsErrorType reports whether err carries the given classification
// anywhere in its chain.
func IsErrorType(err error, errType ErrorType) bool {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Type == errType
	}
	return false
}

// ErrorHandler reacts to a failed job.
type ErrorHandler interface {
	HandleError(err error)
}

// DefaultErrorHandler logs the failure together with a hint the user
// can act on.
type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() *DefaultErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) HandleError(err error) {
	if err == nil {
		return
	}

	var perr *PipelineError
	if errors.As(err, &perr) {
		log.Error("Pipeline error: %v", perr)
		if advice := GetAdvice(perr.Type); advice != "" {
			log.Info("Advice: %s", advice)
		}
		return
	}
	log.Error("Unexpected error: %v", err)
}

// GetAdvice returns a short human hint for an error class.
func GetAdvice(errType ErrorType) string {
	switch errType {
	case ErrInput:
		return "Check that the input file exists and has one of the supported audio extensions."
	case ErrConfig:
		return "Check the configuration, especially GROQ_API_KEY and the runtime settings."
	case ErrTool:
		return "Check that ffmpeg and yt-dlp are installed and on PATH."
	case ErrBackendAuth:
		return "The backend rejected the API key. Verify GROQ_API_KEY."
	case ErrBackendRateLimit:
		return "The backend is throttling requests. Wait a while or scan less often."
	case ErrBackend:
		return "The transcription backend failed. Retry the job later."
	case ErrNoContent:
		return "The backend returned no usable entries. The audio may be silent or every unit failed."
	case ErrFileWrite:
		return "Check permissions and free space for the output location."
	default:
		return "Check the logs for details."
	}
}

// SafeExecute runs fn and converts panics into errors so one bad job
// cannot take down a queue worker.
func SafeExecute(operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPipelineError(ErrUnknown,
				fmt.Sprintf("panic during %s", operation)).WithContext("panic", r)
		}
	}()
	return fn()
}
