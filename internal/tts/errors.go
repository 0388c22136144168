package tts

import (
	"errors"
	"fmt"
)

// Common TTS errors
var (
	// ErrEmptyInput indicates the text was empty after cleaning. Callers treat
	// it as a terminal state and answer with the silent placeholder.
	ErrEmptyInput = errors.New("text is empty after cleaning")

	// ErrEmptyAssemblyInput indicates there were no payloads to merge
	ErrEmptyAssemblyInput = errors.New("no audio payloads to concatenate")

	// ErrParameterMismatch indicates fragments disagree on channels, sample width or frame rate
	ErrParameterMismatch = errors.New("audio parameters differ between fragments")

	// ErrSynthesisFailed indicates a synthesis call failed
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrInvalidInput indicates bad arguments to a TTS operation
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoEngineConfigured indicates no TTS engine has been selected
	ErrNoEngineConfigured = errors.New("no TTS engine configured - specify --engine sarvam or --engine mock")

	// ErrEngineNotAvailable indicates the selected engine is not available
	ErrEngineNotAvailable = errors.New("selected TTS engine is not available")

	// ErrInvalidEngine indicates an unknown engine was specified
	ErrInvalidEngine = errors.New("invalid TTS engine specified")
)

// TTSError represents a TTS-specific error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel error belonging to e's code.
func (e *TTSError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && target == sentinel
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Input errors
	ErrorCodeEmptyInput   ErrorCode = "EMPTY_INPUT"
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Engine errors
	ErrorCodeSynthesisFailed   ErrorCode = "SYNTHESIS_FAILED"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// Audio errors
	ErrorCodeEmptyAssemblyInput ErrorCode = "EMPTY_ASSEMBLY_INPUT"
	ErrorCodeParameterMismatch  ErrorCode = "PARAMETER_MISMATCH"
	ErrorCodeAudioFormat        ErrorCode = "AUDIO_FORMAT"

	// System errors
	ErrorCodeTimeout  ErrorCode = "TIMEOUT"
	ErrorCodeCanceled ErrorCode = "CANCELED"
)

var codeSentinels = map[ErrorCode]error{
	ErrorCodeEmptyInput:         ErrEmptyInput,
	ErrorCodeInvalidInput:       ErrInvalidInput,
	ErrorCodeSynthesisFailed:    ErrSynthesisFailed,
	ErrorCodeEngineUnavailable:  ErrEngineNotAvailable,
	ErrorCodeEmptyAssemblyInput: ErrEmptyAssemblyInput,
	ErrorCodeParameterMismatch:  ErrParameterMismatch,
}

// NewTTSError creates a new TTS error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsFatal returns true if the error must abort the whole request.
// Only the empty-input terminal state is recoverable.
func (e *TTSError) IsFatal() bool {
	return e.Code != ErrorCodeEmptyInput
}

// CodeOf returns the ErrorCode carried by err, or "" when err is not a TTSError.
func CodeOf(err error) ErrorCode {
	var ttsErr *TTSError
	if errors.As(err, &ttsErr) {
		return ttsErr.Code
	}
	return ""
}
