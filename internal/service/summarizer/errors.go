package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ErrorKind is the stable machine code attached to every pipeline failure.
type ErrorKind string

const (
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindTranscript         ErrorKind = "TRANSCRIPT_ERROR"
	KindRateLimit          ErrorKind = "RATE_LIMIT_EXCEEDED"
	KindServiceUnavailable ErrorKind = "SERVICE_UNAVAILABLE"
	KindTimeout            ErrorKind = "TIMEOUT"
	KindNetwork            ErrorKind = "NETWORK_ERROR"
	KindAuth               ErrorKind = "AUTHENTICATION_ERROR"
	KindMalformed          ErrorKind = "MALFORMED_REQUEST"
	KindEmptyResponse      ErrorKind = "EMPTY_RESPONSE"
	KindUnknown            ErrorKind = "UNKNOWN"
)

// Retryable reports whether the orchestrator may spend further attempts on
// this kind. Empty responses sit in the transient bucket.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimit, KindServiceUnavailable, KindTimeout, KindNetwork, KindEmptyResponse:
		return true
	}
	return false
}

// UserMessage returns a user-safe summary distinct from internal detail.
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindValidation:
		return "The request could not be processed. Check the summary options and try again."
	case KindTranscript:
		return "The transcript is not ready for summarization."
	case KindRateLimit:
		return "The summarization service is receiving too many requests. Please try again shortly."
	case KindServiceUnavailable:
		return "The summarization service is temporarily unavailable. Please try again shortly."
	case KindTimeout:
		return "Summarization took too long and was stopped. Please try again."
	case KindNetwork:
		return "A network problem interrupted summarization. Please try again."
	case KindAuth:
		return "The service is not authorized to reach the summarization backend. Contact an administrator."
	case KindMalformed:
		return "The summarization request was rejected by the backend. Adjust the options and try again."
	case KindEmptyResponse:
		return "The model returned no content. Please try again."
	}
	return "Summarization failed unexpectedly. Please try again."
}

// PipelineError carries a taxonomy kind through the pipeline.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError builds a PipelineError without an underlying cause.
func NewError(kind ErrorKind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a taxonomy kind to an underlying error.
func WrapError(kind ErrorKind, err error, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind, defaulting to UNKNOWN.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// RetriesExhaustedError is the composite surfaced when the orchestrator gives
// up, naming the attempt count and the last underlying cause.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// statusCodePattern only fires next to status-like wording so bare numbers
// (token counts, line numbers) are not mistaken for HTTP codes.
var statusCodePattern = regexp.MustCompile(`(?:status(?: code)?|code|http)[ :=]+([45]\d\d)\b`)

// Classify maps an arbitrary completion-service error onto the taxonomy.
// Priority: transport status code, then provider error code, then message
// substring matching.
func Classify(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindTimeout, err, "completion deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return WrapError(KindTimeout, err, "completion canceled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return WrapError(KindTimeout, err, "completion request timed out")
		}
		return WrapError(KindNetwork, err, "completion transport failed")
	}

	msg := strings.ToLower(err.Error())

	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		return WrapError(classifyStatus(code), err, fmt.Sprintf("completion service returned %d", code))
	}

	// Provider error codes before free-text matching.
	switch {
	case strings.Contains(msg, "rate_limit") || strings.Contains(msg, "insufficient_quota"):
		return WrapError(KindRateLimit, err, "completion service rate limited")
	case strings.Contains(msg, "invalid_api_key") || strings.Contains(msg, "permission_denied"):
		return WrapError(KindAuth, err, "completion service rejected credentials")
	case strings.Contains(msg, "invalid_request_error"):
		return WrapError(KindMalformed, err, "completion request rejected")
	}

	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return WrapError(KindRateLimit, err, "completion service rate limited")
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "bad gateway"):
		return WrapError(KindServiceUnavailable, err, "completion service unavailable")
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return WrapError(KindTimeout, err, "completion request timed out")
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") || strings.Contains(msg, "eof"):
		return WrapError(KindNetwork, err, "completion transport failed")
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication") || strings.Contains(msg, "api key"):
		return WrapError(KindAuth, err, "completion service rejected credentials")
	}

	return WrapError(KindUnknown, err, "completion failed")
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == 429:
		return KindRateLimit
	case code == 401 || code == 403:
		return KindAuth
	case code == 408:
		return KindTimeout
	case code >= 500:
		return KindServiceUnavailable
	case code >= 400:
		return KindMalformed
	}
	return KindUnknown
}
