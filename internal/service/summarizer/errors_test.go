package summarizer

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestClassifyTypedErrorPassesThrough(t *testing.T) {
	original := NewError(KindRateLimit, "slow down")
	wrapped := fmt.Errorf("complete: %w", original)
	if got := Classify(wrapped); got.Kind != KindRateLimit {
		t.Fatalf("kind = %s, want RATE_LIMIT_EXCEEDED", got.Kind)
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got.Kind != KindTimeout {
		t.Fatalf("deadline: %s", got.Kind)
	}
	if got := Classify(context.Canceled); got.Kind != KindTimeout {
		t.Fatalf("canceled: %s", got.Kind)
	}
}

func TestClassifyNetErrors(t *testing.T) {
	if got := Classify(&fakeNetError{timeout: true}); got.Kind != KindTimeout {
		t.Fatalf("net timeout: %s", got.Kind)
	}
	if got := Classify(&fakeNetError{}); got.Kind != KindNetwork {
		t.Fatalf("net failure: %s", got.Kind)
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorKind
	}{
		{"request failed with status 429", KindRateLimit},
		{"request failed with status 401", KindAuth},
		{"request failed with status 403", KindAuth},
		{"request failed with status 408", KindTimeout},
		{"request failed with status 503", KindServiceUnavailable},
		{"request failed with status 400", KindMalformed},
		{"request failed with status 422", KindMalformed},
		{"upstream returned status code 503", KindServiceUnavailable},
		{"error code: 429 from provider", KindRateLimit},
		{"http 502 bad gateway", KindServiceUnavailable},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got.Kind != tc.want {
			t.Fatalf("%q: kind = %s, want %s", tc.msg, got.Kind, tc.want)
		}
	}
}

func TestClassifyIgnoresBareNumbers(t *testing.T) {
	// Numbers in the 4xx/5xx range without status wording are not HTTP codes.
	if got := Classify(errors.New("generation consumed 503 tokens")); got.Kind != KindUnknown {
		t.Fatalf("token count misread as status: %s", got.Kind)
	}
	if got := Classify(errors.New("transcript has 429 lines")); got.Kind != KindUnknown {
		t.Fatalf("line count misread as status: %s", got.Kind)
	}
	// Status wording still wins over weaker free-text matching.
	if got := Classify(errors.New("rate limit after status 503")); got.Kind != KindServiceUnavailable {
		t.Fatalf("kind = %s, want SERVICE_UNAVAILABLE", got.Kind)
	}
}

func TestClassifyProviderCodesAndFreeText(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorKind
	}{
		{"openai: rate_limit_exceeded for model", KindRateLimit},
		{"openai: insufficient_quota", KindRateLimit},
		{"invalid_api_key provided", KindAuth},
		{"gemini: permission_denied", KindAuth},
		{"invalid_request_error: max_tokens too large", KindMalformed},
		{"model is overloaded, try again later", KindServiceUnavailable},
		{"read tcp: connection reset by peer", KindNetwork},
		{"unexpected EOF", KindNetwork},
		{"request deadline exceeded while waiting", KindTimeout},
		{"something inexplicable happened", KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got.Kind != tc.want {
			t.Fatalf("%q: kind = %s, want %s", tc.msg, got.Kind, tc.want)
		}
	}
}

func TestRetryableSet(t *testing.T) {
	retryable := []ErrorKind{KindRateLimit, KindServiceUnavailable, KindTimeout, KindNetwork, KindEmptyResponse}
	for _, kind := range retryable {
		if !kind.Retryable() {
			t.Fatalf("%s should be retryable", kind)
		}
	}
	terminal := []ErrorKind{KindValidation, KindTranscript, KindAuth, KindMalformed, KindUnknown}
	for _, kind := range terminal {
		if kind.Retryable() {
			t.Fatalf("%s should not be retryable", kind)
		}
	}
}

func TestUserMessagesNeverLeakDetail(t *testing.T) {
	err := NewError(KindAuth, "api key sk-12345 rejected by upstream")
	msg := err.Kind.UserMessage()
	if msg == "" || msg == err.Message {
		t.Fatalf("user message should differ from internal detail: %q", msg)
	}
}

func TestKindOfUnwrapsChains(t *testing.T) {
	inner := NewError(KindServiceUnavailable, "down")
	chained := &RetriesExhaustedError{Attempts: 3, Last: inner}
	if got := KindOf(chained); got != KindServiceUnavailable {
		t.Fatalf("kind = %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("plain error kind = %s", got)
	}
}
