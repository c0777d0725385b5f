package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypeString(t *testing.T) {
	cases := map[ErrorType]string{
		ErrorTypeRateLimited:    "rate_limited",
		ErrorTypeAuth:           "auth",
		ErrorTypeInvalidRequest: "invalid_request",
		ErrorTypeTimeout:        "timeout",
		ErrorTypeUpstream:       "upstream",
	}
	for et, want := range cases {
		if got := et.String(); got != want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", et, got, want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewErrorWithCause(ErrorTypeUpstream, cause, "network error")

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
}

func TestIsAndTypeOf(t *testing.T) {
	err := fmt.Errorf("call failed: %w", NewError(ErrorTypeRateLimited, "slow down"))

	if !Is(err, ErrorTypeRateLimited) {
		t.Error("Is should see through wrapping")
	}
	if TypeOf(err) != ErrorTypeRateLimited {
		t.Errorf("TypeOf = %v, want rate_limited", TypeOf(err))
	}
	if TypeOf(errors.New("mystery")) != ErrorTypeUpstream {
		t.Error("unclassified errors default to upstream")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := map[ErrorType]bool{
		ErrorTypeRateLimited:    true,
		ErrorTypeTimeout:        true,
		ErrorTypeUpstream:       true,
		ErrorTypeAuth:           false,
		ErrorTypeInvalidRequest: false,
	}
	for et, want := range cases {
		err := NewError(et, "x")
		if got := err.IsRetryable(); got != want {
			t.Errorf("IsRetryable(%s) = %v, want %v", et, got, want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorType
		ok     bool
	}{
		{401, ErrorTypeAuth, true},
		{403, ErrorTypeAuth, true},
		{429, ErrorTypeRateLimited, true},
		{400, ErrorTypeInvalidRequest, true},
		{504, ErrorTypeTimeout, true},
		{503, ErrorTypeUpstream, true},
		{302, 0, false},
	}
	for _, tc := range cases {
		got, ok := ClassifyStatus(tc.status)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ClassifyStatus(%d) = (%v, %v), want (%v, %v)", tc.status, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClassifyErr(t *testing.T) {
	if got := ClassifyErr(context.DeadlineExceeded); got != ErrorTypeTimeout {
		t.Errorf("deadline exceeded classified as %v", got)
	}
	if got := ClassifyErr(errors.New("quota exceeded for model")); got != ErrorTypeRateLimited {
		t.Errorf("quota message classified as %v", got)
	}
	if got := ClassifyErr(errors.New("invalid api key provided")); got != ErrorTypeAuth {
		t.Errorf("api key message classified as %v", got)
	}
	if got := ClassifyErr(errors.New("something odd")); got != ErrorTypeUpstream {
		t.Errorf("unknown message classified as %v", got)
	}
}

func TestExtractStatusCode(t *testing.T) {
	if got := ExtractStatusCode("request failed, status code: 429 too many requests"); got != 429 {
		t.Errorf("got %d, want 429", got)
	}
	if got := ExtractStatusCode("no status here"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestBodyStubTruncation(t *testing.T) {
	long := make([]byte, 2048)
	for i := range long {
		long[i] = 'x'
	}
	err := NewErrorWithStatus(ErrorTypeUpstream, 500, "server error", string(long))
	if len(err.Body) != maxBodyStub {
		t.Errorf("body stub length = %d, want %d", len(err.Body), maxBodyStub)
	}
}
