package ratelimit

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestClassify_RetryAfterThrottlesNumber(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	headers := http.Header{}
	headers.Set("Retry-After", "30")

	signal := Classify(Response{StatusCode: http.StatusTooManyRequests, Headers: headers}, now)
	if !signal.Throttled() || signal.Scope != ScopeNumber {
		t.Fatalf("expected number scope, got %+v", signal)
	}
	if signal.RetryAfter != 30*time.Second {
		t.Fatalf("expected retry-after hint, got %s", signal.RetryAfter)
	}
}

func TestClassify_RetryAfterDate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	headers := http.Header{}
	headers.Set("Retry-After", now.Add(90*time.Second).Format(http.TimeFormat))

	signal := Classify(Response{StatusCode: http.StatusTooManyRequests, Headers: headers}, now)
	if signal.RetryAfter != 90*time.Second {
		t.Fatalf("expected date hint, got %s", signal.RetryAfter)
	}
}

func TestClassify_PairLimitScope(t *testing.T) {
	signal := Classify(Response{StatusCode: http.StatusBadRequest, ErrorCode: CodePairRateLimit}, time.Now())
	if signal.Scope != ScopePair {
		t.Fatalf("expected pair scope, got %+v", signal)
	}
	if signal.RetryAfter != 0 {
		t.Fatalf("expected no hint without headers, got %s", signal.RetryAfter)
	}
	if _, ok := signal.Metadata()[MetadataRetryAfter]; ok {
		t.Fatalf("expected no retry metadata without hint")
	}
	if signal.Metadata()[MetadataScope] != "pair" {
		t.Fatalf("expected scope metadata, got %v", signal.Metadata())
	}
}

func TestClassify_UsageHeaderTakesLongestWindow(t *testing.T) {
	headers := http.Header{}
	headers.Set(UsageHeader, `{"102290129340398":[{"type":"whatsapp","call_count":100,"estimated_time_to_regain_access":2},{"type":"whatsapp","estimated_time_to_regain_access":5}]}`)

	signal := Classify(Response{StatusCode: http.StatusBadRequest, ErrorCode: CodeThroughputExceeded, Headers: headers}, time.Now())
	if signal.RetryAfter != 5*time.Minute {
		t.Fatalf("expected five minute window, got %s", signal.RetryAfter)
	}
}

func TestClassify_IgnoresHeadersWhenNotThrottled(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "30")

	signal := Classify(Response{StatusCode: http.StatusServiceUnavailable, Headers: headers}, time.Now())
	if signal.Throttled() || len(signal.Metadata()) != 0 {
		t.Fatalf("expected no throttle signal, got %+v", signal)
	}
}

func TestIsThrottled(t *testing.T) {
	cases := []struct {
		res  Response
		want bool
	}{
		{Response{StatusCode: http.StatusTooManyRequests}, true},
		{Response{StatusCode: http.StatusBadRequest, ErrorCode: CodeTooManyCalls}, true},
		{Response{StatusCode: http.StatusBadRequest, ErrorCode: CodeAccountRateLimit}, true},
		{Response{StatusCode: http.StatusBadRequest, ErrorCode: 100}, false},
		{Response{StatusCode: http.StatusBadGateway}, false},
		{Response{StatusCode: http.StatusOK}, false},
	}
	for _, tc := range cases {
		if got := IsThrottled(tc.res); got != tc.want {
			t.Fatalf("%+v: expected %v, got %v", tc.res, tc.want, got)
		}
	}
}

func TestRetryAfter_ReadsWrappedMetadata(t *testing.T) {
	signal := Signal{Scope: ScopeNumber, RetryAfter: 3 * time.Second}
	rich := goerrors.New("throttled", goerrors.CategoryRateLimit).WithMetadata(signal.Metadata())
	err := fmt.Errorf("handler: %w", rich)

	delay, ok := RetryAfter(err)
	if !ok || delay != 3*time.Second {
		t.Fatalf("expected 3s hint, got %s %v", delay, ok)
	}
}

func TestRetryAfter_MissingHint(t *testing.T) {
	if _, ok := RetryAfter(nil); ok {
		t.Fatalf("expected nil error to carry no hint")
	}
	if _, ok := RetryAfter(fmt.Errorf("plain")); ok {
		t.Fatalf("expected plain error to carry no hint")
	}
	if _, ok := RetryAfter(goerrors.New("no hint", goerrors.CategoryExternal)); ok {
		t.Fatalf("expected envelope without metadata to carry no hint")
	}
}
