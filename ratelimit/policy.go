// Package ratelimit classifies Graph API throttling responses and extracts the
// provider's retry hint so failed deliveries can be rescheduled accordingly.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/tidwall/gjson"
)

// Graph error codes that mean the caller is being throttled.
const (
	CodeTooManyCalls       = 4
	CodeAccountRateLimit   = 80007
	CodeThroughputExceeded = 130429
	CodePairRateLimit      = 131056

	UsageHeader = "X-Business-Use-Case-Usage"

	MetadataRetryAfter = "retry_after_ms"
	MetadataScope      = "throttle_scope"
)

// Scope names what a throttling response applies to.
type Scope string

const (
	ScopeNone Scope = ""

	// ScopeNumber throttles every send from the business number.
	ScopeNumber Scope = "number"

	// ScopePair throttles sends from the business number to one recipient.
	ScopePair Scope = "pair"
)

// Response is what the classifier needs to know about a finished Graph call.
type Response struct {
	StatusCode int
	ErrorCode  int
	Headers    http.Header
}

// Signal is the classification of a Graph response.
type Signal struct {
	Scope      Scope
	RetryAfter time.Duration
}

func (s Signal) Throttled() bool {
	return s.Scope != ScopeNone
}

// Metadata returns the error metadata describing the signal. It is empty for
// responses that were not throttled.
func (s Signal) Metadata() map[string]any {
	if !s.Throttled() {
		return map[string]any{}
	}
	out := map[string]any{MetadataScope: string(s.Scope)}
	if s.RetryAfter > 0 {
		out[MetadataRetryAfter] = s.RetryAfter.Milliseconds()
	}
	return out
}

// Classify inspects a Graph response. The retry hint comes from Retry-After,
// then the business use case usage header.
func Classify(res Response, now time.Time) Signal {
	if !IsThrottled(res) {
		return Signal{}
	}
	scope := ScopeNumber
	if res.ErrorCode == CodePairRateLimit {
		scope = ScopePair
	}
	return Signal{Scope: scope, RetryAfter: retryHint(res.Headers, now)}
}

// IsThrottled reports whether a Graph response is a throttling signal.
func IsThrottled(res Response) bool {
	if res.StatusCode == http.StatusTooManyRequests {
		return true
	}
	switch res.ErrorCode {
	case CodeTooManyCalls, CodeAccountRateLimit, CodeThroughputExceeded, CodePairRateLimit:
		return true
	}
	return false
}

// RetryAfter returns the retry hint carried by the nearest go-errors envelope
// in err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || rich == nil {
		return 0, false
	}
	var ms int64
	switch value := rich.Metadata[MetadataRetryAfter].(type) {
	case int64:
		ms = value
	case int:
		ms = int64(value)
	case float64:
		ms = int64(value)
	default:
		return 0, false
	}
	if ms <= 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func retryHint(headers http.Header, now time.Time) time.Duration {
	if raw := strings.TrimSpace(headers.Get("Retry-After")); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if retryAt, err := http.ParseTime(raw); err == nil && retryAt.After(now) {
			return retryAt.Sub(now)
		}
	}
	if minutes := regainAccessMinutes(headers.Get(UsageHeader)); minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return 0
}

// regainAccessMinutes reads the largest estimated_time_to_regain_access
// across the business ids in a usage header document.
func regainAccessMinutes(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || !gjson.Valid(raw) {
		return 0
	}
	var longest int64
	gjson.Parse(raw).ForEach(func(_, entries gjson.Result) bool {
		entries.ForEach(func(_, entry gjson.Result) bool {
			longest = max(longest, entry.Get("estimated_time_to_regain_access").Int())
			return true
		})
		return true
	})
	return longest
}
