package outbound

import (
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/ratelimit"
)

// GraphError is the error object returned by the Graph API.
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode,omitempty"`
	TraceID   string `json:"fbtrace_id"`
	Status    int    `json:"-"`
	Retryable bool   `json:"is_transient,omitempty"`
}

func (e *GraphError) Error() string {
	if e == nil {
		return "graph: <nil>"
	}
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = http.StatusText(e.Status)
	}
	if e.Subcode != 0 {
		return fmt.Sprintf("graph: %s (code %d, subcode %d, trace %s)", message, e.Code, e.Subcode, e.TraceID)
	}
	return fmt.Sprintf("graph: %s (code %d, trace %s)", message, e.Code, e.TraceID)
}

type errorResponse struct {
	Error *GraphError `json:"error"`
}

func endpointNotConfigured(endpointID string) error {
	return core.NewError(
		fmt.Sprintf("outbound: endpoint %q is not configured", endpointID),
		goerrors.CategoryBadInput,
		core.ErrorEndpointNotConfigured,
		map[string]any{"endpoint_id": endpointID},
	)
}

func outboundBadInput(message string, metadata map[string]any) error {
	return core.NewError(message, goerrors.CategoryBadInput, core.ErrorBadInput, metadata)
}

// graphFailure classifies a failed Graph call. Transport failures and 5xx
// responses stay retryable as CategoryExternal. Throttled responses carry the
// provider's retry hint in their metadata.
func graphFailure(source error, status int, headers http.Header, operation string, endpointID string) error {
	metadata := map[string]any{
		"operation":   operation,
		"endpoint_id": endpointID,
	}
	if status > 0 {
		metadata["status"] = status
	}
	errorCode := 0
	var graphErr *GraphError
	if goerrors.As(source, &graphErr) && graphErr != nil {
		errorCode = graphErr.Code
		metadata["graph_code"] = graphErr.Code
		if graphErr.Subcode != 0 {
			metadata["graph_subcode"] = graphErr.Subcode
		}
		if graphErr.TraceID != "" {
			metadata["fbtrace_id"] = graphErr.TraceID
		}
	}

	category := goerrors.CategoryExternal
	textCode := core.ErrorGraphRequestFailed
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		category = goerrors.CategoryAuth
		textCode = core.ErrorUnauthorizedForProvider
	}
	signal := ratelimit.Classify(ratelimit.Response{StatusCode: status, ErrorCode: errorCode, Headers: headers}, time.Now())
	if signal.Throttled() {
		category = goerrors.CategoryRateLimit
		textCode = core.ErrorRateLimitedByProvider
		maps.Copy(metadata, signal.Metadata())
	}
	return core.WrapError(source, category, "outbound: "+operation+" failed", textCode, metadata)
}
