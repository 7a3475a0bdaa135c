package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput                = "WHATSAPP_BAD_INPUT"
	ErrorConfigInvalid           = "WHATSAPP_CONFIG_INVALID"
	ErrorEndpointNotConfigured   = "WHATSAPP_ENDPOINT_NOT_CONFIGURED"
	ErrorNormalizerDefect        = "WHATSAPP_NORMALIZER_DEFECT"
	ErrorPipelineInvalid         = "WHATSAPP_PIPELINE_INVALID"
	ErrorSignatureInvalid        = "WHATSAPP_SIGNATURE_INVALID"
	ErrorVerificationFailed      = "WHATSAPP_VERIFICATION_FAILED"
	ErrorGraphRequestFailed      = "WHATSAPP_GRAPH_REQUEST_FAILED"
	ErrorDeliveryFailed          = "WHATSAPP_DELIVERY_FAILED"
	ErrorDeliveryCanceled        = "WHATSAPP_DELIVERY_CANCELED"
	ErrorDedupeRecordNotFound    = "WHATSAPP_DEDUPE_NOT_FOUND"
	ErrorInternal                = "WHATSAPP_INTERNAL_ERROR"
	ErrorRateLimitedByProvider   = "WHATSAPP_PROVIDER_RATE_LIMITED"
	ErrorUnauthorizedForProvider = "WHATSAPP_PROVIDER_UNAUTHORIZED"
)

// NewError builds a go-errors envelope with the status derived from category.
func NewError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapError wraps source keeping it reachable through errors.Is/As.
func WrapError(source error, category goerrors.Category, message string, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ConfigError(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryBadInput, ErrorConfigInvalid, metadata)
}

// IsConfigError reports errors that must fail fast and never be retried.
func IsConfigError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.TextCode {
	case ErrorConfigInvalid, ErrorEndpointNotConfigured, ErrorPipelineInvalid:
		return true
	}
	return false
}

// HasTextCode reports whether the nearest go-errors envelope carries textCode.
func HasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// IsCanceled reports a context cancellation or deadline anywhere in the chain.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// MapError converts arbitrary errors into a go-errors envelope with an HTTP
// status and a text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case IsCanceled(err):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryOperation).
			WithTextCode(ErrorDeliveryCanceled))
	case strings.Contains(msg, "endpoint") && strings.Contains(msg, "not configured"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).
			WithTextCode(ErrorEndpointNotConfigured))
	case strings.Contains(msg, "signature"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryAuth).
			WithTextCode(ErrorSignatureInvalid))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).
			WithTextCode(ErrorBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorDedupeRecordNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthorizedForProvider
	case goerrors.CategoryRateLimit:
		return ErrorRateLimitedByProvider
	case goerrors.CategoryExternal:
		return ErrorGraphRequestFailed
	case goerrors.CategoryOperation:
		return ErrorDeliveryFailed
	default:
		return ErrorInternal
	}
}

func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
