package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	SignaturePrefix = "sha256="
)

type Verifier interface {
	Verify(ctx context.Context, headers http.Header, body []byte) error
}

// HeaderHMACVerifier checks an HMAC-SHA256 of the body carried in Header.
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

// NewAppSecretVerifier verifies Meta's X-Hub-Signature-256 header.
func NewAppSecretVerifier(secret string) HeaderHMACVerifier {
	return HeaderHMACVerifier{
		Header:   SignatureHeader,
		Prefix:   SignaturePrefix,
		Secret:   strings.TrimSpace(secret),
		Encoding: "hex",
	}
}

func (v HeaderHMACVerifier) Verify(_ context.Context, headers http.Header, body []byte) error {
	header := strings.TrimSpace(headers.Get(v.Header))
	if header == "" {
		return signatureError(fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header)))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.ConfigError("webhooks: signature secret is required", nil)
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return signatureError(fmt.Errorf("webhooks: signature value is required"))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := mac.Sum(nil)

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return signatureError(fmt.Errorf("webhooks: decode signature: %w", err))
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return signatureError(fmt.Errorf("webhooks: signature verification failed"))
	}
	return nil
}

// Sign renders the header value a provider would send for body.
func (v HeaderHMACVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(v.Secret)))
	_, _ = mac.Write(body)
	sum := mac.Sum(nil)
	if strings.EqualFold(strings.TrimSpace(v.Encoding), "base64") {
		return v.Prefix + base64.StdEncoding.EncodeToString(sum)
	}
	return v.Prefix + hex.EncodeToString(sum)
}

func signatureError(source error) error {
	return core.WrapError(source, goerrors.CategoryAuth, "webhooks: invalid signature", core.ErrorSignatureInvalid, nil)
}

var _ Verifier = HeaderHMACVerifier{}
