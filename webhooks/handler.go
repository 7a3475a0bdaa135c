package webhooks

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/delivery"
)

const DefaultMaxBodyBytes int64 = 4 << 20

// Receiver accepts a raw webhook document. *delivery.Coordinator implements it.
type Receiver interface {
	Receive(ctx context.Context, raw []byte) (delivery.ReceiveResult, error)
}

type Config struct {
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 checks when set.
	AppSecret    string
	MaxBodyBytes int64
}

type Option func(*Handler)

func WithVerifier(verifier Verifier) Option {
	return func(h *Handler) {
		if h != nil {
			h.verifier = verifier
		}
	}
}

func WithLogger(provider core.LoggerProvider, logger core.Logger) Option {
	return func(h *Handler) {
		if h != nil {
			h.observer = core.NewObserver("whatsapp.webhooks", provider, logger, h.observer.Metrics)
		}
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(h *Handler) {
		if h != nil && metrics != nil {
			h.observer.Metrics = metrics
		}
	}
}

type Handler struct {
	receiver     Receiver
	verifyToken  string
	verifier     Verifier
	maxBodyBytes int64
	observer     core.Observer
}

func NewHandler(receiver Receiver, cfg Config, opts ...Option) (*Handler, error) {
	if receiver == nil {
		return nil, core.ConfigError("webhooks: receiver is required", nil)
	}
	token := strings.TrimSpace(cfg.VerifyToken)
	if token == "" {
		return nil, core.ConfigError("webhooks: verify token is required", nil)
	}
	handler := &Handler{
		receiver:     receiver,
		verifyToken:  token,
		maxBodyBytes: cfg.MaxBodyBytes,
		observer:     core.NewObserver("whatsapp.webhooks", nil, nil, nil),
	}
	if handler.maxBodyBytes <= 0 {
		handler.maxBodyBytes = DefaultMaxBodyBytes
	}
	if secret := strings.TrimSpace(cfg.AppSecret); secret != "" {
		handler.verifier = NewAppSecretVerifier(secret)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveVerification(w, r)
	case http.MethodPost:
		h.serveNotification(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// Verify answers the subscription handshake, returning the challenge to echo.
func (h *Handler) Verify(query url.Values) (string, error) {
	mode := strings.TrimSpace(query.Get("hub.mode"))
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")
	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		return "", core.NewError("webhooks: verification failed", goerrors.CategoryBadInput, core.ErrorVerificationFailed, map[string]any{
			"mode": mode,
		})
	}
	if strings.TrimSpace(challenge) == "" {
		return "", core.NewError("webhooks: verification challenge is required", goerrors.CategoryBadInput, core.ErrorVerificationFailed, nil)
	}
	return challenge, nil
}

func (h *Handler) serveVerification(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.Verify(r.URL.Query())
	if err != nil {
		h.observer.Log(r.Context(), "warn", "webhooks: verification rejected", map[string]any{"error": err.Error()})
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

func (h *Handler) serveNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startedAt := time.Now()
	fields := map[string]any{}
	var err error
	defer func() {
		h.observer.Observe(ctx, startedAt, "webhooks.receive", err, fields)
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		if err = h.verifier.Verify(ctx, r.Header, body); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	var result delivery.ReceiveResult
	result, err = h.receiver.Receive(ctx, body)
	if err != nil {
		mapped := core.MapError(err)
		fields["text_code"] = mapped.TextCode
		http.Error(w, mapped.TextCode, http.StatusInternalServerError)
		return
	}
	fields["outcome"] = string(result.Outcome)
	if result.Event != nil {
		for key, value := range core.EventFields(result.Event) {
			fields[key] = value
		}
	}
	w.WriteHeader(http.StatusOK)
}

var _ http.Handler = (*Handler)(nil)
