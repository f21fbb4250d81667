// Package backend is the typed client for the MediHope REST API.
//
// Collection reads never fail: any transport problem or application-level
// rejection degrades to an empty collection and a logged warning. Single
// record reads and writes report rejections through their result and
// transport problems through an error. Nothing is retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/observability/metrics"
	"github.com/medihope/portal/internal/observability/tracing"
	"github.com/medihope/portal/pkg/circuitbreaker"
)

// Endpoint paths, relative to the base URL.
const (
	PathMedicines    = "/medicine/fetch"
	PathDonors       = "/donor/fetch"
	PathDonorSave    = "/donor/save"
	PathDonorUpdate  = "/donor/update"
	PathNeedyAll     = "/needy/getall"
	PathNeedy        = "/needy/fetch"
	PathNeedySave    = "/needy/save"
	PathNeedyUpdate  = "/needy/update"
	PathAadhaarFront = "/needy/aadhaar"
	PathAadhaarBack  = "/needy/aadhaarback"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// ErrUnexpectedStatus matches every StatusError.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %s: %d", ErrUnexpectedStatus, e.Method, e.Path, e.Code)
}

// Is makes errors.Is(err, ErrUnexpectedStatus) hold.
func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// backendFault reports whether err says the backend is unwell. Client
// errors and callers that went away do not count against it.
func backendFault(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return true
}

// Config holds client configuration
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:2004
	BaseURL string
	// HTTPClient defaults to a client without a timeout
	HTTPClient *http.Client
	// Breaker defaults to one named after the backend host
	Breaker *circuitbreaker.CircuitBreaker
	// Metrics may be nil
	Metrics *metrics.Metrics
}

// Client calls the MediHope backend
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New creates a backend client
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	breaker := cfg.Breaker
	if breaker == nil {
		bcfg := circuitbreaker.DefaultConfig("backend:" + base.Host)
		bcfg.IsFailure = backendFault
		bcfg.OnStateChange = func(name string, to circuitbreaker.State) {
			cfg.Metrics.SetBreakerState(name, string(to))
		}
		breaker, err = circuitbreaker.New(bcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create circuit breaker: %w", err)
		}
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		breaker: breaker,
		metrics: cfg.Metrics,
		logger:  logger,
		tracer:  tracing.Tracer("backend"),
	}, nil
}

// Breaker exposes the client's circuit breaker for readiness checks
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker { return c.breaker }

// envelope is the wrapper every backend response uses.
type envelope struct {
	Status  bool            `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Obj     json.RawMessage `json:"obj,omitempty"`
	Msg     string          `json:"msg,omitempty"`
	Address string          `json:"address,omitempty"`
	Debug   json.RawMessage `json:"debug,omitempty"`
}

// request describes one backend call.
type request struct {
	endpoint    string
	method      string
	path        string
	body        []byte
	contentType string
}

// do issues a single request through the breaker and decodes the envelope.
// A status:false envelope is returned without error.
func (c *Client) do(ctx context.Context, req request) (*envelope, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+req.endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("backend.endpoint", req.endpoint),
		))
	defer span.End()

	start := time.Now()
	env, err := circuitbreaker.Do(ctx, c.breaker, func(ctx context.Context) (*envelope, error) {
		return c.roundTrip(ctx, req)
	})

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			outcome = "circuit_open"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		if !env.Status {
			outcome = "rejected"
		}
		span.SetAttributes(attribute.Bool("backend.status", env.Status))
	}
	c.metrics.ObserveBackend(req.endpoint, outcome, time.Since(start))

	if err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Client) roundTrip(ctx context.Context, req request) (*envelope, error) {
	// req.path is already escaped
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + req.path
	p, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, fmt.Errorf("build request path: %w", err)
	}
	u.Path = p

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: req.method, Path: req.path, Code: resp.StatusCode}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", req.path, err)
	}
	return &env, nil
}

// get issues a GET for path.
func (c *Client) get(ctx context.Context, endpoint, path string) (*envelope, error) {
	return c.do(ctx, request{endpoint: endpoint, method: http.MethodGet, path: path})
}

// fetchList reads a collection. Every failure degrades to an empty slice.
func fetchList[T any](ctx context.Context, c *Client, endpoint string, pick func(*envelope) json.RawMessage) []T {
	env, err := c.get(ctx, endpoint, endpoint)
	if err != nil {
		c.logger.Warn("backend read failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return []T{}
	}
	if !env.Status {
		c.logger.Warn("backend read rejected",
			zap.String("endpoint", endpoint),
			zap.String("msg", env.Msg))
		return []T{}
	}

	raw := pick(env)
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Warn("backend read malformed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// fetchOne reads a single record. A rejection returns nil and the server
// message; transport problems return an error.
func fetchOne[T any](ctx context.Context, c *Client, endpoint, key string) (*T, string, error) {
	env, err := c.get(ctx, endpoint, endpoint+"/"+url.PathEscape(key))
	if err != nil {
		return nil, "", err
	}
	if !env.Status || len(env.Obj) == 0 || string(env.Obj) == "null" {
		return nil, env.Msg, nil
	}
	var out T
	if err := json.Unmarshal(env.Obj, &out); err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return &out, env.Msg, nil
}

func pickData(env *envelope) json.RawMessage { return env.Data }

func pickObj(env *envelope) json.RawMessage { return env.Obj }
