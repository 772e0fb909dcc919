// Package evaluation calls the remote flag evaluation service.
//
// Every decision is made server-side; this package only maps requests to
// endpoints and responses to typed values. Each operation is one HTTP
// exchange with no retries, and every failure is an *upstream.Error.
//
// Batch evaluations succeed as a whole unless the exchange itself fails.
// Per-item failures (for example a flag that does not exist) come back as
// Error-typed items and must be inspected one by one:
//
//	resp, err := client.Batch(ctx, &evaluation.BatchEvaluationRequest{Requests: reqs})
//	if err != nil {
//	    return err // transport failure or non-success status
//	}
//	for i, item := range resp.Responses {
//	    if e, ok := item.ErrorResponse(); ok {
//	        log.Printf("request %d: %s/%s: %s", i, e.NamespaceKey, e.FlagKey, e.Reason)
//	    }
//	}
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TimurManjosov/goflipt/internal/telemetry"
	"github.com/TimurManjosov/goflipt/upstream"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/TimurManjosov/goflipt/evaluation"

// Operation names used in spans, logs and metrics.
const (
	OpBoolean   = "boolean"
	OpVariant   = "variant"
	OpBatch     = "batch"
	OpSnapshot  = "snapshot"
	snapshotDir = "internal/v1/evaluation/snapshot/namespace"
)

// Client issues evaluation calls against one service. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     zerolog.Logger
	metrics    *telemetry.ClientMetrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for per-call debug lines.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the collectors that record each call.
func WithMetrics(m *telemetry.ClientMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client. httpClient carries timeout and authentication;
// baseURL is the service root.
func New(httpClient *http.Client, baseURL *url.URL, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := *baseURL
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		httpClient: httpClient,
		baseURL:    &base,
		logger:     zerolog.Nop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Boolean evaluates a boolean flag.
func (c *Client) Boolean(ctx context.Context, req *EvaluationRequest) (*BooleanEvaluationResponse, error) {
	return call[BooleanEvaluationResponse](ctx, c, OpBoolean, http.MethodPost, c.endpoint("evaluate/v1/boolean"), req, requestAttributes(req)...)
}

// Variant evaluates a variant flag.
func (c *Client) Variant(ctx context.Context, req *EvaluationRequest) (*VariantEvaluationResponse, error) {
	return call[VariantEvaluationResponse](ctx, c, OpVariant, http.MethodPost, c.endpoint("evaluate/v1/variant"), req, requestAttributes(req)...)
}

// Batch evaluates every request in one exchange. The response has one item
// per request, in the same order.
func (c *Client) Batch(ctx context.Context, req *BatchEvaluationRequest) (*BatchEvaluationResponse, error) {
	var attrs []attribute.KeyValue
	if req != nil {
		attrs = append(attrs, attribute.Int("flipt.batch_size", len(req.Requests)))
	}
	resp, err := call[BatchEvaluationResponse](ctx, c, OpBatch, http.MethodPost, c.endpoint("evaluate/v1/batch"), req, attrs...)
	if err != nil {
		return nil, err
	}
	for _, item := range resp.Responses {
		c.metrics.ObserveBatchItem(item.Type().String())
	}
	return resp, nil
}

// Snapshot fetches the raw namespace snapshot.
func (c *Client) Snapshot(ctx context.Context, req *EvaluationNamespaceSnapshotRequest) (*EvaluationNamespaceSnapshot, error) {
	var key, reference string
	if req != nil {
		key, reference = req.Key, req.Reference
	}
	return call[EvaluationNamespaceSnapshot](ctx, c, OpSnapshot, http.MethodGet, c.snapshotURL(key, reference), nil,
		attribute.String("flipt.namespace_key", key))
}

// ListFlags fetches the namespace snapshot and summarizes its flags.
// Unrecognized flag type codes map to DefaultFlagType.
func (c *Client) ListFlags(ctx context.Context, req *EvaluationNamespaceSnapshotRequest) ([]Flag, error) {
	snapshot, err := c.Snapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	flags := make([]Flag, 0, len(snapshot.Flags))
	for _, f := range snapshot.Flags {
		flags = append(flags, f.ToFlag())
	}
	return flags, nil
}

func (c *Client) endpoint(p string) string {
	return c.baseURL.JoinPath(p).String()
}

// snapshotURL builds the snapshot endpoint. An empty reference is the same
// as no reference. The namespace is always its own path segment: the path is
// not cleaned, and "." or ".." are escaped so they cannot climb the tree.
func (c *Client) snapshotURL(namespace, reference string) string {
	u := *c.baseURL
	raw := strings.TrimSuffix(u.EscapedPath(), "/") + "/" + snapshotDir + "/" + pathSegment(namespace)
	path, err := url.PathUnescape(raw)
	if err != nil {
		path = raw
	}
	u.Path, u.RawPath = path, raw
	if reference != "" {
		u.RawQuery = url.Values{"reference": []string{reference}}.Encode()
	}
	return u.String()
}

func pathSegment(s string) string {
	if s == "." || s == ".." {
		return strings.Repeat("%2E", len(s))
	}
	return url.PathEscape(s)
}

func requestAttributes(req *EvaluationRequest) []attribute.KeyValue {
	if req == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("flipt.namespace_key", req.NamespaceKey),
		attribute.String("flipt.flag_key", req.FlagKey),
	}
}

// call performs one exchange and adapts the response. It is the only place
// requests are sent.
func call[T any](ctx context.Context, c *Client, op, method, endpoint string, body any, attrs ...attribute.KeyValue) (*T, error) {
	attrs = append(attrs, attribute.String("flipt.operation", op))
	ctx, span := c.tracer.Start(ctx, "flipt.evaluation/"+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	var (
		out    T
		status int
	)
	resp, err := c.send(ctx, method, endpoint, body)
	if err == nil {
		status = resp.StatusCode
		out, err = upstream.Deserialize[T](resp)
	}
	elapsed := time.Since(start)

	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeUpstreamError
		if upstream.IsTransport(err) {
			outcome = telemetry.OutcomeTransportError
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	c.metrics.ObserveCall(op, outcome, elapsed)

	evt := c.logger.Debug()
	if err != nil {
		evt = c.logger.Warn().Err(err)
	}
	evt.Str("op", op).
		Str("method", method).
		Str("url", endpoint).
		Int("status", status).
		Dur("duration", elapsed).
		Msg("evaluation call")

	if err != nil {
		return nil, err
	}
	return &out, nil
}

// send encodes body (if any) and performs the HTTP exchange. Every failure
// before a response is obtained is a transport failure.
func (c *Client) send(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, upstream.NewTransportError(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, upstream.NewTransportError(fmt.Errorf("create request: %w", err))
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, upstream.NewTransportError(err)
	}
	return resp, nil
}
