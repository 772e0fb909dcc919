// Package testutil provides an in-process fake of the evaluation service.
// It speaks the service's JSON wire format directly and shares no types with
// the client, so client tests exercise real encoding and decoding.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Flag is a flag seeded into the fake service.
type Flag struct {
	Namespace   string
	Key         string
	Name        string
	Description string
	Enabled     bool
	Boolean     bool // boolean flag; otherwise a variant flag
	RawType     any  // overrides the snapshot "type" value when non-nil
	Rules       []Rule
}

// Rule matches when every constraint is present in the request context.
type Rule struct {
	SegmentKey  string
	Constraints map[string]string
	VariantKey  string
	Attachment  string
}

func (r Rule) matches(ctx map[string]string) bool {
	for k, v := range r.Constraints {
		if ctx[k] != v {
			return false
		}
	}
	return true
}

// RecordedRequest is a request observed by the fake service.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// FliptServer is a running fake evaluation service.
type FliptServer struct {
	*httptest.Server

	// Token, when set, is required as "Bearer <Token>".
	Token string

	mu       sync.Mutex
	flags    map[string]map[string]Flag
	requests []RecordedRequest
	delay    time.Duration
	status   int
}

// NewFliptServer starts a fake service seeded with flags. It is closed when
// the test ends.
func NewFliptServer(t *testing.T, flags ...Flag) *FliptServer {
	t.Helper()
	s := &FliptServer{flags: make(map[string]map[string]Flag)}
	for _, f := range flags {
		s.AddFlag(f)
	}
	s.Server = httptest.NewServer(s.Router())
	t.Cleanup(s.Close)
	return s
}

// DefaultFlags returns the fixtures of the reference scenario: a variant flag
// "flag1" and a boolean flag "flag_boolean" in namespace "default", both
// matching the context {"fizz": "buzz"}.
func DefaultFlags() []Flag {
	match := map[string]string{"fizz": "buzz"}
	return []Flag{
		{
			Namespace: "default",
			Key:       "flag1",
			Name:      "Flag 1",
			Enabled:   true,
			Rules: []Rule{
				{SegmentKey: "segment1", Constraints: match, VariantKey: "variant1"},
			},
		},
		{
			Namespace: "default",
			Key:       "flag_boolean",
			Name:      "Flag Boolean",
			Enabled:   true,
			Boolean:   true,
			Rules: []Rule{
				{SegmentKey: "segment1", Constraints: match},
			},
		},
	}
}

// AddFlag seeds or replaces a flag.
func (s *FliptServer) AddFlag(f Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[f.Namespace] == nil {
		s.flags[f.Namespace] = make(map[string]Flag)
	}
	s.flags[f.Namespace][f.Key] = f
}

// SetDelay delays every response, for timeout tests.
func (s *FliptServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// FailWith makes every call answer with status and an internal error body.
// Zero restores normal behavior.
func (s *FliptServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Requests returns the requests observed so far.
func (s *FliptServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request.
func (s *FliptServer) LastRequest(t *testing.T) RecordedRequest {
	t.Helper()
	reqs := s.Requests()
	if len(reqs) == 0 {
		t.Fatal("Expected at least one request to the fake service")
	}
	return reqs[len(reqs)-1]
}

// Router returns the service routes.
func (s *FliptServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.authenticate)

	r.Route("/evaluate/v1", func(r chi.Router) {
		r.Post("/boolean", s.handleBoolean)
		r.Post("/variant", s.handleVariant)
		r.Post("/batch", s.handleBatch)
	})
	r.Get("/internal/v1/evaluation/snapshot/namespace/{key}", s.handleSnapshot)
	return r
}

func (s *FliptServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		})
		delay, status := s.delay, s.status
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeError(w, status, CodeInternal, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *FliptServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			UnauthenticatedError(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type evaluationRequest struct {
	RequestID    string            `json:"requestId"`
	NamespaceKey string            `json:"namespaceKey"`
	FlagKey      string            `json:"flagKey"`
	EntityID     string            `json:"entityId"`
	Context      map[string]string `json:"context"`
	Reference    string            `json:"reference"`
}

type batchRequest struct {
	RequestID string              `json:"requestId"`
	Requests  []evaluationRequest `json:"requests"`
	Reference string              `json:"reference"`
}

func (s *FliptServer) lookup(namespace, key string) (Flag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[namespace][key]
	return f, ok
}

func (s *FliptServer) handleBoolean(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		InvalidArgumentError(w, "invalid request body")
		return
	}
	flag, ok := s.lookup(req.NamespaceKey, req.FlagKey)
	if !ok {
		NotFoundError(w, fmt.Sprintf("flag \"%s/%s\" not found", req.NamespaceKey, req.FlagKey))
		return
	}
	if !flag.Boolean {
		InvalidArgumentError(w, "flag type VARIANT_FLAG_TYPE invalid")
		return
	}
	writeJSON(w, http.StatusOK, booleanResult(flag, req))
}

func (s *FliptServer) handleVariant(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		InvalidArgumentError(w, "invalid request body")
		return
	}
	flag, ok := s.lookup(req.NamespaceKey, req.FlagKey)
	if !ok {
		NotFoundError(w, fmt.Sprintf("flag \"%s/%s\" not found", req.NamespaceKey, req.FlagKey))
		return
	}
	if flag.Boolean {
		InvalidArgumentError(w, "flag type BOOLEAN_FLAG_TYPE invalid")
		return
	}
	writeJSON(w, http.StatusOK, variantResult(flag, req))
}

func (s *FliptServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		InvalidArgumentError(w, "invalid request body")
		return
	}

	responses := make([]map[string]any, 0, len(req.Requests))
	for _, item := range req.Requests {
		flag, ok := s.lookup(item.NamespaceKey, item.FlagKey)
		switch {
		case !ok:
			responses = append(responses, map[string]any{
				"type": "ERROR_EVALUATION_RESPONSE_TYPE",
				"errorResponse": map[string]any{
					"flagKey":      item.FlagKey,
					"namespaceKey": item.NamespaceKey,
					"reason":       "NOT_FOUND_ERROR_EVALUATION_REASON",
				},
			})
		case flag.Boolean:
			responses = append(responses, map[string]any{
				"type":            "BOOLEAN_EVALUATION_RESPONSE_TYPE",
				"booleanResponse": booleanResult(flag, item),
			})
		default:
			responses = append(responses, map[string]any{
				"type":            "VARIANT_EVALUATION_RESPONSE_TYPE",
				"variantResponse": variantResult(flag, item),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requestId":             req.RequestID,
		"responses":             responses,
		"requestDurationMillis": millis(start),
	})
}

func (s *FliptServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "key")

	s.mu.Lock()
	keys := make([]string, 0, len(s.flags[namespace]))
	for k := range s.flags[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flags := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		flags = append(flags, snapshotFlag(s.flags[namespace][k]))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"digest":    fmt.Sprintf("%d-flags", len(flags)),
		"namespace": map[string]any{"key": namespace, "name": namespace, "protected": false},
		"flags":     flags,
	})
}

// snapshotFlag renders a flag the way the service exports it: variant flags
// carry rules with distributions, boolean flags carry segment rollouts.
func snapshotFlag(f Flag) map[string]any {
	typ := any("VARIANT_FLAG_TYPE")
	if f.Boolean {
		typ = "BOOLEAN_FLAG_TYPE"
	}
	if f.RawType != nil {
		typ = f.RawType
	}

	rules := []any{}
	rollouts := []any{}
	variants := []any{}
	for i, rule := range f.Rules {
		segment := snapshotSegment(rule)
		if f.Boolean {
			rollouts = append(rollouts, map[string]any{
				"type": "SEGMENT_ROLLOUT_TYPE",
				"rank": i + 1,
				"segment": map[string]any{
					"value":           true,
					"segmentOperator": "OR_SEGMENT_OPERATOR",
					"segments":        []any{segment},
				},
			})
			continue
		}
		variant := map[string]any{"key": rule.VariantKey, "attachment": rule.Attachment}
		variants = append(variants, variant)
		rules = append(rules, map[string]any{
			"id":              fmt.Sprintf("%s-rule-%d", f.Key, i+1),
			"rank":            i + 1,
			"segmentOperator": "OR_SEGMENT_OPERATOR",
			"segments":        []any{segment},
			"distributions":   []any{map[string]any{"variant": variant, "rollout": 100}},
		})
	}

	return map[string]any{
		"key":         f.Key,
		"name":        f.Name,
		"description": f.Description,
		"enabled":     f.Enabled,
		"type":        typ,
		"variants":    variants,
		"rules":       rules,
		"rollouts":    rollouts,
	}
}

func snapshotSegment(rule Rule) map[string]any {
	props := make([]string, 0, len(rule.Constraints))
	for k := range rule.Constraints {
		props = append(props, k)
	}
	sort.Strings(props)

	constraints := make([]any, 0, len(props))
	for _, k := range props {
		constraints = append(constraints, map[string]any{
			"type":     "STRING_COMPARISON_TYPE",
			"property": k,
			"operator": "eq",
			"value":    rule.Constraints[k],
		})
	}
	return map[string]any{
		"key":         rule.SegmentKey,
		"matchType":   "ALL_MATCH_TYPE",
		"constraints": constraints,
	}
}

func booleanResult(flag Flag, req evaluationRequest) map[string]any {
	start := time.Now()
	enabled, reason := flag.Enabled, "DEFAULT_EVALUATION_REASON"
	if !flag.Enabled {
		reason = "FLAG_DISABLED_EVALUATION_REASON"
	} else if len(flag.Rules) > 0 {
		enabled = false
		for _, rule := range flag.Rules {
			if rule.matches(req.Context) {
				enabled, reason = true, "MATCH_EVALUATION_REASON"
				break
			}
		}
	}
	return map[string]any{
		"requestId":             req.RequestID,
		"enabled":               enabled,
		"flagKey":               flag.Key,
		"reason":                reason,
		"requestDurationMillis": millis(start),
		"timestamp":             time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func variantResult(flag Flag, req evaluationRequest) map[string]any {
	start := time.Now()
	out := map[string]any{
		"requestId":   req.RequestID,
		"match":       false,
		"flagKey":     flag.Key,
		"variantKey":  "",
		"segmentKeys": []string{},
		"reason":      "UNKNOWN_EVALUATION_REASON",
	}
	if !flag.Enabled {
		out["reason"] = "FLAG_DISABLED_EVALUATION_REASON"
	} else {
		for _, rule := range flag.Rules {
			if rule.matches(req.Context) {
				out["match"] = true
				out["variantKey"] = rule.VariantKey
				out["segmentKeys"] = []string{rule.SegmentKey}
				out["reason"] = "MATCH_EVALUATION_REASON"
				if rule.Attachment != "" {
					out["variantAttachment"] = rule.Attachment
				}
				break
			}
		}
	}
	out["requestDurationMillis"] = millis(start)
	out["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return out
}

func millis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
