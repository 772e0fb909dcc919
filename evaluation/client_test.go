package evaluation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/TimurManjosov/goflipt/evaluation"
	"github.com/TimurManjosov/goflipt/internal/telemetry"
	"github.com/TimurManjosov/goflipt/internal/testutil"
	"github.com/TimurManjosov/goflipt/upstream"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newClient(t *testing.T, srv *testutil.FliptServer, opts ...evaluation.Option) *evaluation.Client {
	t.Helper()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return evaluation.New(srv.Client(), base, opts...)
}

func request(flagKey string) *evaluation.EvaluationRequest {
	return &evaluation.EvaluationRequest{
		NamespaceKey: "default",
		FlagKey:      flagKey,
		EntityID:     "entity",
		Context:      testutil.ContextOf("fizz", "buzz"),
	}
}

func TestVariant_Match(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	resp, err := client.Variant(context.Background(), request("flag1"))
	require.NoError(t, err)

	assert.True(t, resp.Match)
	assert.Equal(t, "variant1", resp.VariantKey)
	assert.Equal(t, evaluation.MatchEvaluationReason, resp.Reason)
	assert.Equal(t, []string{"segment1"}, resp.SegmentKeys)
	assert.Equal(t, "flag1", resp.FlagKey)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestBoolean_Match(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	resp, err := client.Boolean(context.Background(), request("flag_boolean"))
	require.NoError(t, err)

	assert.True(t, resp.Enabled)
	assert.Equal(t, "flag_boolean", resp.FlagKey)
	assert.Equal(t, evaluation.MatchEvaluationReason, resp.Reason)
}

func TestBoolean_EchoesFlagKey(t *testing.T) {
	flags := []testutil.Flag{
		{Namespace: "default", Key: "alpha", Enabled: true, Boolean: true},
		{Namespace: "default", Key: "beta", Enabled: false, Boolean: true},
		{Namespace: "default", Key: "gamma_flag", Enabled: true, Boolean: true},
	}
	srv := testutil.NewFliptServer(t, flags...)
	client := newClient(t, srv)

	for _, f := range flags {
		resp, err := client.Boolean(context.Background(), request(f.Key))
		require.NoError(t, err)
		assert.Equal(t, f.Key, resp.FlagKey)
		assert.Equal(t, f.Enabled, resp.Enabled)
	}
}

func TestBoolean_RequestBody(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	req := request("flag_boolean")
	req.RequestID = "req-1"
	req.Reference = "main"
	_, err := client.Boolean(context.Background(), req)
	require.NoError(t, err)

	last := srv.LastRequest(t)
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/evaluate/v1/boolean", last.Path)
	assert.Equal(t, "application/json", last.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body, &body))
	assert.Equal(t, "req-1", body["requestId"])
	assert.Equal(t, "default", body["namespaceKey"])
	assert.Equal(t, "flag_boolean", body["flagKey"])
	assert.Equal(t, "entity", body["entityId"])
	assert.Equal(t, "main", body["reference"])
	assert.Equal(t, map[string]any{"fizz": "buzz"}, body["context"])
}

func TestBatch_MixedResultsInOrder(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	resp, err := client.Batch(context.Background(), &evaluation.BatchEvaluationRequest{
		Requests: []evaluation.EvaluationRequest{
			*request("flag1"),
			*request("flag_boolean"),
			*request("notfound"),
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Responses, 3)

	variant, ok := resp.Responses[0].VariantResponse()
	require.True(t, ok, "first item should be a variant")
	assert.Equal(t, evaluation.VariantEvaluationResponseType, resp.Responses[0].Type())
	assert.True(t, variant.Match)
	assert.Equal(t, "variant1", variant.VariantKey)
	assert.Equal(t, evaluation.MatchEvaluationReason, variant.Reason)
	assert.Equal(t, "segment1", variant.SegmentKeys[0])

	boolean, ok := resp.Responses[1].BooleanResponse()
	require.True(t, ok, "second item should be a boolean")
	assert.Equal(t, evaluation.BooleanEvaluationResponseType, resp.Responses[1].Type())
	assert.True(t, boolean.Enabled)
	assert.Equal(t, "flag_boolean", boolean.FlagKey)
	assert.Equal(t, evaluation.MatchEvaluationReason, boolean.Reason)

	errItem, ok := resp.Responses[2].ErrorResponse()
	require.True(t, ok, "third item should be an error")
	assert.Equal(t, evaluation.ErrorEvaluationResponseType, resp.Responses[2].Type())
	assert.Equal(t, "notfound", errItem.FlagKey)
	assert.Equal(t, "default", errItem.NamespaceKey)
	assert.Equal(t, evaluation.NotFoundErrorEvaluationReason, errItem.Reason)
}

func TestBatch_OrderMirrorsRequests(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	keys := []string{"missing-1", "flag_boolean", "flag1", "missing-2", "flag1", "flag_boolean"}
	reqs := make([]evaluation.EvaluationRequest, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, *request(k))
	}

	resp, err := client.Batch(context.Background(), &evaluation.BatchEvaluationRequest{Requests: reqs})
	require.NoError(t, err)
	require.Len(t, resp.Responses, len(keys))
	for i, k := range keys {
		assert.Equal(t, k, resp.Responses[i].FlagKey(), "item %d", i)
	}
}

func TestBatch_RecordsItemMetrics(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewClientMetrics(reg)
	require.NoError(t, err)
	client := newClient(t, srv, evaluation.WithMetrics(metrics))

	_, err = client.Batch(context.Background(), &evaluation.BatchEvaluationRequest{
		Requests: []evaluation.EvaluationRequest{*request("flag1"), *request("nope"), *request("nope2")},
	})
	require.NoError(t, err)

	expected := `
# HELP flipt_client_batch_items_total Batch response items by type
# TYPE flipt_client_batch_items_total counter
flipt_client_batch_items_total{type="ERROR_EVALUATION_RESPONSE_TYPE"} 2
flipt_client_batch_items_total{type="VARIANT_EVALUATION_RESPONSE_TYPE"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected), "flipt_client_batch_items_total"))
}

func TestBatch_CallFailsOnlyOnExchangeFailure(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	srv.FailWith(http.StatusInternalServerError)
	client := newClient(t, srv)

	resp, err := client.Batch(context.Background(), &evaluation.BatchEvaluationRequest{
		Requests: []evaluation.EvaluationRequest{*request("flag1")},
	})
	require.Error(t, err)
	assert.Nil(t, resp)

	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.False(t, ue.IsTransport())
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
	assert.Equal(t, testutil.CodeInternal, ue.Code)
	assert.Equal(t, "injected failure", ue.Message)
}

func TestListFlags(t *testing.T) {
	srv := testutil.NewFliptServer(t, append(testutil.DefaultFlags(),
		testutil.Flag{Namespace: "default", Key: "future", Enabled: true, RawType: 9},
		testutil.Flag{Namespace: "default", Key: "future_named", Enabled: false, RawType: "HOLOGRAPHIC_FLAG_TYPE"},
		testutil.Flag{Namespace: "other", Key: "elsewhere", Enabled: true, Boolean: true},
	)...)
	client := newClient(t, srv)

	flags, err := client.ListFlags(context.Background(), &evaluation.EvaluationNamespaceSnapshotRequest{Key: "default"})
	require.NoError(t, err)
	require.Len(t, flags, 4)

	byKey := make(map[string]evaluation.Flag, len(flags))
	for _, f := range flags {
		byKey[f.Key] = f
	}
	assert.Equal(t, evaluation.VariantFlagType, byKey["flag1"].Type)
	assert.Equal(t, evaluation.BooleanFlagType, byKey["flag_boolean"].Type)
	assert.Equal(t, evaluation.DefaultFlagType, byKey["future"].Type)
	assert.Equal(t, evaluation.DefaultFlagType, byKey["future_named"].Type)
	assert.False(t, byKey["future_named"].Enabled)
	assert.Equal(t, "Flag 1", byKey["flag1"].Name)

	last := srv.LastRequest(t)
	assert.Equal(t, http.MethodGet, last.Method)
	assert.Equal(t, "/internal/v1/evaluation/snapshot/namespace/default", last.Path)
}

func TestListFlags_Reference(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)
	ctx := context.Background()

	_, err := client.ListFlags(ctx, &evaluation.EvaluationNamespaceSnapshotRequest{Key: "default"})
	require.NoError(t, err)
	none := srv.LastRequest(t)

	_, err = client.ListFlags(ctx, &evaluation.EvaluationNamespaceSnapshotRequest{Key: "default", Reference: ""})
	require.NoError(t, err)
	empty := srv.LastRequest(t)

	_, err = client.ListFlags(ctx, &evaluation.EvaluationNamespaceSnapshotRequest{Key: "default", Reference: "v2"})
	require.NoError(t, err)
	withRef := srv.LastRequest(t)

	assert.Equal(t, none.Path, empty.Path)
	assert.Equal(t, none.RawQuery, empty.RawQuery)
	assert.Empty(t, empty.RawQuery)
	assert.Equal(t, "reference=v2", withRef.RawQuery)
}

func TestSnapshot_Raw(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	snap, err := client.Snapshot(context.Background(), &evaluation.EvaluationNamespaceSnapshotRequest{Key: "default"})
	require.NoError(t, err)
	assert.Equal(t, "default", snap.Namespace.Key)
	assert.Contains(t, snap.Namespace.Extra, "name")
	require.Len(t, snap.Flags, 2)

	// sorted by key: flag1 (variant rules), flag_boolean (segment rollouts)
	assert.Contains(t, string(snap.Flags[0].Rules), `"distributions"`)
	assert.Contains(t, snap.Flags[0].Extra, "variants")
	assert.Contains(t, string(snap.Flags[1].Rollouts), "SEGMENT_ROLLOUT_TYPE")
}

func TestStructuredErrors(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)
	ctx := context.Background()

	_, err := client.Variant(ctx, request("missing"))
	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
	assert.Equal(t, testutil.CodeNotFound, ue.Code)
	assert.Contains(t, ue.Message, "not found")

	_, err = client.Boolean(ctx, request("flag1"))
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
	assert.Equal(t, testutil.CodeInvalidArgument, ue.Code)
}

func TestTransportFailure_AllOperations(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)
	srv.Close()

	ctx := context.Background()
	calls := map[string]func() error{
		"boolean": func() error { _, err := client.Boolean(ctx, request("flag_boolean")); return err },
		"variant": func() error { _, err := client.Variant(ctx, request("flag1")); return err },
		"batch": func() error {
			_, err := client.Batch(ctx, &evaluation.BatchEvaluationRequest{Requests: []evaluation.EvaluationRequest{*request("flag1")}})
			return err
		},
		"list_flags": func() error {
			_, err := client.ListFlags(ctx, &evaluation.EvaluationNamespaceSnapshotRequest{Key: "default"})
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)

			var ue *upstream.Error
			require.ErrorAs(t, err, &ue)
			assert.True(t, ue.IsTransport())
			assert.NotEmpty(t, ue.Message)
			assert.Zero(t, ue.StatusCode)
			assert.Zero(t, ue.Code)
		})
	}
}

func TestTransportFailure_Timeout(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	srv.SetDelay(time.Second)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	httpClient := srv.Client()
	httpClient.Timeout = 50 * time.Millisecond
	client := evaluation.New(httpClient, base)

	_, err = client.Boolean(context.Background(), request("flag_boolean"))
	require.Error(t, err)
	assert.True(t, upstream.IsTransport(err))
}

func TestTransportFailure_Cancelled(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Variant(ctx, request("flag1"))
	require.Error(t, err)
	assert.True(t, upstream.IsTransport(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCallMetrics(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewClientMetrics(reg)
	require.NoError(t, err)
	client := newClient(t, srv, evaluation.WithMetrics(metrics))
	ctx := context.Background()

	_, err = client.Boolean(ctx, request("flag_boolean"))
	require.NoError(t, err)
	_, err = client.Boolean(ctx, request("missing"))
	require.Error(t, err)

	expected := `
# HELP flipt_client_requests_total Total evaluation service calls
# TYPE flipt_client_requests_total counter
flipt_client_requests_total{operation="boolean",outcome="success"} 1
flipt_client_requests_total{operation="boolean",outcome="upstream_error"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected), "flipt_client_requests_total"))
}

func TestConcurrentCalls(t *testing.T) {
	srv := testutil.NewFliptServer(t, testutil.DefaultFlags()...)
	client := newClient(t, srv)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 20; i++ {
		i := i
		g.Go(func() error {
			req := request("flag1")
			req.EntityID = fmt.Sprintf("entity-%d", i)
			if i%2 == 0 {
				req.FlagKey = "flag_boolean"
				resp, err := client.Boolean(ctx, req)
				if err != nil {
					return err
				}
				if resp.FlagKey != "flag_boolean" {
					return fmt.Errorf("call %d: unexpected flag key %q", i, resp.FlagKey)
				}
				return nil
			}
			resp, err := client.Variant(ctx, req)
			if err != nil {
				return err
			}
			if resp.VariantKey != "variant1" {
				return fmt.Errorf("call %d: unexpected variant %q", i, resp.VariantKey)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, srv.Requests(), 20)
}
