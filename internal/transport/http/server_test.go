package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipowatch/internal/config"
	"ipowatch/internal/ipo"
)

var fixedNow = time.Date(2025, 12, 23, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))

type stubSource struct {
	fetch func(ctx context.Context) ([]ipo.RawRecord, error)
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) Fetch(ctx context.Context) ([]ipo.RawRecord, error) { return s.fetch(ctx) }

func newEngine(t *testing.T, market ipo.Market, sources ...ipo.Source) *ipo.Engine {
	t.Helper()
	registry, err := ipo.NewSourceRegistry(sources...)
	require.NoError(t, err)
	engine, err := ipo.NewEngine(market, registry, zerolog.Nop())
	require.NoError(t, err)
	engine.Now = func() time.Time { return fixedNow }
	engine.Location = fixedNow.Location()
	return engine
}

func newTestServer(t *testing.T, timeout time.Duration, engines ...*ipo.Engine) (*Server, *ipo.IngestSource) {
	t.Helper()
	ingest := ipo.NewIngestSource("ingest")
	srv := NewServer(engines, config.Config{RequestTimeout: timeout}, ingest, zerolog.Nop())
	srv.now = func() time.Time { return fixedNow }
	return srv, ingest
}

func seededServer(t *testing.T) (*Server, *ipo.IngestSource) {
	t.Helper()
	ingest := ipo.NewIngestSource("ingest")
	ingest.Add(ipo.RawRecord{Market: ipo.MarketMainland, Code: "688001", Name: "星河科技", PrimaryDate: "2025-12-22", Window: "2025-12-22至2025-12-24"})
	ingest.Add(ipo.RawRecord{Market: ipo.MarketMainland, Code: "301001", Name: "远航电子", PrimaryDate: "2025-12-26", Window: "2025-12-26"})
	ingest.Add(ipo.RawRecord{Market: ipo.MarketMainland, Code: "001389", Name: "无窗口", PrimaryDate: "2025-12-23"})
	ingest.Add(ipo.RawRecord{Market: ipo.MarketHongKong, Code: "02501", Name: "港湾医疗", PrimaryDate: "2025-12-19", ListingDate: "2025-12-30", Window: "2025-12-19至2025-12-24"})

	srv := NewServer([]*ipo.Engine{
		newEngine(t, ipo.Mainland(), ingest),
		newEngine(t, ipo.HongKong(), ingest),
	}, config.Config{RequestTimeout: time.Second}, ingest, zerolog.Nop())
	srv.now = func() time.Time { return fixedNow }
	return srv, ingest
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv.Routes(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "ipowatch", payload["service"])
	assert.Equal(t, "2025-12-23T02:00:00Z", payload["timestamp"])
}

func TestMarketEndpoints(t *testing.T) {
	srv, _ := seededServer(t)
	routes := srv.Routes()

	tests := []struct {
		target       string
		market       string
		subscribable int
		future       int
	}{
		{target: "/api/a-stock", market: "A股", subscribable: 1, future: 1},
		{target: "/api/hk-stock", market: "港股", subscribable: 1, future: 0},
		{target: "/api/stocks?market=a&future_days=2", market: "A股", subscribable: 1, future: 0},
		{target: "/api/stocks?market=HK-STOCK", market: "港股", subscribable: 1, future: 0},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, routes, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

			var env ipo.Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.True(t, env.Success)
			assert.Equal(t, tt.market, env.Market)
			assert.Equal(t, tt.subscribable, env.SubscribableCount)
			assert.Equal(t, tt.future, env.FutureCount)
			assert.Contains(t, env.Data, tt.market+"新股发行信息")
		})
	}
}

func TestMarketEndpointRejectsBadInput(t *testing.T) {
	srv, _ := seededServer(t)
	routes := srv.Routes()

	for _, target := range []string{
		"/api/stocks?market=nyse",
		"/api/stocks",
		"/api/a-stock?future_days=0",
		"/api/a-stock?future_days=91",
		"/api/a-stock?future_days=soon",
		"/api/a-stock?enrich=perhaps",
	} {
		rec := get(t, routes, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var env ipo.ErrorEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	}
}

func TestMarketEndpointUpstreamFailures(t *testing.T) {
	failing := newEngine(t, ipo.HongKong(), stubSource{fetch: func(context.Context) ([]ipo.RawRecord, error) {
		return nil, errors.New("connection refused")
	}})
	slow := newEngine(t, ipo.Mainland(), stubSource{fetch: func(ctx context.Context) ([]ipo.RawRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	srv, _ := newTestServer(t, 20*time.Millisecond, failing, slow)
	routes := srv.Routes()

	rec := get(t, routes, "/api/hk-stock")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
	var env ipo.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "港股", env.Market)
	assert.Contains(t, env.Error, "connection refused")

	rec = get(t, routes, "/api/a-stock")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestMarketNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, time.Second)
	rec := get(t, srv.Routes(), "/api/a-stock")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDiagnosticsEndpoint(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv.Routes(), "/api/diagnostics?market=a")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload diagnosticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "2025-12-23", payload.Today)
	assert.Equal(t, 3, payload.Fetched)
	assert.Equal(t, 3, payload.Kept)
	assert.Equal(t, []string{"688001"}, payload.Current)
	assert.Equal(t, []string{"301001"}, payload.Future)
	assert.Equal(t, map[string]int{"no_window": 1}, payload.ByReason)
	require.Len(t, payload.Entries, 1)
	assert.Equal(t, "001389", payload.Entries[0].Code)
}

func TestReportHTML(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv.Routes(), "/report/a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<h1")
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "星河科技（688001）")

	rec = get(t, srv.Routes(), "/report/nyse")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestListing(t *testing.T) {
	srv, ingest := seededServer(t)
	routes := srv.Routes()
	ingest.Add(ipo.RawRecord{Market: ipo.MarketMainland, Code: "600000", Name: "已结束", Window: "2025-11-01至2025-11-03"})

	body := `{"market":"a","code":"688999","name":"新晨股份","primary_date":"2025-12-23","window":"2025-12-23","issue_price":21.5}`
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "accepted", ack["status"])
	assert.Equal(t, false, ack["replaced"])
	assert.Equal(t, float64(5), ack["stored"])

	rec = get(t, routes, "/api/diagnostics?market=a")
	var payload diagnosticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{"688001", "688999"}, payload.Current)
}

func TestIngestRejectsInvalidPayloads(t *testing.T) {
	srv, _ := seededServer(t)
	routes := srv.Routes()

	for _, body := range []string{
		`not json`,
		`{"market":"a","code":"1","name":"n","surprise":1}`,
		`{"market":"us","code":"1","name":"n","window":"2025-12-23"}`,
		`{"market":"a","code":"","name":"n","window":"2025-12-23"}`,
		`{"market":"a","code":"1","name":"n"}`,
		`{"market":"a","code":"1","name":"n","window":"2025-12-23","issue_price":-1}`,
	} {
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSwaggerAndMetricsRoutes(t *testing.T) {
	srv, _ := seededServer(t)
	routes := srv.Routes()

	rec := get(t, routes, "/swagger/openapi.yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/hk-stock")

	rec = get(t, routes, "/swagger")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec = get(t, routes, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
