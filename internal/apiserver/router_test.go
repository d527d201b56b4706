package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaradvisor/solaradvisor/internal/config"
	"github.com/solaradvisor/solaradvisor/internal/metrics"
	"github.com/solaradvisor/solaradvisor/internal/store"
	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

type fakeRecommender struct {
	rec *recommend.Recommendation
	err error
	got recommend.Query
}

func (f *fakeRecommender) Recommend(_ context.Context, q recommend.Query) (*recommend.Recommendation, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.rec
	return &cp, nil
}

type fakeBreaker map[string]string

func (f fakeBreaker) Snapshot() map[string]string { return f }

type errPinger struct{ err error }

func (p errPinger) Ping(context.Context) error { return p.err }

func sizingRec() *recommend.Recommendation {
	return &recommend.Recommendation{
		Kind:      recommend.KindSizing,
		Location:  "Lahore",
		Summary:   "2.67kW Solar System Recommendation",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metrics: []recommend.Metric{
			{Name: "system_size", Description: "Recommended System Size", Value: 2.67, Unit: "kW"},
		},
		Sizing: &recommend.SizingDetail{
			ConsumptionSource: recommend.SourceMonthlyFigure,
			System:            sizing.Result{SystemKW: 2.67, PanelCount: 6},
		},
	}
}

type testEnv struct {
	handler http.Handler
	rec     *fakeRecommender
	history *store.History
}

func newTestEnv(t *testing.T, rec *fakeRecommender) *testEnv {
	t.Helper()
	db, err := store.Open(store.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	calc, err := sizing.NewCalculator(sizing.DefaultParams())
	require.NoError(t, err)
	schedule, err := tariff.NewSchedule(tariff.DefaultSlabs())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "should-not-leak"
	history := store.NewHistory(db, nil)

	return &testEnv{
		handler: NewRouter(Deps{
			Config:      cfg,
			Recommender: rec,
			History:     history,
			Calculator:  calc,
			Tariff:      schedule,
			DB:          db,
			Breaker:     fakeBreaker{"geocoder": "closed"},
			Logger:      logr.Discard(),
		}),
		rec:     rec,
		history: history,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestRecommend_BothPaths(t *testing.T) {
	for _, path := range []string{"/recommend", "/api/v1/recommend"} {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t, &fakeRecommender{rec: sizingRec()})
			before := testutil.ToFloat64(metrics.RecommendationsTotal.WithLabelValues("sizing"))

			w := env.do(http.MethodPost, path, `{"location":"Lahore","electricity_kwh_per_month":300}`)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var got recommend.Recommendation
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "2.67kW Solar System Recommendation", got.Summary)
			assert.Equal(t, "system_size", got.Metrics[0].Name)

			require.NotNil(t, env.rec.got.MonthlyKWh)
			assert.Equal(t, 300.0, *env.rec.got.MonthlyKWh)
			assert.Nil(t, env.rec.got.UsagePrompt)

			assert.Equal(t, before+1, testutil.ToFloat64(metrics.RecommendationsTotal.WithLabelValues("sizing")))

			stored, err := env.history.Get(context.Background(), got.ID)
			require.NoError(t, err)
			assert.Equal(t, got.Summary, stored.Summary)
		})
	}
}

func TestRecommend_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"malformed body", `{"location":`, nil, http.StatusBadRequest, recommend.CodeInvalidInput},
		{"validation", `{"location":"La"}`, recommend.InvalidInput("location must be at least 3 characters"),
			http.StatusBadRequest, recommend.CodeInvalidInput},
		{"geocoding", `{"location":"Atlantis","electricity_kwh_per_month":300}`,
			&recommend.Error{Code: recommend.CodeLocationResolution, Message: "location lookup failed", Status: http.StatusBadRequest},
			http.StatusBadRequest, recommend.CodeLocationResolution},
		{"irradiance", `{"location":"Lahore","electricity_kwh_per_month":300}`,
			&recommend.Error{Code: recommend.CodeDataSourceUnavailable, Message: "solar data unavailable", Status: http.StatusServiceUnavailable},
			http.StatusServiceUnavailable, recommend.CodeDataSourceUnavailable},
		{"unexpected", `{"location":"Lahore","electricity_kwh_per_month":300}`, errors.New("boom"),
			http.StatusInternalServerError, recommend.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeRecommender{err: tt.err})
			before := testutil.ToFloat64(metrics.RecommendationFailures.WithLabelValues(tt.wantCode))

			w := env.do(http.MethodPost, "/api/v1/recommend", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			code, msg := decodeError(t, w)
			assert.Equal(t, tt.wantCode, code)
			assert.NotEmpty(t, msg)
			assert.NotContains(t, msg, "boom")

			assert.Equal(t, before+1, testutil.ToFloat64(metrics.RecommendationFailures.WithLabelValues(tt.wantCode)))
		})
	}
}

func TestHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{rec: sizingRec()})
	for i := 0; i < 3; i++ {
		rec := sizingRec()
		rec.CreatedAt = rec.CreatedAt.Add(time.Duration(i) * time.Minute)
		env.history.Save(rec)
	}

	w := env.do(http.MethodGet, "/api/v1/recommendations?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []recommend.Recommendation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))

	w = env.do(http.MethodGet, "/api/v1/recommendations?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := list[0].ID
	w = env.do(http.MethodGet, "/api/v1/recommendations/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = env.do(http.MethodGet, "/api/v1/recommendations/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	code, _ := decodeError(t, w)
	assert.Equal(t, "not_found", code)
}

func TestReportEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{rec: sizingRec()})
	id := env.history.Save(sizingRec())

	w := env.do(http.MethodGet, "/api/v1/recommendations/"+id+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<h1>2.67kW Solar System Recommendation</h1>")

	w = env.do(http.MethodGet, "/api/v1/recommendations/"+id+"/report?format=markdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# 2.67kW Solar System Recommendation"))
}

func TestSizingEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{})

	w := env.do(http.MethodPost, "/api/v1/sizing", `{"daily_kwh":10,"solar_irradiance":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res sizing.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2.67, res.SystemKW)
	assert.Equal(t, 6, res.PanelCount)
	assert.Equal(t, 3.07, res.InverterKW)
	assert.Equal(t, 40.0, res.BatteryKWh)

	w = env.do(http.MethodPost, "/api/v1/sizing", `{"daily_kwh":10,"solar_irradiance":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTariffEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{})

	w := env.do(http.MethodGet, "/api/v1/tariff?units=300", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Cost        float64            `json:"cost"`
		AverageRate *float64           `json:"average_rate"`
		Breakdown   []tariff.Breakdown `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2805.5, body.Cost)
	require.NotNil(t, body.AverageRate)
	assert.Equal(t, 9.35, *body.AverageRate)
	assert.Len(t, body.Breakdown, 4)

	w = env.do(http.MethodGet, "/api/v1/tariff?units=0", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "average_rate")

	w = env.do(http.MethodGet, "/api/v1/tariff?units=-5", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfigEndpoint_HidesSecrets(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{})

	w := env.do(http.MethodGet, "/api/v1/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"panelWattage":400`)
	assert.NotContains(t, w.Body.String(), "should-not-leak")
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{})
	w := env.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"geocoder":"closed"`)

	cfg := config.DefaultConfig()
	h := NewRouter(Deps{Config: cfg, DB: errPinger{errors.New("disk I/O error")}, Logger: logr.Discard()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommend", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	restricted := corsMiddleware([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for origin, want := range map[string]string{
		"https://app.example.com": "https://app.example.com",
		"https://evil.example":    "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		restricted.ServeHTTP(w, req)
		assert.Equal(t, want, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestInstrument_RecordsRoutePattern(t *testing.T) {
	env := newTestEnv(t, &fakeRecommender{})
	env.do(http.MethodGet, "/api/v1/recommendations/abc", "")

	n := testutil.CollectAndCount(metrics.HTTPRequestDuration, "solaradvisor_http_request_duration_seconds")
	assert.Greater(t, n, 0)
}
