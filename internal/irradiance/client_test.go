package irradiance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

var lahore = recommend.Location{
	Name:        "Lahore",
	Coordinates: recommend.Coordinates{Latitude: 31.5656, Longitude: 74.3142},
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]float64
}

func (m *mapCache) Get(key string, out any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if ok {
		*out.(*float64) = v
	}
	return ok
}

func (m *mapCache) Put(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]float64)
	}
	m.data[key] = v.(float64)
}

func TestOpenMeteo_Average(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "shortwave_radiation_sum", r.URL.Query().Get("daily"))
		assert.Equal(t, "auto", r.URL.Query().Get("timezone"))
		assert.Equal(t, "31.5656", r.URL.Query().Get("latitude"))
		// mean 18 MJ/m² -> 5.0 kWh/m²
		w.Write([]byte(`{"daily":{"time":["2024-06-01","2024-06-02","2024-06-03"],"shortwave_radiation_sum":[16.2,19.8,18.0]}}`))
	}))
	defer srv.Close()

	v, err := NewOpenMeteo(srv.URL, time.Second).AverageDailyIrradiance(context.Background(), lahore)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestOpenMeteo_SkipsNullDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily":{"shortwave_radiation_sum":[null,21.6,null]}}`))
	}))
	defer srv.Close()

	v, err := NewOpenMeteo(srv.URL, time.Second).AverageDailyIrradiance(context.Background(), lahore)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
}

func TestOpenMeteo_NoData(t *testing.T) {
	for _, body := range []string{`{"daily":{"shortwave_radiation_sum":[]}}`, `{}`, `{"daily":{"shortwave_radiation_sum":[null]}}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		_, err := NewOpenMeteo(srv.URL, time.Second).AverageDailyIrradiance(context.Background(), lahore)
		srv.Close()
		assert.ErrorIs(t, err, recommend.ErrNoIrradianceData, "body %s", body)
	}
}

func TestOpenMeteo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"daily":{"shortwave_radiation_sum":[18.0]}}`))
	}))
	defer srv.Close()

	c := NewOpenMeteo(srv.URL, time.Second, WithRetries(2, time.Millisecond))
	v, err := c.AverageDailyIrradiance(context.Background(), lahore)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenMeteo_NegativeRetriesStillCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"daily":{"shortwave_radiation_sum":[18.0]}}`))
	}))
	defer srv.Close()

	c := NewOpenMeteo(srv.URL, time.Second, WithRetries(-3, time.Millisecond))
	v, err := c.AverageDailyIrradiance(context.Background(), lahore)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenMeteo_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewOpenMeteo(srv.URL, time.Second, WithRetries(3, time.Millisecond))
	_, err := c.AverageDailyIrradiance(context.Background(), lahore)
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenMeteo_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c := NewOpenMeteo(srv.URL, time.Second, WithRetries(5, time.Second))
	_, err := c.AverageDailyIrradiance(ctx, lahore)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenMeteo_UsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"daily":{"shortwave_radiation_sum":[18.0]}}`))
	}))
	defer srv.Close()

	cache := &mapCache{}
	c := NewOpenMeteo(srv.URL, time.Second, WithCache(cache))
	for i := 0; i < 3; i++ {
		_, err := c.AverageDailyIrradiance(context.Background(), lahore)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, cache.data, "openmeteo:31.57,74.31")
}

func TestSolcast_BearerAuthAndConversion(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/world_radiation/forecasts", r.URL.Path)
		assert.Equal(t, "168", r.URL.Query().Get("hours"))
		// mean 250 W/m² over the day -> 6.0 kWh/m²/day
		w.Write([]byte(`{"forecasts":[{"ghi":0,"period":"PT30M"},{"ghi":500,"period":"PT30M"},{"ghi":250,"period":"PT30M"}]}`))
	}))
	defer srv.Close()

	v, err := NewSolcast(srv.URL, "secret-key", time.Second).AverageDailyIrradiance(context.Background(), lahore)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestSolcast_EmptyForecasts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"forecasts":[]}`))
	}))
	defer srv.Close()

	_, err := NewSolcast(srv.URL, "k", time.Second).AverageDailyIrradiance(context.Background(), lahore)
	assert.ErrorIs(t, err, recommend.ErrNoIrradianceData)
}

func TestSolcast_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewSolcast(srv.URL, "bad", time.Second, WithRetries(3, time.Millisecond)).
		AverageDailyIrradiance(context.Background(), lahore)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &StatusError{Code: 503}, true},
		{"rate limited", &StatusError{Code: 429}, true},
		{"not found", &StatusError{Code: 404}, false},
		{"no data", recommend.ErrNoIrradianceData, false},
		{"decode", &decodeError{errors.New("eof")}, false},
		{"cancelled", context.Canceled, false},
		{"transport", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
