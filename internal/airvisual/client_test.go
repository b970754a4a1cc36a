package airvisual

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/aqibot/internal/observability"
)

const (
	testKey           = "test-key"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

func testClient(t *testing.T, baseURL string) (*Client, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	c, err := NewClient(Options{APIKey: testKey, BaseURL: baseURL, Timeout: time.Second, Metrics: m})
	require.NoError(t, err)
	return c, m
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Options{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestByCity_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/city", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Kagan", q.Get("city"))
		assert.Equal(t, "Bukhara", q.Get("state"))
		assert.Equal(t, "Uzbekistan", q.Get("country"))
		assert.Equal(t, testKey, q.Get("key"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"success","data":{"city":"Kagan","state":"Bukhara","country":"Uzbekistan",
			"current":{"pollution":{"aqius":75,"mainus":"p2"},"weather":{"tp":21}}}}`))
	}))
	defer srv.Close()

	c, m := testClient(t, srv.URL)
	got, err := c.ByCity(context.Background(), CityQuery{City: "Kagan", State: "Bukhara", Country: "Uzbekistan"})
	require.NoError(t, err)

	assert.Equal(t, "Kagan, Bukhara", got.LocationLabel)
	assert.Equal(t, 75, got.AQI)
	assert.Equal(t, "p2", got.DominantPollutant)
	assert.Equal(t, 21.0, got.TemperatureCelsius)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("city", "success")))
}

func TestByCoordinates_UsesStationLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nearest_city", r.URL.Path)
		assert.Equal(t, "41.311100", r.URL.Query().Get("lat"))
		assert.Equal(t, "69.279700", r.URL.Query().Get("lon"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"success","data":{"city":"Tashkent","state":"Toshkent Shahri",
			"current":{"pollution":{"aqius":160,"mainus":"p2"},"weather":{"tp":-2.5}}}}`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	got, err := c.ByCoordinates(context.Background(), 41.3111, 69.2797)
	require.NoError(t, err)
	assert.Equal(t, "Tashkent, Toshkent Shahri", got.LocationLabel)
	assert.Equal(t, 160, got.AQI)
	assert.Equal(t, -2.5, got.TemperatureCelsius)
}

func TestByCoordinates_MissingCity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"current":{"pollution":{"aqius":10,"mainus":"p2"},"weather":{"tp":5}}}}`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	got, err := c.ByCoordinates(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Unknown City", got.LocationLabel)
}

func TestByCity_FailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","data":{"message":"city_not_found"}}`))
	}))
	defer srv.Close()

	c, m := testClient(t, srv.URL)
	_, err := c.ByCity(context.Background(), CityQuery{City: "Nowhere", State: "X"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "city_not_found", apiErr.Message)
	assert.Equal(t, "AIRVISUAL_CITY_NOT_FOUND", apiErr.Code())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("city", "api_error")))
}

func TestByCity_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"fail","data":"call_limit_reached"}`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	_, err := c.ByCity(context.Background(), CityQuery{City: "Kagan", State: "Bukhara"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "call_limit_reached", apiErr.Message)
	assert.Contains(t, err.Error(), "429")
}

func TestByCity_NegativeAQI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"current":{"pollution":{"aqius":-5,"mainus":"p2"},"weather":{"tp":5}}}}`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	_, err := c.ByCity(context.Background(), CityQuery{City: "Kagan", State: "Bukhara"})
	assert.ErrorIs(t, err, ErrInvalidMeasurement)
}

func TestByCity_MissingPollution(t *testing.T) {
	bodies := map[string]string{
		"no current":   `{"status":"success","data":{"city":"Kagan","state":"Bukhara"}}`,
		"null aqius":   `{"status":"success","data":{"current":{"pollution":{"aqius":null,"mainus":"p2"},"weather":{"tp":20}}}}`,
		"no pollution": `{"status":"success","data":{"current":{"weather":{"tp":20}}}}`,
		"no mainus":    `{"status":"success","data":{"current":{"pollution":{"aqius":40},"weather":{"tp":20}}}}`,
		"no weather":   `{"status":"success","data":{"current":{"pollution":{"aqius":40,"mainus":"p2"}}}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c, _ := testClient(t, srv.URL)
			_, err := c.ByCity(context.Background(), CityQuery{City: "Kagan", State: "Bukhara"})
			assert.ErrorIs(t, err, ErrInvalidMeasurement)
		})
	}
}

func TestByCity_ZeroAQIIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"current":{"pollution":{"aqius":0,"mainus":"o3"},"weather":{"tp":0}}}}`))
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	got, err := c.ByCity(context.Background(), CityQuery{City: "Kagan", State: "Bukhara"})
	require.NoError(t, err)
	assert.Equal(t, 0, got.AQI)
}

func TestByCity_NetworkErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, m := testClient(t, url)
	_, err := c.ByCity(context.Background(), CityQuery{City: "Kagan", State: "Bukhara"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("city", "error")))
}

func TestByCity_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := testClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ByCity(ctx, CityQuery{City: "Kagan", State: "Bukhara"})
	require.Error(t, err)
}
