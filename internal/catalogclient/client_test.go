package catalogclient

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

const (
	metricsBody = `{"items":[
		{"id":1,"name":"img.stat.mean","physicalUnits":"ADU","dataType":"FLOAT","definition":"mean"},
		{"id":2,"name":"nBadPix","physicalUnits":"count","dataType":"INT"}
	]}`
	thresholdsBody = `{"items":[
		{"id":10,"metricId":1,"upper":5,"lower":0,"createdDate":"2024-01-01T00:00:00Z"},
		{"id":11,"metricId":1,"upper":6,"createdDate":"2024-06-01T00:00:00Z"},
		{"id":20,"metricId":2,"upper":100,"createdDate":"2024-01-01T00:00:00Z"}
	]}`
)

func newUpstream(t *testing.T, apiKey string, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey != "" && r.Header.Get("X-API-Key") != apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL, apiKey string) *HTTPClient {
	t.Helper()
	logger, _ := test.NewNullLogger()
	c, err := NewHTTPClient(baseURL, apiKey, 2*time.Second, logger)
	require.NoError(t, err)
	return c
}

func TestHTTPClient_LoadCatalog(t *testing.T) {
	upstream := newUpstream(t, "key", map[string]string{
		"/catalog/metrics":    metricsBody,
		"/catalog/thresholds": thresholdsBody,
	})
	c := newClient(t, upstream.URL+"/", "key")

	cat, err := c.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	id, err := cat.MetricID("nBadPix")
	require.NoError(t, err)
	assert.EqualValues(t, 2, id)

	thID, err := cat.ThresholdID(1)
	require.NoError(t, err)
	assert.EqualValues(t, 11, thID, "newest threshold wins")

	th, ok := cat.Threshold(1)
	require.True(t, ok)
	assert.True(t, math.IsNaN(th.Lower))
}

func TestHTTPClient_MetricsDecodesDataType(t *testing.T) {
	upstream := newUpstream(t, "", map[string]string{"/catalog/metrics": metricsBody})
	c := newClient(t, upstream.URL, "")

	metrics, err := c.Metrics(context.Background())
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, domain.DataTypeFloat, metrics[0].DataType)
	assert.Equal(t, domain.DataTypeInt, metrics[1].DataType)
}

func TestHTTPClient_BasePathPrefix(t *testing.T) {
	upstream := newUpstream(t, "", map[string]string{
		"/sdqa/catalog/metrics":    metricsBody,
		"/sdqa/catalog/thresholds": thresholdsBody,
	})
	c := newClient(t, upstream.URL+"/sdqa", "")

	_, err := c.LoadCatalog(context.Background())
	require.NoError(t, err)
}

func TestHTTPClient_Failures(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		upstream := newUpstream(t, "", map[string]string{"/catalog/metrics": metricsBody})
		c := newClient(t, upstream.URL, "")
		_, err := c.LoadCatalog(context.Background())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unauthorized", func(t *testing.T) {
		upstream := newUpstream(t, "key", map[string]string{"/catalog/metrics": metricsBody})
		c := newClient(t, upstream.URL, "wrong")
		_, err := c.Metrics(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("bad data type", func(t *testing.T) {
		upstream := newUpstream(t, "", map[string]string{
			"/catalog/metrics": `{"items":[{"id":1,"name":"x","dataType":"STRING"}]}`,
		})
		c := newClient(t, upstream.URL, "")
		_, err := c.Metrics(context.Background())
		assert.True(t, domain.IsInvalidArgument(err))
	})

	t.Run("malformed body", func(t *testing.T) {
		upstream := newUpstream(t, "", map[string]string{"/catalog/thresholds": `{"items":`})
		c := newClient(t, upstream.URL, "")
		_, err := c.Thresholds(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode /catalog/thresholds")
	})
}

func TestNewHTTPClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPClient("catalog.local", "", time.Second, nil)
	assert.True(t, domain.IsInvalidArgument(err))
}
