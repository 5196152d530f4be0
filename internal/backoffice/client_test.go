package backoffice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	commonhttp "engagement-scheduler/internal/common/http"
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, func()) {
	srv := httptest.NewServer(handler)
	c := NewClient(srv.URL, commonhttp.NewClient(2*time.Second), logger.NewTestLogger(t))
	return c, srv.Close
}

func TestClient_FetchSettings(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/engagement/settings", r.URL.Path)
		w.Write([]byte(`{"firstDelayMs": 1000, "intervalMs": 2000, "order": "sequential", "maxPerSession": 1}`))
	}))
	defer done()

	settings, err := c.FetchSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, settings.FirstDelayMs)
	assert.Equal(t, 2000, settings.IntervalMs)
	assert.Equal(t, models.OrderSequential, settings.Order)
	assert.Equal(t, 1, settings.MaxPerSession)
	// Absent field keeps its default.
	assert.Equal(t, 30, settings.CitySearchRadiusKm)
}

func TestClient_FetchSettings_EmptyPayloadGetsDefaults(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer done()

	settings, err := c.FetchSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)
}

func TestClient_FetchSettings_SchemaInvalid(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"order": "shuffled"}`))
	}))
	defer done()

	_, err := c.FetchSettings(context.Background())
	assert.Error(t, err)
}

func TestClient_FetchSettings_ServerError(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer done()

	_, err := c.FetchSettings(context.Background())
	assert.Error(t, err)
}

func TestClient_FetchTypes_FiltersAndSorts(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/engagement/notification-types", r.URL.Path)
		w.Write([]byte(`[
			{"code": "purchased_local", "template": "t3", "enabled": true, "sortOrder": 3},
			{"code": "viewing", "template": "t1", "enabled": true, "sortOrder": 1},
			{"code": "purchased_today", "template": "t2", "enabled": false, "sortOrder": 2}
		]`))
	}))
	defer done()

	types, err := c.FetchTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, models.TypeViewing, types[0].Code)
	assert.Equal(t, models.TypePurchasedLocal, types[1].Code)
}

func TestClient_FetchNames(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name": "Olga"}, {"name": "Dmitry"}]`))
	}))
	defer done()

	names, err := c.FetchNames(context.Background())
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "Olga", names[0].Name)
}

func TestClient_FetchNames_MissingNameField(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label": "Olga"}]`))
	}))
	defer done()

	_, err := c.FetchNames(context.Background())
	assert.Error(t, err)
}
