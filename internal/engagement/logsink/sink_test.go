package logsink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocator struct {
	fix      models.LocationFix
	resolved int
}

func (s *stubLocator) Resolve(_ context.Context) models.LocationFix {
	s.resolved++
	return s.fix
}

func newTestSink(t *testing.T, handler http.Handler, geo locator) (*Sink, func()) {
	srv := httptest.NewServer(handler)
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return New(es, "engagement-notifications", geo, logger.NewTestLogger(t)), srv.Close
}

func TestSink_Record_AppendsDocument(t *testing.T) {
	var gotPath string
	var gotEntry models.LogEntry
	geo := &stubLocator{}

	sink, done := newTestSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotEntry)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "created"}`))
	}), geo)
	defer done()

	n := models.Notification{
		ID:          "abc-123",
		TypeCode:    models.TypeViewing,
		ProductID:   1,
		ProductCode: "FK-001",
		Message:     "3 people are viewing Felt Kit",
		Variables:   map[string]string{"count": "3", "product_name": "Felt Kit"},
	}
	sink.Record(context.Background(), "sess-1", n)

	assert.True(t, strings.HasPrefix(gotPath, "/engagement-notifications/_doc/abc-123"), gotPath)
	assert.Equal(t, "sess-1", gotEntry.SessionID)
	assert.Equal(t, "3 people are viewing Felt Kit", gotEntry.Message)
	assert.Equal(t, "3", gotEntry.Variables["count"])
	// viewing entries carry no location and trigger no resolve
	assert.Zero(t, geo.resolved)
	assert.Nil(t, gotEntry.Lat)
}

func TestSink_Record_PurchasedVariantEmbedsFreshLocation(t *testing.T) {
	lat, lon := 55.75, 37.61
	geo := &stubLocator{fix: models.LocationFix{
		Lat: &lat, Lon: &lon, CityFromRegistry: "Khimki", Country: "RU",
	}}

	var gotEntry models.LogEntry
	sink, done := newTestSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotEntry)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "created"}`))
	}), geo)
	defer done()

	sink.Record(context.Background(), "sess-2", models.Notification{
		ID: "def-456", TypeCode: models.TypePurchasedLocal, Message: "m",
	})

	assert.Equal(t, 1, geo.resolved)
	require.NotNil(t, gotEntry.Lat)
	assert.InDelta(t, 55.75, *gotEntry.Lat, 0.001)
	assert.Equal(t, "Khimki", gotEntry.CityFromRegistry)
	assert.Equal(t, "RU", gotEntry.Country)
}

func TestSink_Record_FailureIsSwallowed(t *testing.T) {
	sink, done := newTestSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), &stubLocator{})
	defer done()

	// Must not panic or propagate anything.
	sink.Record(context.Background(), "sess-3", models.Notification{
		ID: "ghi-789", TypeCode: models.TypeViewing, Message: "m",
	})
}
