// Package logsink appends emitted notifications to the engagement log.
// Appends are fire-and-forget: the notification was already displayed, so
// failures are swallowed and never retried.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "engagement-scheduler/internal/common/errors"
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/common/metrics"
	"engagement-scheduler/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// locator is the fresh-resolve dependency used to enrich purchased
// variants at log time.
type locator interface {
	Resolve(ctx context.Context) models.LocationFix
}

type Sink struct {
	es     *elasticsearch.Client
	index  string
	geo    locator
	logger logger.Logger
	now    func() time.Time
}

func New(es *elasticsearch.Client, index string, geo locator, log logger.Logger) *Sink {
	return &Sink{
		es:     es,
		index:  index,
		geo:    geo,
		logger: log.WithFields(map[string]interface{}{"component": "logsink"}),
		now:    time.Now,
	}
}

// Record persists one emitted notification together with the variables
// used to build it. For the two purchased variants the entry embeds the
// location fields from a fresh resolver call.
func (s *Sink) Record(ctx context.Context, sessionID string, n models.Notification) {
	entry := models.LogEntry{
		NotificationID: n.ID,
		SessionID:      sessionID,
		TypeCode:       n.TypeCode,
		ProductID:      n.ProductID,
		ProductCode:    n.ProductCode,
		Message:        n.Message,
		Variables:      n.Variables,
		CreatedAt:      s.now().UTC().Format(time.RFC3339),
	}

	if n.TypeCode == models.TypePurchasedToday || n.TypeCode == models.TypePurchasedLocal {
		fix := s.geo.Resolve(ctx)
		entry.Lat = fix.Lat
		entry.Lon = fix.Lon
		entry.CityFromLookup = fix.CityFromLookup
		entry.CityFromRegistry = fix.CityFromRegistry
		entry.Country = fix.Country
	}

	body, err := json.Marshal(entry)
	if err != nil {
		s.swallow(err)
		return
	}

	res, err := s.es.Index(s.index, bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(n.ID),
	)
	if err != nil {
		s.swallow(err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		s.swallow(fmt.Errorf("index request rejected: %s", res.Status()))
		return
	}

	s.logger.Debug("notification logged", map[string]interface{}{
		"notificationId": n.ID,
		"typeCode":       n.TypeCode,
	})
}

func (s *Sink) swallow(err error) {
	metrics.UpstreamFailures.WithLabelValues("log_append").Inc()
	s.logger.WithError(commonerrors.NewLogAppendFailedError(err)).
		Warn("notification log append failed", nil)
}
