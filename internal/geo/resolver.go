// Package geo resolves an approximate visitor location through a chain of
// best-effort lookups. Nothing in this package ever returns an error to
// the caller: any upstream failure leaves the affected fields null.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	commonerrors "engagement-scheduler/internal/common/errors"
	commonhttp "engagement-scheduler/internal/common/http"
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/common/metrics"
	"engagement-scheduler/internal/models"
)

type Config struct {
	LookupURL     string
	RegistryURL   string
	CitySearchURL string
	DefaultCity   string
	Timeout       time.Duration
}

type Resolver struct {
	config Config
	client *commonhttp.Client
	logger logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewResolver(config Config, client *commonhttp.Client, log logger.Logger) *Resolver {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	return &Resolver{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "geo"}),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Resolve returns a fresh best-effort location fix. There is deliberately
// no caching: each purchased_local emission re-resolves so the displayed
// city varies plausibly over a session.
func (r *Resolver) Resolve(ctx context.Context) models.LocationFix {
	var fix models.LocationFix

	if r.config.LookupURL != "" {
		var lookup struct {
			Lat     *float64 `json:"lat"`
			Lon     *float64 `json:"lon"`
			City    string   `json:"city"`
			Country string   `json:"country"`
		}
		if err := r.getJSON(ctx, r.config.LookupURL, &lookup); err != nil {
			r.logger.WithError(commonerrors.NewGeoLookupFailedError("lookup", err)).
				Warn("geolocation lookup failed", nil)
			metrics.UpstreamFailures.WithLabelValues("geo_lookup").Inc()
		} else {
			fix.Lat = lookup.Lat
			fix.Lon = lookup.Lon
			fix.CityFromLookup = lookup.City
			fix.Country = lookup.Country
		}
	}

	// The registry service names a city for coordinates, so it is only
	// consulted when the primary lookup produced both of them.
	if r.config.RegistryURL != "" && fix.HasCoordinates() {
		var registry struct {
			City string `json:"city"`
		}
		u := fmt.Sprintf("%s?lat=%f&lon=%f", r.config.RegistryURL, *fix.Lat, *fix.Lon)
		if err := r.getJSON(ctx, u, &registry); err != nil {
			r.logger.WithError(commonerrors.NewGeoLookupFailedError("registry", err)).
				Warn("registry city lookup failed", nil)
			metrics.UpstreamFailures.WithLabelValues("geo_registry").Inc()
		} else {
			fix.CityFromRegistry = registry.City
		}
	}

	return fix
}

// NearbyCity samples one city uniformly from the radius search results.
// It reports false when coordinates are missing, the search fails, or no
// city lies within the radius.
func (r *Resolver) NearbyCity(ctx context.Context, fix models.LocationFix, radiusKm int) (string, bool) {
	if r.config.CitySearchURL == "" || !fix.HasCoordinates() {
		return "", false
	}

	var result struct {
		Cities []string `json:"cities"`
	}
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", *fix.Lat))
	q.Set("lon", fmt.Sprintf("%f", *fix.Lon))
	q.Set("radius_km", fmt.Sprintf("%d", radiusKm))
	if err := r.getJSON(ctx, r.config.CitySearchURL+"?"+q.Encode(), &result); err != nil {
		r.logger.WithError(commonerrors.NewCitySearchFailedError(err)).
			Warn("radius city search failed", nil)
		metrics.UpstreamFailures.WithLabelValues("geo_city_search").Inc()
		return "", false
	}
	if len(result.Cities) == 0 {
		return "", false
	}

	r.mu.Lock()
	idx := r.rng.Intn(len(result.Cities))
	r.mu.Unlock()
	return result.Cities[idx], true
}

// City derives a display city name from a fix, in fallback order: radius
// search result, registry city, lookup city, configured default literal.
func (r *Resolver) City(ctx context.Context, fix models.LocationFix, radiusKm int) string {
	if city, ok := r.NearbyCity(ctx, fix, radiusKm); ok {
		return city
	}
	if fix.CityFromRegistry != "" {
		return fix.CityFromRegistry
	}
	if fix.CityFromLookup != "" {
		return fix.CityFromLookup
	}
	return r.config.DefaultCity
}

func (r *Resolver) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
