// Package backoffice fetches the engagement bootstrap data (settings,
// notification types, name list) from the storefront back-office API.
// Payloads are schema-validated before use; a bad or unreachable endpoint
// degrades to the documented defaults instead of failing the session.
package backoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	commonerrors "engagement-scheduler/internal/common/errors"
	commonhttp "engagement-scheduler/internal/common/http"
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type Client struct {
	baseURL string
	client  *commonhttp.Client
	logger  logger.Logger
	timeout time.Duration
}

func NewClient(baseURL string, client *commonhttp.Client, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  client,
		logger:  log.WithFields(map[string]interface{}{"component": "backoffice"}),
		timeout: 10 * time.Second,
	}
}

// FetchSettings loads the engagement settings. Absent fields take the
// documented defaults; a failed fetch or schema-invalid payload returns
// an error and the caller falls back to models.DefaultSettings().
func (c *Client) FetchSettings(ctx context.Context) (models.Settings, error) {
	body, err := c.get(ctx, "/api/engagement/settings")
	if err != nil {
		return models.Settings{}, commonerrors.NewSettingsFetchFailedError(err)
	}

	if err := validate(body, settingsSchema); err != nil {
		return models.Settings{}, commonerrors.NewPayloadInvalidError("settings", err.Error())
	}

	var raw struct {
		FirstDelayMs       *int    `json:"firstDelayMs"`
		IntervalMs         *int    `json:"intervalMs"`
		Order              *string `json:"order"`
		MaxPerSession      *int    `json:"maxPerSession"`
		CitySearchRadiusKm *int    `json:"citySearchRadiusKm"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Settings{}, commonerrors.NewPayloadInvalidError("settings", err.Error())
	}

	settings := models.DefaultSettings()
	if raw.FirstDelayMs != nil {
		settings.FirstDelayMs = *raw.FirstDelayMs
	}
	if raw.IntervalMs != nil {
		settings.IntervalMs = *raw.IntervalMs
	}
	if raw.Order != nil {
		settings.Order = *raw.Order
	}
	if raw.MaxPerSession != nil {
		settings.MaxPerSession = *raw.MaxPerSession
	}
	if raw.CitySearchRadiusKm != nil {
		settings.CitySearchRadiusKm = *raw.CitySearchRadiusKm
	}

	return settings, nil
}

// FetchTypes loads the notification type list, filtered to enabled entries
// and sorted by their back-office sort order.
func (c *Client) FetchTypes(ctx context.Context) ([]models.NotificationType, error) {
	body, err := c.get(ctx, "/api/engagement/notification-types")
	if err != nil {
		return nil, commonerrors.NewTypesFetchFailedError(err)
	}

	if err := validate(body, typesSchema); err != nil {
		return nil, commonerrors.NewPayloadInvalidError("notification-types", err.Error())
	}

	var all []models.NotificationType
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, commonerrors.NewPayloadInvalidError("notification-types", err.Error())
	}

	enabled := make([]models.NotificationType, 0, len(all))
	for _, t := range all {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].SortOrder < enabled[j].SortOrder
	})

	return enabled, nil
}

// FetchNames loads the name list used by the purchased_local variant.
func (c *Client) FetchNames(ctx context.Context) ([]models.NameEntry, error) {
	body, err := c.get(ctx, "/api/engagement/names")
	if err != nil {
		return nil, commonerrors.NewNamesFetchFailedError(err)
	}

	if err := validate(body, namesSchema); err != nil {
		return nil, commonerrors.NewPayloadInvalidError("names", err.Error())
	}

	var names []models.NameEntry
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, commonerrors.NewPayloadInvalidError("names", err.Error())
	}

	return names, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	return io.ReadAll(resp.Body)
}

func validate(document []byte, schema string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return err
	}
	if !result.Valid() {
		msg := ""
		for _, desc := range result.Errors() {
			if msg != "" {
				msg += "; "
			}
			msg += desc.String()
		}
		return fmt.Errorf("schema validation failed: %s", msg)
	}
	return nil
}
