// internal/models/engagement.go
package models

import "time"

// Notification type codes
const (
	TypeViewing        = "viewing"
	TypePurchasedToday = "purchased_today"
	TypePurchasedLocal = "purchased_local"
)

// Type selection orders
const (
	OrderSequential = "sequential"
	OrderRandom     = "random"
)

// Settings is the per-session engagement configuration, loaded once from
// the back-office and cached. A fresh load may change values mid-session;
// consumers re-read the current snapshot on every use.
type Settings struct {
	FirstDelayMs       int    `json:"firstDelayMs"`
	IntervalMs         int    `json:"intervalMs"`
	Order              string `json:"order"` // "sequential" or "random"
	MaxPerSession      int    `json:"maxPerSession"`
	CitySearchRadiusKm int    `json:"citySearchRadiusKm"`
}

func (s Settings) FirstDelay() time.Duration {
	return time.Duration(s.FirstDelayMs) * time.Millisecond
}

func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// DefaultSettings returns the documented fallback values applied when the
// back-office fetch is unavailable or a field is absent.
func DefaultSettings() Settings {
	return Settings{
		FirstDelayMs:       60000,
		IntervalMs:         60000,
		Order:              OrderRandom,
		MaxPerSession:      10,
		CitySearchRadiusKm: 30,
	}
}

// NotificationType is owned and edited by the back-office; the scheduler
// treats the loaded list as read-only.
type NotificationType struct {
	Code      string `json:"code"`
	Template  string `json:"template"` // message with {placeholder} markers
	Enabled   bool   `json:"enabled"`
	SortOrder int    `json:"sortOrder"`
}

// NameEntry is sampled by the purchased_local variant.
type NameEntry struct {
	Name string `json:"name"`
}

// Product is one row of the catalog read model. The derived counters
// (viewing-now, purchased-today) are computed from Purchases by the
// catalog package, never stored.
type Product struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Purchases int    `json:"purchases"`
}

// Notification is ephemeral: created by the generator, consumed by the
// scheduler, handed to the log sink, then discarded.
type Notification struct {
	ID          string `json:"id"`
	TypeCode    string `json:"typeCode"`
	ProductID   int64  `json:"productId"`
	ProductCode string `json:"productCode"`
	Message     string `json:"message"`

	// Variant-specific fields
	Count    int    `json:"count,omitempty"`    // viewing, purchased_today
	City     string `json:"city,omitempty"`     // purchased_local
	Name     string `json:"name,omitempty"`     // purchased_local
	HoursAgo int    `json:"hoursAgo,omitempty"` // purchased_local

	// Variables holds the resolved template substitutions, kept for the
	// log entry only.
	Variables map[string]string `json:"-"`
}

// LocationFix is a best-effort snapshot. Every field is independently
// nullable; it is requested fresh per purchased_local emission, never
// cached.
type LocationFix struct {
	Lat              *float64 `json:"lat"`
	Lon              *float64 `json:"lon"`
	CityFromLookup   string   `json:"cityFromLookup,omitempty"`
	CityFromRegistry string   `json:"cityFromRegistry,omitempty"`
	Country          string   `json:"country,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude resolved.
func (f LocationFix) HasCoordinates() bool {
	return f.Lat != nil && f.Lon != nil
}

// LogEntry is the document appended to the notification log for each
// emission.
type LogEntry struct {
	NotificationID string            `json:"notificationId"`
	SessionID      string            `json:"sessionId"`
	TypeCode       string            `json:"typeCode"`
	ProductID      int64             `json:"productId"`
	ProductCode    string            `json:"productCode"`
	Message        string            `json:"message"`
	Variables      map[string]string `json:"variables,omitempty"`

	// Location fields, populated only for the purchased variants from a
	// fresh resolver call at log time.
	Lat              *float64 `json:"lat,omitempty"`
	Lon              *float64 `json:"lon,omitempty"`
	CityFromLookup   string   `json:"cityFromLookup,omitempty"`
	CityFromRegistry string   `json:"cityFromRegistry,omitempty"`
	Country          string   `json:"country,omitempty"`

	CreatedAt string `json:"createdAt"` // ISO 8601
}
