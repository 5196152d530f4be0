// Package catalog exposes the storefront product read model and the two
// derived engagement counters. The counters are computed, never stored:
// the scheduler only reads them.
package catalog

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	commonerrors "engagement-scheduler/internal/common/errors"
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/models"
)

const (
	// Upper bounds for the derived counters. Zero stays a reachable value:
	// a zero counter suppresses the candidate instead of rendering a
	// "0 people" message.
	maxViewingNow     = 7
	maxPurchasedToday = 15
)

// Store reads products from the storefront database.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "catalog"}),
	}
}

// Products loads the full active catalog with the purchase counters the
// derived metrics are computed from.
func (s *Store) Products(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, purchase_count FROM products WHERE active = true ORDER BY id`)
	if err != nil {
		return nil, commonerrors.NewCatalogQueryFailedError(err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Purchases); err != nil {
			return nil, commonerrors.NewCatalogQueryFailedError(err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewCatalogQueryFailedError(err)
	}

	return products, nil
}

// ViewingNow returns the pseudo-random "people viewing this right now"
// counter. It is seeded by product id, purchase count and the current
// hour: deterministic within an hour, different the next one.
func (s *Store) ViewingNow(p models.Product, now time.Time) int {
	seed := p.ID*1000003 + int64(p.Purchases)*31 + now.Truncate(time.Hour).Unix()
	return rand.New(rand.NewSource(seed)).Intn(maxViewingNow + 1)
}

// PurchasedToday returns the "bought today" counter derived from the
// product's purchase counter and the current date. A product nobody ever
// bought always reports zero.
func (s *Store) PurchasedToday(p models.Product, now time.Time) int {
	if p.Purchases == 0 {
		return 0
	}
	limit := p.Purchases
	if limit > maxPurchasedToday {
		limit = maxPurchasedToday
	}
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Unix()
	seed := p.ID*86629 + day
	return rand.New(rand.NewSource(seed)).Intn(limit + 1)
}
