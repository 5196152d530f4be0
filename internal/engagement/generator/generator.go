// Package generator produces one concrete notification candidate per
// scheduling tick, or reports that no valid candidate exists.
package generator

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/common/metrics"
	"engagement-scheduler/internal/content"
	"engagement-scheduler/internal/models"

	"github.com/google/uuid"
)

// A tick gives up after this many failed attempts instead of looping
// until a non-zero counter turns up. Rare candidates get slightly
// under-represented in exchange for bounded latency.
const maxAttemptsPerTick = 5

// CounterSource provides the derived catalog counters.
type CounterSource interface {
	ViewingNow(p models.Product, now time.Time) int
	PurchasedToday(p models.Product, now time.Time) int
}

// LocationSource resolves the visitor location for the purchased_local
// variant.
type LocationSource interface {
	Resolve(ctx context.Context) models.LocationFix
	City(ctx context.Context, fix models.LocationFix, radiusKm int) string
}

type Options struct {
	Counters    CounterSource
	Geo         LocationSource
	DefaultName string
	Logger      logger.Logger
	Rand        *rand.Rand       // optional, deterministic selection for tests
	Now         func() time.Time // optional clock override
}

type Generator struct {
	counters    CounterSource
	geo         LocationSource
	defaultName string
	logger      logger.Logger
	now         func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	permKey string
	perm    []int
	pos     int
}

func New(opts Options) *Generator {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Generator{
		counters:    opts.Counters,
		geo:         opts.Geo,
		defaultName: opts.DefaultName,
		logger:      log.WithFields(map[string]interface{}{"component": "generator"}),
		now:         now,
		rng:         rng,
	}
}

// Next attempts to build one candidate. types must already be filtered
// to enabled entries, the form backoffice.FetchTypes returns; disabled
// entries passed here would be drawn like any other. It returns nil when
// no valid candidate could be produced within the attempt bound; the
// caller skips the tick and tries again at the next interval.
func (g *Generator) Next(ctx context.Context, settings models.Settings, types []models.NotificationType, products []models.Product, names []models.NameEntry) *models.Notification {
	if len(types) == 0 || len(products) == 0 {
		return nil
	}

	for attempt := 1; attempt <= maxAttemptsPerTick; attempt++ {
		nt := g.selectType(settings, types)
		product := products[g.intn(len(products))]

		if n := g.build(ctx, settings, nt, product, names); n != nil {
			g.advanceCursor(settings)
			metrics.GeneratorAttempts.Observe(float64(attempt))
			return n
		}
	}

	g.logger.Debug("no valid candidate this tick", map[string]interface{}{
		"attempts": maxAttemptsPerTick,
	})
	return nil
}

// selectType picks a notification type. Sequential mode walks a shuffled
// permutation of the enabled set with wraparound, so every enabled type
// shows once per full cycle in a session-stable but non-predictable
// order. The cursor stays put until a candidate is actually produced: a
// failed attempt retries the same type with a freshly drawn product
// instead of skipping it for the rest of the cycle. Random mode draws
// with replacement each attempt.
func (g *Generator) selectType(settings models.Settings, types []models.NotificationType) models.NotificationType {
	g.mu.Lock()
	defer g.mu.Unlock()

	if settings.Order != models.OrderSequential {
		return types[g.rng.Intn(len(types))]
	}

	key := permKey(types)
	if key != g.permKey {
		g.perm = g.rng.Perm(len(types))
		g.pos = 0
		g.permKey = key
	}
	return types[g.perm[g.pos%len(g.perm)]]
}

// advanceCursor moves the sequential walk past the type that just
// produced a candidate.
func (g *Generator) advanceCursor(settings models.Settings) {
	if settings.Order != models.OrderSequential {
		return
	}
	g.mu.Lock()
	g.pos++
	g.mu.Unlock()
}

func (g *Generator) build(ctx context.Context, settings models.Settings, nt models.NotificationType, product models.Product, names []models.NameEntry) *models.Notification {
	now := g.now()
	vars := map[string]string{
		"product_name": product.Name,
		"product_code": product.Code,
	}
	n := &models.Notification{
		ID:          uuid.New().String(),
		TypeCode:    nt.Code,
		ProductID:   product.ID,
		ProductCode: product.Code,
	}

	switch nt.Code {
	case models.TypeViewing:
		count := g.counters.ViewingNow(product, now)
		if count == 0 {
			// "0 people are viewing" is defined as invalid, never shown.
			return nil
		}
		n.Count = count
		vars["count"] = strconv.Itoa(count)

	case models.TypePurchasedToday:
		count := g.counters.PurchasedToday(product, now)
		if count == 0 {
			return nil
		}
		n.Count = count
		vars["count"] = strconv.Itoa(count)

	case models.TypePurchasedLocal:
		// Always valid: no counter gate. Location is resolved fresh each
		// time so the displayed city varies plausibly.
		fix := g.geo.Resolve(ctx)
		n.City = g.geo.City(ctx, fix, settings.CitySearchRadiusKm)
		n.Name = g.defaultName
		if len(names) > 0 {
			n.Name = names[g.intn(len(names))].Name
		}
		n.HoursAgo = g.intn(6) + 1
		vars["city"] = n.City
		vars["name"] = n.Name
		vars["hours_ago"] = strconv.Itoa(n.HoursAgo)

	default:
		g.logger.Warn("unknown notification type code", map[string]interface{}{
			"code": nt.Code,
		})
		return nil
	}

	n.Message = content.Render(nt.Template, vars)
	n.Variables = vars
	return n
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func permKey(types []models.NotificationType) string {
	codes := make([]string, len(types))
	for i, t := range types {
		codes[i] = t.Code
	}
	return strings.Join(codes, ",")
}
