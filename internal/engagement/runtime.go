// Package engagement assembles the per-session notification pipeline:
// bootstrap data from the back-office and the catalog, the budget
// tracker, the candidate generator, the log sink and the scheduler that
// drives them.
package engagement

import (
	"context"
	"sync"
	"time"

	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/common/observability"
	"engagement-scheduler/internal/engagement/scheduler"
	"engagement-scheduler/internal/models"

	"github.com/google/uuid"
)

// bootstrapClient is the back-office surface the runtime loads session
// data from.
type bootstrapClient interface {
	FetchSettings(ctx context.Context) (models.Settings, error)
	FetchTypes(ctx context.Context) ([]models.NotificationType, error)
	FetchNames(ctx context.Context) ([]models.NameEntry, error)
}

type productSource interface {
	Products(ctx context.Context) ([]models.Product, error)
}

type RuntimeOptions struct {
	SessionID  string // empty generates a fresh session id
	Backoffice bootstrapClient
	Catalog    productSource
	Budget     scheduler.Budget
	Generator  scheduler.CandidateSource
	Display    scheduler.Display
	Sink       scheduler.Recorder
	Logger     logger.Logger

	Observability *observability.Observability
	Dwell         time.Duration
}

// Runtime owns the cached session snapshot and the scheduler reading it.
// Bootstrap and Refresh replace parts of the snapshot; the scheduler
// re-reads it on every fire, so refreshed values apply mid-session.
type Runtime struct {
	sessionID  string
	backoffice bootstrapClient
	catalog    productSource
	logger     logger.Logger
	sched      *scheduler.Scheduler

	mu       sync.RWMutex
	settings models.Settings
	types    []models.NotificationType
	products []models.Product
	names    []models.NameEntry
}

func NewRuntime(opts RuntimeOptions) *Runtime {
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	r := &Runtime{
		sessionID:  sessionID,
		backoffice: opts.Backoffice,
		catalog:    opts.Catalog,
		logger:     log.WithFields(map[string]interface{}{"component": "runtime", "sessionId": sessionID}),
		settings:   models.DefaultSettings(),
	}
	r.sched = scheduler.New(scheduler.Options{
		SessionID:     sessionID,
		Source:        r,
		Generator:     opts.Generator,
		Budget:        opts.Budget,
		Display:       opts.Display,
		Sink:          opts.Sink,
		Logger:        log,
		Observability: opts.Observability,
		Dwell:         opts.Dwell,
	})
	return r
}

func (r *Runtime) SessionID() string { return r.sessionID }

// Bootstrap loads the initial session snapshot. Every fetch degrades
// independently: failed settings keep the defaults, a failed type or
// catalog load leaves that part empty and the scheduler stays idle until
// a later Refresh fills it.
func (r *Runtime) Bootstrap(ctx context.Context) {
	r.Refresh(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()
	r.logger.Info("session bootstrapped", map[string]interface{}{
		"types":    len(r.types),
		"products": len(r.products),
		"names":    len(r.names),
		"order":    r.settings.Order,
	})
}

// Refresh re-fetches the session data. Each part is replaced only on a
// successful fetch; failures keep the previous value.
func (r *Runtime) Refresh(ctx context.Context) {
	if settings, err := r.backoffice.FetchSettings(ctx); err != nil {
		r.logger.WithError(err).Warn("settings fetch failed, keeping current values", nil)
	} else {
		r.mu.Lock()
		r.settings = settings
		r.mu.Unlock()
	}

	if types, err := r.backoffice.FetchTypes(ctx); err != nil {
		r.logger.WithError(err).Warn("notification types fetch failed", nil)
	} else {
		r.mu.Lock()
		r.types = types
		r.mu.Unlock()
	}

	if names, err := r.backoffice.FetchNames(ctx); err != nil {
		r.logger.WithError(err).Warn("names fetch failed", nil)
	} else {
		r.mu.Lock()
		r.names = names
		r.mu.Unlock()
	}

	if products, err := r.catalog.Products(ctx); err != nil {
		r.logger.WithError(err).Warn("catalog load failed", nil)
	} else {
		r.mu.Lock()
		r.products = products
		r.mu.Unlock()
	}
}

// Start launches the scheduler. Call Bootstrap first; starting with an
// empty snapshot leaves the scheduler polling until data arrives.
func (r *Runtime) Start() error { return r.sched.Start() }

func (r *Runtime) Stop() { r.sched.Stop() }

// scheduler.Source implementation.

func (r *Runtime) Settings() models.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

func (r *Runtime) Types() []models.NotificationType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types
}

func (r *Runtime) Products() []models.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.products
}

func (r *Runtime) Names() []models.NameEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names
}
