// Package scheduler drives the notification lifecycle for one visitor
// session. Two timer events, the one-shot first delay and the recurring
// interval, feed a single-slot state machine: at most one notification
// is in flight at any moment, and an elapsed-time guard drops interval
// fires that land while the previous emission is still fresh.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/common/metrics"
	"engagement-scheduler/internal/common/observability"
	"engagement-scheduler/internal/models"
)

// defaultDwell is how long an emitted notification stays visible before
// it is hidden again.
const defaultDwell = 5 * time.Second

// defaultBootstrapPoll is how often the scheduler re-checks the session
// data while waiting for the catalog and type list to become non-empty.
const defaultBootstrapPoll = 250 * time.Millisecond

// Source supplies the current session data snapshot. Implementations
// may refresh the underlying values mid-session; the scheduler re-reads
// them on every fire.
type Source interface {
	Settings() models.Settings
	Types() []models.NotificationType
	Products() []models.Product
	Names() []models.NameEntry
}

// CandidateSource builds one notification candidate per fire.
type CandidateSource interface {
	Next(ctx context.Context, settings models.Settings, types []models.NotificationType, products []models.Product, names []models.NameEntry) *models.Notification
}

// Budget gates and records emissions against the per-session cap.
type Budget interface {
	MayEmit(ctx context.Context, maxPerSession int) bool
	Commit(ctx context.Context)
}

// Display is the presentation surface the scheduler shows and hides
// notifications on.
type Display interface {
	Show(n models.Notification)
	Hide()
}

// Recorder appends an emitted notification to the engagement log.
type Recorder interface {
	Record(ctx context.Context, sessionID string, n models.Notification)
}

type Options struct {
	SessionID     string
	Source        Source
	Generator     CandidateSource
	Budget        Budget
	Display       Display
	Sink          Recorder
	Logger        logger.Logger
	Observability *observability.Observability

	Dwell         time.Duration // optional, defaults to 5s
	BootstrapPoll time.Duration // optional
	Now           func() time.Time
}

type Scheduler struct {
	sessionID string
	src       Source
	gen       CandidateSource
	budget    Budget
	display   Display
	sink      Recorder
	logger    logger.Logger
	obs       *observability.Observability

	dwell         time.Duration
	bootstrapPoll time.Duration
	now           func() time.Time

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastEmit time.Time
}

func New(opts Options) *Scheduler {
	dwell := opts.Dwell
	if dwell <= 0 {
		dwell = defaultDwell
	}
	poll := opts.BootstrapPoll
	if poll <= 0 {
		poll = defaultBootstrapPoll
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Scheduler{
		sessionID:     opts.SessionID,
		src:           opts.Source,
		gen:           opts.Generator,
		budget:        opts.Budget,
		display:       opts.Display,
		sink:          opts.Sink,
		logger:        log.WithFields(map[string]interface{}{"component": "scheduler", "sessionId": opts.SessionID}),
		obs:           opts.Observability,
		dwell:         dwell,
		bootstrapPoll: poll,
		now:           now,
	}
}

// Start launches the run loop. It returns an error when the scheduler
// is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	s.logger.Info("scheduler started", nil)
	return nil
}

// Stop cancels both timers and waits for the run loop to exit. Any
// in-flight fire is abandoned: its notification is hidden and its log
// append is skipped. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped", nil)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	if !s.awaitBootstrap(ctx) {
		return
	}

	settings := s.src.Settings()
	first := time.NewTimer(settings.FirstDelay())
	interval := time.NewTimer(settings.Interval())
	defer first.Stop()
	defer interval.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-first.C:
			s.fire(ctx)
		case <-interval.C:
			s.fire(ctx)
			// Re-armed with the current snapshot, so a settings refresh
			// takes effect on the next cycle without a restart.
			interval.Reset(s.src.Settings().Interval())
		}
	}
}

// awaitBootstrap blocks until the session has at least one enabled type
// and one product, or the scheduler is stopped. The timers start only
// after this resolves so the first delay counts from a usable session.
func (s *Scheduler) awaitBootstrap(ctx context.Context) bool {
	for {
		if len(s.src.Types()) > 0 && len(s.src.Products()) > 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.bootstrapPoll):
		}
	}
}

// fire evaluates one timer event. Order matters: the elapsed guard runs
// before the budget query so throttled fires never touch the store.
func (s *Scheduler) fire(ctx context.Context) {
	start := s.now()
	settings := s.src.Settings()

	outcome := s.evaluate(ctx, settings)

	metrics.SchedulerTicks.WithLabelValues(outcome).Inc()
	if s.obs != nil {
		s.obs.RecordTick(ctx, outcome)
		s.obs.RecordTickDuration(ctx, s.now().Sub(start), outcome)
	}
}

func (s *Scheduler) evaluate(ctx context.Context, settings models.Settings) string {
	s.mu.Lock()
	elapsed := s.now().Sub(s.lastEmit)
	throttled := !s.lastEmit.IsZero() && elapsed < settings.Interval()
	s.mu.Unlock()

	if throttled {
		s.logger.Debug("fire throttled", map[string]interface{}{
			"elapsedMs":  elapsed.Milliseconds(),
			"intervalMs": settings.IntervalMs,
		})
		return metrics.OutcomeThrottled
	}

	if !s.budget.MayEmit(ctx, settings.MaxPerSession) {
		return metrics.OutcomeBudget
	}

	n := s.gen.Next(ctx, settings, s.src.Types(), s.src.Products(), s.src.Names())
	if n == nil {
		return metrics.OutcomeNoCandidate
	}

	s.emit(ctx, *n)
	return metrics.OutcomeEmitted
}

// emit commits the budget, shows the notification for the dwell period,
// hides it, then hands it to the log sink off the scheduling goroutine.
func (s *Scheduler) emit(ctx context.Context, n models.Notification) {
	s.mu.Lock()
	s.lastEmit = s.now()
	s.mu.Unlock()

	s.budget.Commit(ctx)
	s.display.Show(n)
	metrics.NotificationsEmitted.WithLabelValues(n.TypeCode).Inc()
	s.logger.Info("notification emitted", map[string]interface{}{
		"notificationId": n.ID,
		"typeCode":       n.TypeCode,
		"productId":      n.ProductID,
	})

	dwell := time.NewTimer(s.dwell)
	defer dwell.Stop()
	select {
	case <-dwell.C:
		s.display.Hide()
		// Detached from the run loop and from the stop signal: the
		// notification was shown, so its log entry is owed regardless.
		go s.sink.Record(context.Background(), s.sessionID, n)
	case <-ctx.Done():
		s.display.Hide()
	}
}
