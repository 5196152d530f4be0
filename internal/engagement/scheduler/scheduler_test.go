package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/engagement/budget"
	"engagement-scheduler/internal/engagement/generator"
	"engagement-scheduler/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	settings models.Settings
	types    []models.NotificationType
	products []models.Product
	names    []models.NameEntry
}

func (f *fakeSource) Settings() models.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakeSource) Types() []models.NotificationType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types
}

func (f *fakeSource) Products() []models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products
}

func (f *fakeSource) Names() []models.NameEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names
}

type fakeDisplay struct {
	mu    sync.Mutex
	shown []models.Notification
	hides int
}

func (d *fakeDisplay) Show(n models.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, n)
}

func (d *fakeDisplay) Hide() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hides++
}

func (d *fakeDisplay) shownCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown)
}

func (d *fakeDisplay) hideCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hides
}

func (d *fakeDisplay) first() models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown[0]
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries int
}

func (r *fakeRecorder) Record(_ context.Context, _ string, _ models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries++
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

type fakeBudget struct {
	mu          sync.Mutex
	allow       bool
	mayEmitHits int
	commits     int
}

func (b *fakeBudget) MayEmit(_ context.Context, _ int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mayEmitHits++
	return b.allow
}

func (b *fakeBudget) Commit(_ context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commits++
}

type fixedCounters struct{ viewing int }

func (c fixedCounters) ViewingNow(models.Product, time.Time) int { return c.viewing }

func (c fixedCounters) PurchasedToday(models.Product, time.Time) int { return 0 }

type stubGeo struct{}

func (stubGeo) Resolve(context.Context) models.LocationFix { return models.LocationFix{} }

func (stubGeo) City(context.Context, models.LocationFix, int) string { return "Moscow" }

func viewingSource(firstDelayMs, intervalMs, maxPerSession int) *fakeSource {
	return &fakeSource{
		settings: models.Settings{
			FirstDelayMs:       firstDelayMs,
			IntervalMs:         intervalMs,
			Order:              models.OrderRandom,
			MaxPerSession:      maxPerSession,
			CitySearchRadiusKm: 30,
		},
		types: []models.NotificationType{{
			Code:     models.TypeViewing,
			Template: "{count} people are viewing {product_name}",
			Enabled:  true,
		}},
		products: []models.Product{{ID: 1, Code: "FK-001", Name: "Felt Kit"}},
	}
}

func newTestScheduler(t *testing.T, sessionID string, src Source, b Budget, d Display, r Recorder, dwell time.Duration) *Scheduler {
	gen := generator.New(generator.Options{
		Counters:    fixedCounters{viewing: 3},
		Geo:         stubGeo{},
		DefaultName: "Anna",
		Logger:      logger.NewTestLogger(t),
	})
	return New(Options{
		SessionID:     sessionID,
		Source:        src,
		Generator:     gen,
		Budget:        b,
		Display:       d,
		Sink:          r,
		Logger:        logger.NewTestLogger(t),
		Dwell:         dwell,
		BootstrapPoll: 5 * time.Millisecond,
	})
}

func newTracker(t *testing.T, mr *miniredis.Miniredis, sessionID string) *budget.Tracker {
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return budget.NewTracker(budget.NewRedisStore(client, time.Hour), sessionID, logger.NewTestLogger(t))
}

func TestScheduler_SingleEmissionThenBudgetExhausted(t *testing.T) {
	mr := miniredis.RunT(t)
	tracker := newTracker(t, mr, "sess-a")
	src := viewingSource(30, 30, 1)
	display := &fakeDisplay{}
	rec := &fakeRecorder{}

	s := newTestScheduler(t, "sess-a", src, tracker, display, rec, 10*time.Millisecond)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return display.shownCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Several more interval fires pass; the cap of one keeps them all as
	// budget-exhausted no-ops.
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, display.shownCount())
	assert.Equal(t, "3 people are viewing Felt Kit", display.first().Message)
	assert.Equal(t, models.TypeViewing, display.first().TypeCode)

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, display.hideCount(), 1)

	val, err := mr.Get("engagement:session:sess-a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestScheduler_PreexistingRemoteCountYieldsNoEmissions(t *testing.T) {
	mr := miniredis.RunT(t)
	// The session already spent its budget before this scheduler existed,
	// as after a page reload.
	mr.Set("engagement:session:sess-b", "1")
	tracker := newTracker(t, mr, "sess-b")
	src := viewingSource(10, 20, 1)
	display := &fakeDisplay{}
	rec := &fakeRecorder{}

	s := newTestScheduler(t, "sess-b", src, tracker, display, rec, 10*time.Millisecond)
	require.NoError(t, s.Start())

	time.Sleep(300 * time.Millisecond)
	s.Stop()

	assert.Zero(t, display.shownCount())
	assert.Zero(t, rec.count())
}

func TestScheduler_ElapsedGuardSkipsBudgetQuery(t *testing.T) {
	b := &fakeBudget{allow: true}
	display := &fakeDisplay{}
	src := viewingSource(60000, 60000, 10)

	s := newTestScheduler(t, "sess-c", src, b, display, &fakeRecorder{}, time.Millisecond)
	s.lastEmit = time.Now()

	outcome := s.evaluate(context.Background(), src.Settings())
	assert.Equal(t, "throttled", outcome)
	assert.Zero(t, b.mayEmitHits)
	assert.Zero(t, display.shownCount())
}

func TestScheduler_StopDuringDwellDiscardsLogAppend(t *testing.T) {
	b := &fakeBudget{allow: true}
	display := &fakeDisplay{}
	rec := &fakeRecorder{}
	src := viewingSource(10, 10000, 10)

	s := newTestScheduler(t, "sess-d", src, b, display, rec, 5*time.Second)
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return display.shownCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	// Stop interrupted the dwell: the notification is hidden and the log
	// append never happens.
	assert.Equal(t, 1, display.hideCount())
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestScheduler_StopBeforeBootstrapReturnsPromptly(t *testing.T) {
	src := &fakeSource{settings: models.DefaultSettings()} // no types, no products
	s := newTestScheduler(t, "sess-e", src, &fakeBudget{}, &fakeDisplay{}, &fakeRecorder{}, time.Millisecond)
	require.NoError(t, s.Start())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while waiting on bootstrap")
	}
}

func TestScheduler_StartTwiceAndStopTwice(t *testing.T) {
	src := viewingSource(10000, 10000, 10)
	s := newTestScheduler(t, "sess-f", src, &fakeBudget{}, &fakeDisplay{}, &fakeRecorder{}, time.Millisecond)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	s.Stop()
	s.Stop() // idempotent

	require.NoError(t, s.Start())
	s.Stop()
}

func TestScheduler_SettingsRefreshAppliesOnNextArm(t *testing.T) {
	mr := miniredis.RunT(t)
	tracker := newTracker(t, mr, "sess-g")
	src := viewingSource(10, 200, 10)
	display := &fakeDisplay{}

	s := newTestScheduler(t, "sess-g", src, tracker, display, &fakeRecorder{}, time.Millisecond)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return display.shownCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// A back-office refresh shrinks the interval mid-session. The running
	// scheduler picks it up without being recreated.
	src.mu.Lock()
	src.settings.IntervalMs = 20
	src.mu.Unlock()

	assert.Eventually(t, func() bool { return display.shownCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
}
