// Package budget enforces the per-session notification cap cooperatively
// with the remote counter. The remote value always wins when reachable;
// the local counter is only an approximation that avoids blocking the
// feature during an outage.
package budget

import (
	"context"
	"sync"

	commonerrors "engagement-scheduler/internal/common/errors"
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/common/metrics"
)

type Tracker struct {
	store     Store
	sessionID string
	logger    logger.Logger

	mu         sync.Mutex
	localCount int
}

func NewTracker(store Store, sessionID string, log logger.Logger) *Tracker {
	return &Tracker{
		store:     store,
		sessionID: sessionID,
		logger:    log.WithFields(map[string]interface{}{"component": "budget", "sessionId": sessionID}),
	}
}

// MayEmit reconciles against the remote counter and reports whether one
// more notification fits the budget. On a successful query the remote
// value overwrites the local counter, which is what makes the budget
// survive full reloads and, within the race window, concurrent tabs. On
// failure the local counter decides: availability over strict correctness
// for a cosmetic feature.
func (t *Tracker) MayEmit(ctx context.Context, maxPerSession int) bool {
	remote, err := t.store.SessionCount(ctx, t.sessionID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.logger.WithError(commonerrors.NewBudgetQueryFailedError(t.sessionID, err)).
			Warn("remote budget query failed, using local count", map[string]interface{}{
				"localCount": t.localCount,
			})
		metrics.BudgetFallbacks.Inc()
	} else {
		t.localCount = remote
	}

	return t.localCount < maxPerSession
}

// Commit records one emission: optimistic local increment plus a
// best-effort remote increment. A failed remote call silently
// under-counts, which is accepted; a remote value that is ahead (another
// tab emitted first) is adopted.
func (t *Tracker) Commit(ctx context.Context) {
	t.mu.Lock()
	t.localCount++
	local := t.localCount
	t.mu.Unlock()

	remote, err := t.store.Increment(ctx, t.sessionID)
	if err != nil {
		t.logger.WithError(commonerrors.NewBudgetCommitFailedError(t.sessionID, err)).
			Warn("remote budget increment failed", nil)
		return
	}

	t.mu.Lock()
	if remote > local {
		t.localCount = remote
	}
	t.mu.Unlock()
}

// LocalCount returns the current local approximation.
func (t *Tracker) LocalCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localCount
}
