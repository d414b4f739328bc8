package identity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mcpgate/pkg/logging"
)

// Headers a client can send to have its note sync repository configured.
const (
	SyncRepoHeader   = "X-Obsidian-Repo-URL"
	SyncTokenHeader  = "X-Obsidian-Token"
	SyncBranchHeader = "X-Obsidian-Branch"

	defaultSyncBranch = "main"
	syncWriteTimeout  = 10 * time.Second
)

// SyncConfigurer persists a user's sync repository settings. changed is false
// when the stored settings already matched.
type SyncConfigurer interface {
	AutoConfigure(ctx context.Context, userID, repoURL, token, branch string) (changed bool, err error)
}

// SyncTrigger performs the opportunistic sync-settings write at most once per
// cooldown per user. Writes run in the background and never affect the request.
type SyncTrigger struct {
	configurer SyncConfigurer
	cooldown   time.Duration

	mu        sync.Mutex
	limiters  map[string]*syncLimiter
	lastSweep time.Time

	wg sync.WaitGroup
}

type syncLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSyncTrigger creates a trigger. A zero cooldown disables rate limiting.
func NewSyncTrigger(configurer SyncConfigurer, cooldown time.Duration) *SyncTrigger {
	return &SyncTrigger{
		configurer: configurer,
		cooldown:   cooldown,
		limiters:   make(map[string]*syncLimiter),
	}
}

// Observe inspects r for sync headers and schedules a write when allowed.
func (t *SyncTrigger) Observe(r *http.Request, userID string) {
	repoURL := r.Header.Get(SyncRepoHeader)
	token := r.Header.Get(SyncTokenHeader)
	if repoURL == "" || token == "" {
		return
	}
	branch := r.Header.Get(SyncBranchHeader)
	if branch == "" {
		branch = defaultSyncBranch
	}

	if !t.allow(userID) {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, syncWriteTimeout)
		defer cancel()

		changed, err := t.configurer.AutoConfigure(ctx, userID, repoURL, token, branch)
		if err != nil {
			logging.Warn("Identity", "Sync auto-configuration failed for user %s: %v", logging.TruncateID(userID), err)
			return
		}
		if changed {
			logging.Info("Identity", "Sync repository configured for user %s", logging.TruncateID(userID))
		}
	}()
}

func (t *SyncTrigger) allow(userID string) bool {
	if t.cooldown <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.lastSweep) > t.cooldown {
		t.sweep(now)
	}

	entry, ok := t.limiters[userID]
	if !ok {
		entry = &syncLimiter{limiter: rate.NewLimiter(rate.Every(t.cooldown), 1)}
		t.limiters[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops limiters idle for a full cooldown. Such a limiter has refilled
// its single token, so recreating it later changes nothing.
func (t *SyncTrigger) sweep(now time.Time) {
	cutoff := now.Add(-t.cooldown)
	for userID, entry := range t.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(t.limiters, userID)
		}
	}
	t.lastSweep = now
}

func (t *SyncTrigger) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

// Wait blocks until all scheduled writes have finished.
func (t *SyncTrigger) Wait() {
	t.wg.Wait()
}
