package lottery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL bounds how long an abandoned surface can hold its lock.
const DefaultSessionTTL = 30 * time.Minute

// ReadSource supplies a visitor's read set.
type ReadSource interface {
	Slugs(ctx context.Context, visitorID string) ([]string, error)
	Count(ctx context.Context, visitorID string) (int, error)
}

// RedemptionStore owns each visitor's redemption count. Increment only
// succeeds while the stored count still equals from; otherwise it returns
// ErrRedeemCountChanged.
type RedemptionStore interface {
	Count(ctx context.Context, visitorID string) (int, error)
	Increment(ctx context.Context, visitorID string, from int) (int, error)
}

// Redemption describes a credited entry.
type Redemption struct {
	SessionID   uuid.UUID
	VisitorID   string
	RedeemCount int
	DrawLabel   string
	At          time.Time
}

// Event names pushed to connected pages.
const (
	EventDismissed  = "lottery:dismissed"
	EventRedeemed   = "lottery:redeemed"
	EventDrawClosed = "draw:closed"
)

// Hooks let the server react to surface events. Both are optional.
type Hooks struct {
	OnRedeemed  func(ctx context.Context, r Redemption)
	OnDismissed func(visitorID string, sessionID uuid.UUID)
}

type session struct {
	id        uuid.UUID
	visitorID string
	tracker   *Tracker
	openedAt  time.Time
}

// Registry holds the mounted trackers and acts as their host.
type Registry struct {
	reads       ReadSource
	redemptions RedemptionStore
	opts        Options
	hooks       Hooks
	ttl         time.Duration
	log         *zap.Logger

	mu         sync.Mutex
	sessions   map[uuid.UUID]*session
	locks      map[string]*ScrollLock
	submitting map[string]bool
}

func NewRegistry(reads ReadSource, redemptions RedemptionStore, opts Options, hooks Hooks, ttl time.Duration) *Registry {
	opts = opts.withDefaults()
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		reads:       reads,
		redemptions: redemptions,
		opts:        opts,
		hooks:       hooks,
		ttl:         ttl,
		log:         opts.Logger.With(zap.String("component", "lottery-registry")),
		sessions:    make(map[uuid.UUID]*session),
		locks:       make(map[string]*ScrollLock),
		submitting:  make(map[string]bool),
	}
}

func (r *Registry) Threshold() int          { return r.opts.Threshold }
func (r *Registry) Schedule() *DrawSchedule { return r.opts.Schedule }

// Eligibility returns the counts for a visitor without opening a surface.
func (r *Registry) Eligibility(ctx context.Context, visitorID string) (View, error) {
	reads, err := r.reads.Count(ctx, visitorID)
	if err != nil {
		return View{}, fmt.Errorf("lottery: load read count: %w", err)
	}
	redeemed, err := r.redemptions.Count(ctx, visitorID)
	if err != nil {
		return View{}, fmt.Errorf("lottery: load redeem count: %w", err)
	}
	return View{
		ReadCount:   reads,
		RedeemCount: redeemed,
		Threshold:   r.opts.Threshold,
		Counter:     Unclaimed(reads, redeemed, r.opts.Threshold),
		Eligible:    Eligible(reads, redeemed, r.opts.Threshold),
		NextDraw:    r.opts.Schedule.NextLabel(r.opts.Clock.Now()),
	}, nil
}

// Open mounts a new surface for an eligible visitor.
func (r *Registry) Open(ctx context.Context, visitorID string) (uuid.UUID, *Tracker, error) {
	v, err := r.Eligibility(ctx, visitorID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if !v.Eligible {
		return uuid.Nil, nil, ErrNotEligible
	}

	id := uuid.New()
	h := &visitorHost{registry: r, sessionID: id, visitorID: visitorID}

	r.mu.Lock()
	lock, ok := r.locks[visitorID]
	if !ok {
		lock = &ScrollLock{}
		r.locks[visitorID] = lock
	}
	opts := r.opts
	opts.Lock = lock
	t := NewTracker(h, opts)
	r.sessions[id] = &session{id: id, visitorID: visitorID, tracker: t, openedAt: r.opts.Clock.Now()}
	// Mount under r.mu so Remove never sees the visitor's lock unheld in between.
	t.Mount()
	r.mu.Unlock()

	r.log.Debug("surface mounted", zap.String("session", id.String()), zap.String("visitor", visitorID))
	return id, t, nil
}

// Get returns the tracker for a session owned by visitorID.
func (r *Registry) Get(id uuid.UUID, visitorID string) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.visitorID != visitorID {
		return nil, ErrSessionNotFound
	}
	return s.tracker, nil
}

// ScrollLocked reports whether any surface of the visitor holds the lock.
func (r *Registry) ScrollLocked(visitorID string) bool {
	r.mu.Lock()
	lock, ok := r.locks[visitorID]
	r.mu.Unlock()
	return ok && lock.Locked()
}

// Remove unmounts and forgets a session.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	s.tracker.Unmount()

	r.mu.Lock()
	if lock, ok := r.locks[s.visitorID]; ok && !lock.Locked() {
		delete(r.locks, s.visitorID)
	}
	r.mu.Unlock()
	return true
}

// Len is the number of mounted surfaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep unmounts sessions opened before now minus the TTL.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl)
	var stale []uuid.UUID
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.openedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, id := range stale {
		if r.Remove(id) {
			n++
		}
	}
	if n > 0 {
		r.log.Info("swept idle surfaces", zap.Int("count", n))
	}
	return n
}

// Run sweeps idle sessions until ctx is done, then unmounts everything.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(r.opts.Clock.Now())
		case <-ctx.Done():
			r.Shutdown()
			return
		}
	}
}

// Shutdown unmounts every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Remove(id)
	}
}

// claim hands out the visitor's submission slot, one holder at a time.
func (r *Registry) claim(visitorID string) (func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitting[visitorID] {
		return nil, false
	}
	r.submitting[visitorID] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.submitting, visitorID)
			r.mu.Unlock()
		})
	}, true
}

// visitorHost binds a tracker to one visitor's stores.
type visitorHost struct {
	registry  *Registry
	sessionID uuid.UUID
	visitorID string
}

func (h *visitorHost) ReadSlugs(ctx context.Context) ([]string, error) {
	return h.registry.reads.Slugs(ctx, h.visitorID)
}

func (h *visitorHost) RedeemCount(ctx context.Context) (int, error) {
	return h.registry.redemptions.Count(ctx, h.visitorID)
}

func (h *visitorHost) Claim() (func(), bool) {
	return h.registry.claim(h.visitorID)
}

func (h *visitorHost) IncrementRedeem(ctx context.Context, from int) error {
	n, err := h.registry.redemptions.Increment(ctx, h.visitorID, from)
	if err != nil {
		return err
	}
	if cb := h.registry.hooks.OnRedeemed; cb != nil {
		now := h.registry.opts.Clock.Now()
		cb(ctx, Redemption{
			SessionID:   h.sessionID,
			VisitorID:   h.visitorID,
			RedeemCount: n,
			DrawLabel:   h.registry.opts.Schedule.NextLabel(now),
			At:          now,
		})
	}
	return nil
}

func (h *visitorHost) Dismiss() {
	if h.registry.Remove(h.sessionID) {
		if cb := h.registry.hooks.OnDismissed; cb != nil {
			cb(h.visitorID, h.sessionID)
		}
	}
}
