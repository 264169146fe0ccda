package lottery

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeHost struct {
	mu         sync.Mutex
	slugs      []string
	redeemed   int
	increments int
	dismissals int
	incErr     error
	onDismiss  func()
}

func (h *fakeHost) ReadSlugs(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.slugs...), nil
}

func (h *fakeHost) RedeemCount(context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.redeemed, nil
}

func (h *fakeHost) Claim() (func(), bool) { return func() {}, true }

func (h *fakeHost) IncrementRedeem(ctx context.Context, from int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.incErr != nil {
		return h.incErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.redeemed != from {
		return ErrRedeemCountChanged
	}
	h.redeemed++
	h.increments++
	return nil
}

func (h *fakeHost) Dismiss() {
	h.mu.Lock()
	h.dismissals++
	cb := h.onDismiss
	h.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (h *fakeHost) counts() (redeemed, increments, dismissals int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.redeemed, h.increments, h.dismissals
}

// fakeSubmitter records calls. When gate is set each call blocks until it
// receives from gate. after runs once the call is about to return.
type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	records []ContactRecord
	err     error
	started chan struct{}
	gate    chan struct{}
	after   func()
}

func (s *fakeSubmitter) Submit(ctx context.Context, rec ContactRecord) error {
	s.mu.Lock()
	s.calls++
	s.records = append(s.records, rec)
	err := s.err
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.after != nil {
		s.after()
	}
	return err
}

func (s *fakeSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func slugs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("story-%d", i)
	}
	return out
}

func validRecord() ContactRecord {
	return ContactRecord{
		Name:    "王小明",
		Phone:   "0912345678",
		Address: "台北市內湖區",
		Email:   "reader@example.com",
	}
}
