package lottery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultGrace is how long after mount outside clicks start to dismiss.
const DefaultGrace = time.Second

// Host mounts a Tracker. It supplies the read set and redemption count and
// owns the actual unmounting.
type Host interface {
	ReadSlugs(ctx context.Context) ([]string, error)
	RedeemCount(ctx context.Context) (int, error)
	// Claim reserves the visitor's single submission slot. ok is false while
	// another surface of the same visitor is submitting.
	Claim() (release func(), ok bool)
	// IncrementRedeem is called exactly once per successful submission with
	// the count the eligibility re-check saw. It returns ErrRedeemCountChanged
	// when the stored count has moved since.
	IncrementRedeem(ctx context.Context, from int) error
	// Dismiss asks the host to close the surface.
	Dismiss()
}

type Options struct {
	Threshold int
	Grace     time.Duration
	Schedule  *DrawSchedule
	Submitter Submitter
	Lock      DisplayLock
	Clock     Clock
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Grace < 0 {
		o.Grace = 0
	}
	if o.Schedule == nil {
		o.Schedule = DefaultDrawSchedule()
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// View is a render snapshot of the tracker.
type View struct {
	ReadCount   int    `json:"read_count"`
	RedeemCount int    `json:"redeem_count"`
	Threshold   int    `json:"threshold"`
	Counter     int    `json:"counter"`
	Eligible    bool   `json:"eligible"`
	Submitted   bool   `json:"submitted"`
	Sending     bool   `json:"sending"`
	Listening   bool   `json:"listening"`
	Dismissed   bool   `json:"dismissed"`
	Name        string `json:"name,omitempty"`
	NextDraw    string `json:"next_draw,omitempty"`
}

// Tracker is one lottery submission surface. It gates submission on
// eligibility, allows a single request in flight and credits the host once
// per successful submission.
type Tracker struct {
	host Host
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	listener  listenerState
	timer     Timer
	release   func()
	sending   bool
	submitted bool
	dismissed bool
	tornDown  bool
	name      string
	nextDraw  string
}

func NewTracker(host Host, opts Options) *Tracker {
	opts = opts.withDefaults()
	return &Tracker{
		host: host,
		opts: opts,
		log:  opts.Logger.With(zap.String("component", "lottery")),
	}
}

// Mount acquires the display lock and schedules the outside-click listener.
func (t *Tracker) Mount() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tornDown || t.listener != listenerIdle {
		return
	}
	if t.opts.Lock != nil {
		t.release = t.opts.Lock.Acquire()
	}
	t.listener = listenerArmed
	t.timer = t.opts.Clock.AfterFunc(t.opts.Grace, t.startListening)
}

func (t *Tracker) startListening() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == listenerArmed {
		t.listener = listenerActive
	}
}

// Unmount cancels a pending listener timer, deregisters the listener and
// releases the display lock. Responses that arrive afterwards are ignored.
func (t *Tracker) Unmount() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tornDown {
		return
	}
	t.tornDown = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.listener = listenerClosed
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// HandleClick forwards a click on the page. It reports whether the click
// dismissed the surface.
func (t *Tracker) HandleClick(inside bool) bool {
	t.mu.Lock()
	if inside || t.listener != listenerActive || t.dismissed {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()
	return t.dismiss()
}

// Close is the explicit close button.
func (t *Tracker) Close() bool {
	return t.dismiss()
}

func (t *Tracker) dismiss() bool {
	t.mu.Lock()
	if t.dismissed || t.tornDown {
		t.mu.Unlock()
		return false
	}
	t.dismissed = true
	t.mu.Unlock()

	t.host.Dismiss()
	return true
}

// Submit validates rec, re-checks eligibility and delivers the record.
// Overlapping calls return ErrSubmissionInFlight without touching the network.
func (t *Tracker) Submit(ctx context.Context, rec ContactRecord) (View, error) {
	rec = rec.Normalize()
	if err := rec.Validate(); err != nil {
		return View{}, err
	}

	t.mu.Lock()
	switch {
	case t.tornDown:
		t.mu.Unlock()
		return View{}, ErrTornDown
	case t.submitted:
		t.mu.Unlock()
		return View{}, ErrAlreadySubmitted
	case t.sending:
		t.mu.Unlock()
		return View{}, ErrSubmissionInFlight
	}
	t.sending = true
	t.mu.Unlock()

	release, ok := t.host.Claim()
	if !ok {
		t.finish()
		return View{}, ErrSubmissionInFlight
	}
	defer release()

	slugs, redeemed, err := t.load(ctx)
	if err != nil {
		t.finish()
		return View{}, err
	}
	if !CheckEligibility(slugs, redeemed, t.opts.Threshold) {
		t.finish()
		t.log.Info("submission refused, no unclaimed entry",
			zap.Int("reads", len(slugs)), zap.Int("redeemed", redeemed))
		t.dismiss()
		return View{}, ErrNotEligible
	}

	rec.SubmittedAt = t.opts.Clock.Now()
	sendErr := t.opts.Submitter.Submit(ctx, rec)

	t.mu.Lock()
	if t.tornDown {
		t.sending = false
		t.mu.Unlock()
		t.log.Debug("discarding submission result after teardown", zap.Error(sendErr))
		return View{}, ErrTornDown
	}
	if sendErr != nil {
		t.sending = false
		t.mu.Unlock()
		t.log.Warn("contact submission failed", zap.Error(sendErr))
		var se *SubmissionError
		if !errors.As(sendErr, &se) {
			sendErr = &SubmissionError{Err: sendErr}
		}
		return View{}, sendErr
	}
	t.submitted = true
	t.name = rec.Name
	t.nextDraw = t.opts.Schedule.NextLabel(rec.SubmittedAt)
	t.mu.Unlock()

	// The record is already at the endpoint; the credit must not depend on
	// the caller staying connected.
	detached := context.WithoutCancel(ctx)
	incErr := t.host.IncrementRedeem(detached, redeemed)
	t.finish()
	if errors.Is(incErr, ErrRedeemCountChanged) {
		t.log.Error("contact delivered but the entry was claimed elsewhere", zap.Int("redeemed", redeemed))
		return View{}, fmt.Errorf("%w: %w", ErrNotEligible, incErr)
	}
	if incErr != nil {
		t.log.Error("contact delivered but redemption not recorded", zap.Error(incErr))
		return View{}, fmt.Errorf("lottery: record redemption: %w", incErr)
	}
	t.log.Info("entry redeemed", zap.Int("reads", len(slugs)), zap.Int("redeemed", redeemed+1))
	return t.View(detached)
}

func (t *Tracker) finish() {
	t.mu.Lock()
	t.sending = false
	t.mu.Unlock()
}

func (t *Tracker) load(ctx context.Context) ([]string, int, error) {
	slugs, err := t.host.ReadSlugs(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("lottery: load read slugs: %w", err)
	}
	redeemed, err := t.host.RedeemCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("lottery: load redeem count: %w", err)
	}
	return slugs, redeemed, nil
}

// View reads the host inputs and returns what the surface should render.
// After a submit the counter adds the threshold back, so the done screen
// still shows the count that earned the entry.
func (t *Tracker) View(ctx context.Context) (View, error) {
	slugs, redeemed, err := t.load(ctx)
	if err != nil {
		return View{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	v := View{
		ReadCount:   len(slugs),
		RedeemCount: redeemed,
		Threshold:   t.opts.Threshold,
		Counter:     Unclaimed(len(slugs), redeemed, t.opts.Threshold),
		Eligible:    CheckEligibility(slugs, redeemed, t.opts.Threshold),
		Submitted:   t.submitted,
		Sending:     t.sending,
		Listening:   t.listener == listenerActive,
		Dismissed:   t.dismissed,
	}
	if t.submitted {
		v.Counter += t.opts.Threshold
		v.Name = t.name
		v.NextDraw = t.nextDraw
	}
	return v, nil
}
