package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/jobs"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
)

// DrawCutoffs adapts a lottery.DrawSchedule to cron.Schedule.
type DrawCutoffs struct {
	schedule *lottery.DrawSchedule
}

func NewDrawCutoffs(s *lottery.DrawSchedule) DrawCutoffs {
	return DrawCutoffs{schedule: s}
}

// Next returns the first cutoff strictly after t, or the zero time once the
// schedule is exhausted. cron never runs an entry whose next time is zero.
func (d DrawCutoffs) Next(t time.Time) time.Time {
	c, ok := d.schedule.NextCutoff(t)
	if !ok {
		return time.Time{}
	}
	return c.At
}

// Closed returns the latest cutoff at or before t.
func (d DrawCutoffs) Closed(t time.Time) (lottery.Cutoff, bool) {
	var last lottery.Cutoff
	found := false
	for _, c := range d.schedule.Cutoffs() {
		if c.At.After(t) {
			break
		}
		last, found = c, true
	}
	return last, found
}

// Broadcaster pushes an event to every connected client.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Scheduler fires once at each drawing cutoff.
type Scheduler struct {
	cron    *cron.Cron
	cutoffs DrawCutoffs
	entries jobs.EntryCounter
	hub     Broadcaster
	queue   jobs.Enqueuer
	log     *zap.Logger
	now     func() time.Time
}

// New creates a scheduler. hub and queue may be nil.
func New(schedule *lottery.DrawSchedule, entries jobs.EntryCounter, hub Broadcaster, queue jobs.Enqueuer, log *zap.Logger) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(lottery.Taipei)),
		cutoffs: NewDrawCutoffs(schedule),
		entries: entries,
		hub:     hub,
		queue:   queue,
		log:     log.With(zap.String("component", "scheduler")),
		now:     time.Now,
	}
	s.cron.Schedule(s.cutoffs, cron.FuncJob(func() {
		s.CloseDraw(context.Background(), s.now())
	}))
	return s
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	if next := s.cutoffs.Next(s.now()); !next.IsZero() {
		s.log.Info("draw scheduler started", zap.Time("next_cutoff", next))
	} else {
		s.log.Info("draw scheduler started, every drawing has closed")
	}
}

// Stop halts the cron loop and waits for a running close to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("draw scheduler stopped")
}

// CloseDraw handles the cutoff at or before now.
func (s *Scheduler) CloseDraw(ctx context.Context, now time.Time) {
	c, ok := s.cutoffs.Closed(now)
	if !ok {
		return
	}
	total, err := s.entries.CountEntries(ctx, c.Label)
	if err != nil {
		s.log.Error("count entries for closed draw", zap.String("draw", c.Label), zap.Error(err))
		total = -1
	}
	s.log.Info("draw closed", zap.String("draw", c.Label), zap.Int("entries", total))

	if s.hub != nil {
		s.hub.Broadcast(lottery.EventDrawClosed, map[string]interface{}{
			"draw":    c.Label,
			"entries": total,
			"next":    s.cutoffs.schedule.NextLabel(now),
		})
	}
	if s.queue != nil {
		if err := s.queue.EnqueueDrawClosed(ctx, jobs.DrawClosedPayload{DrawLabel: c.Label, ClosedAt: c.At}); err != nil {
			s.log.Warn("enqueue draw closed", zap.String("draw", c.Label), zap.Error(err))
		}
	}
}
