package api

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/jobs"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
	"github.com/JustinTDCT/StoryDraw/internal/repository"
)

// EntryRecorder persists redeemed entries.
type EntryRecorder interface {
	RecordEntry(ctx context.Context, e *repository.Entry) error
}

// Events turns surface callbacks into stored entries, queued notifications
// and websocket pushes.
type Events struct {
	hub     *WSHub
	entries EntryRecorder
	queue   jobs.Enqueuer
	log     *zap.Logger
}

// NewEvents wires the surface hooks. queue may be nil.
func NewEvents(hub *WSHub, entries EntryRecorder, queue jobs.Enqueuer, log *zap.Logger) *Events {
	return &Events{hub: hub, entries: entries, queue: queue, log: log.With(zap.String("component", "events"))}
}

func (e *Events) Hooks() lottery.Hooks {
	return lottery.Hooks{
		OnRedeemed:  e.redeemed,
		OnDismissed: e.dismissed,
	}
}

// A failure here never undoes the redemption; the count is already stored.
func (e *Events) redeemed(ctx context.Context, r lottery.Redemption) {
	entry := &repository.Entry{
		ID:          uuid.New(),
		VisitorID:   r.VisitorID,
		DrawLabel:   r.DrawLabel,
		RedeemCount: r.RedeemCount,
		SubmittedAt: r.At,
	}
	if err := e.entries.RecordEntry(ctx, entry); err != nil {
		e.log.Error("record entry", zap.String("visitor", r.VisitorID), zap.Error(err))
	} else if e.queue != nil {
		err := e.queue.EnqueueEntryRecorded(ctx, jobs.EntryRecordedPayload{
			EntryID:   entry.ID.String(),
			VisitorID: r.VisitorID,
			DrawLabel: r.DrawLabel,
		})
		if err != nil {
			e.log.Warn("enqueue entry notification", zap.String("entry", entry.ID.String()), zap.Error(err))
		}
	}

	e.hub.Publish(r.VisitorID, EventRedeemed, map[string]interface{}{
		"session_id":   r.SessionID,
		"redeem_count": r.RedeemCount,
		"draw":         r.DrawLabel,
	})
}

func (e *Events) dismissed(visitorID string, sessionID uuid.UUID) {
	e.hub.Publish(visitorID, EventDismissed, map[string]interface{}{
		"session_id": sessionID,
	})
}
