package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ──────── Payloads ────────

type EntryRecordedPayload struct {
	EntryID   string `json:"entry_id"`
	VisitorID string `json:"visitor_id"`
	DrawLabel string `json:"draw_label"`
}

type DrawClosedPayload struct {
	DrawLabel string    `json:"draw_label"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Notifier is the outbound side of the entry tasks.
type Notifier interface {
	Enabled() bool
	EntryRecorded(ctx context.Context, entryID, drawLabel string, total int) error
	DrawClosed(ctx context.Context, drawLabel string, total int) error
}

// EntryCounter reports how many entries a drawing holds.
type EntryCounter interface {
	CountEntries(ctx context.Context, drawLabel string) (int, error)
}

// Enqueuer is the producer side used by the API server and scheduler.
type Enqueuer interface {
	EnqueueEntryRecorded(ctx context.Context, p EntryRecordedPayload) error
	EnqueueDrawClosed(ctx context.Context, p DrawClosedPayload) error
}

func (q *Queue) EnqueueEntryRecorded(ctx context.Context, p EntryRecordedPayload) error {
	_, err := q.EnqueueUnique(ctx, TaskEntryRecorded, p, "entry:"+p.EntryID, asynq.MaxRetry(5), asynq.Queue("low"))
	return err
}

func (q *Queue) EnqueueDrawClosed(ctx context.Context, p DrawClosedPayload) error {
	_, err := q.EnqueueUnique(ctx, TaskDrawClosed, p, "draw-closed:"+p.DrawLabel, asynq.MaxRetry(10))
	return err
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, entries EntryCounter, notifier Notifier, log *zap.Logger) {
	q.RegisterHandler(TaskEntryRecorded, NewEntryRecordedHandler(entries, notifier, log))
	q.RegisterHandler(TaskDrawClosed, NewDrawClosedHandler(entries, notifier, log))
}

// ──────── Entry Recorded Handler ────────

type EntryRecordedHandler struct {
	entries  EntryCounter
	notifier Notifier
	log      *zap.Logger
}

func NewEntryRecordedHandler(entries EntryCounter, notifier Notifier, log *zap.Logger) *EntryRecordedHandler {
	return &EntryRecordedHandler{entries: entries, notifier: notifier, log: log}
}

func (h *EntryRecordedHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p EntryRecordedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w: %w", err, asynq.SkipRetry)
	}
	if !h.notifier.Enabled() {
		h.log.Debug("notifications disabled, dropping entry task", zap.String("entry", p.EntryID))
		return nil
	}
	total, err := h.entries.CountEntries(ctx, p.DrawLabel)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if err := h.notifier.EntryRecorded(ctx, p.EntryID, p.DrawLabel, total); err != nil {
		return fmt.Errorf("notify entry: %w", err)
	}
	h.log.Info("entry notification sent", zap.String("entry", p.EntryID), zap.String("draw", p.DrawLabel))
	return nil
}

// ──────── Draw Closed Handler ────────

type DrawClosedHandler struct {
	entries  EntryCounter
	notifier Notifier
	log      *zap.Logger
}

func NewDrawClosedHandler(entries EntryCounter, notifier Notifier, log *zap.Logger) *DrawClosedHandler {
	return &DrawClosedHandler{entries: entries, notifier: notifier, log: log}
}

func (h *DrawClosedHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p DrawClosedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w: %w", err, asynq.SkipRetry)
	}
	total, err := h.entries.CountEntries(ctx, p.DrawLabel)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	h.log.Info("drawing closed", zap.String("draw", p.DrawLabel), zap.Int("entries", total))
	if !h.notifier.Enabled() {
		return nil
	}
	if err := h.notifier.DrawClosed(ctx, p.DrawLabel, total); err != nil {
		return fmt.Errorf("notify draw closed: %w", err)
	}
	return nil
}
