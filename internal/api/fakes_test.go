package api

import (
	"context"
	"sort"
	"sync"

	"github.com/JustinTDCT/StoryDraw/internal/jobs"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
	"github.com/JustinTDCT/StoryDraw/internal/repository"
)

type memReads struct {
	mu sync.Mutex
	m  map[string]map[string]bool
}

func newMemReads() *memReads { return &memReads{m: map[string]map[string]bool{}} }

func (r *memReads) MarkRead(_ context.Context, visitorID, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.m[visitorID]
	if !ok {
		set = map[string]bool{}
		r.m[visitorID] = set
	}
	if set[slug] {
		return false, nil
	}
	set[slug] = true
	return true, nil
}

func (r *memReads) Slugs(_ context.Context, visitorID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.m[visitorID]))
	for s := range r.m[visitorID] {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (r *memReads) Count(_ context.Context, visitorID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m[visitorID]), nil
}

type memRedemptions struct {
	mu sync.Mutex
	m  map[string]int
}

func (r *memRedemptions) Count(_ context.Context, visitorID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[visitorID], nil
}

func (r *memRedemptions) Increment(_ context.Context, visitorID string, from int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m[visitorID] != from {
		return 0, lottery.ErrRedeemCountChanged
	}
	r.m[visitorID]++
	return r.m[visitorID], nil
}

type memEntries struct {
	mu      sync.Mutex
	entries []repository.Entry
	err     error
}

func (e *memEntries) RecordEntry(_ context.Context, entry *repository.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.entries = append(e.entries, *entry)
	return nil
}

func (e *memEntries) ListEntries(_ context.Context, draw string, limit int) ([]repository.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []repository.Entry
	for _, x := range e.entries {
		if x.DrawLabel == draw && len(out) < limit {
			out = append(out, x)
		}
	}
	return out, nil
}

func (e *memEntries) CountEntries(ctx context.Context, draw string) (int, error) {
	list, _ := e.ListEntries(ctx, draw, 1<<30)
	return len(list), nil
}

func (e *memEntries) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

type stubSubmitter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubSubmitter) Submit(context.Context, lottery.ContactRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubSubmitter) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingQueue struct {
	mu      sync.Mutex
	entries []jobs.EntryRecordedPayload
}

func (q *recordingQueue) EnqueueEntryRecorded(_ context.Context, p jobs.EntryRecordedPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, p)
	return nil
}

func (q *recordingQueue) EnqueueDrawClosed(context.Context, jobs.DrawClosedPayload) error { return nil }

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type memSettings struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memSettings) GetAll(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

func (s *memSettings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *memSettings) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
