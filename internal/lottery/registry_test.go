package lottery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memReads struct {
	mu    sync.Mutex
	slugs map[string][]string
}

func (m *memReads) Slugs(_ context.Context, visitorID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.slugs[visitorID]...), nil
}

func (m *memReads) Count(_ context.Context, visitorID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slugs[visitorID]), nil
}

type memRedemptions struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memRedemptions) Count(_ context.Context, visitorID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[visitorID], nil
}

func (m *memRedemptions) Increment(_ context.Context, visitorID string, from int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[visitorID] != from {
		return 0, ErrRedeemCountChanged
	}
	m.counts[visitorID]++
	return m.counts[visitorID], nil
}

type registryFixture struct {
	reg       *Registry
	clock     *fakeClock
	sub       *fakeSubmitter
	reads     *memReads
	store     *memRedemptions
	redeemed  []Redemption
	dismissed []uuid.UUID
}

func newRegistryFixture(reads map[string][]string) *registryFixture {
	f := &registryFixture{
		clock: newFakeClock(mountedAt),
		sub:   &fakeSubmitter{},
		reads: &memReads{slugs: reads},
		store: &memRedemptions{counts: map[string]int{}},
	}
	f.reg = NewRegistry(
		f.reads,
		f.store,
		Options{Threshold: 5, Grace: time.Second, Submitter: f.sub, Clock: f.clock},
		Hooks{
			OnRedeemed:  func(_ context.Context, r Redemption) { f.redeemed = append(f.redeemed, r) },
			OnDismissed: func(_ string, id uuid.UUID) { f.dismissed = append(f.dismissed, id) },
		},
		time.Minute,
	)
	return f
}

func TestRegistryOpenRequiresEligibility(t *testing.T) {
	f := newRegistryFixture(map[string][]string{"v1": slugs(4)})
	_, _, err := f.reg.Open(context.Background(), "v1")
	require.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, 0, f.reg.Len())
	assert.False(t, f.reg.ScrollLocked("v1"))
}

func TestRegistrySubmitFlow(t *testing.T) {
	f := newRegistryFixture(map[string][]string{"v1": slugs(11)})
	ctx := context.Background()

	id, tr, err := f.reg.Open(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, f.reg.ScrollLocked("v1"))

	_, err = f.reg.Get(id, "someone-else")
	require.ErrorIs(t, err, ErrSessionNotFound)
	got, err := f.reg.Get(id, "v1")
	require.NoError(t, err)
	assert.Same(t, tr, got)

	view, err := tr.Submit(ctx, validRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, view.RedeemCount)
	require.Len(t, f.redeemed, 1)
	assert.Equal(t, Redemption{SessionID: id, VisitorID: "v1", RedeemCount: 1, DrawLabel: "11/07", At: mountedAt}, f.redeemed[0])

	v, err := f.reg.Eligibility(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 6, v.Counter)
	assert.True(t, v.Eligible)

	assert.True(t, tr.Close())
	assert.Equal(t, []uuid.UUID{id}, f.dismissed)
	assert.Equal(t, 0, f.reg.Len())
	assert.False(t, f.reg.ScrollLocked("v1"))
}

func TestRegistryIneligibleSubmitClosesSurface(t *testing.T) {
	f := newRegistryFixture(map[string][]string{"v1": slugs(5)})
	ctx := context.Background()

	id1, tr1, err := f.reg.Open(ctx, "v1")
	require.NoError(t, err)
	_, tr2, err := f.reg.Open(ctx, "v1")
	require.NoError(t, err)

	_, err = tr2.Submit(ctx, validRecord())
	require.NoError(t, err)

	// The first surface was rendered before the redemption; the re-check
	// at submit time refuses it and closes it.
	_, err = tr1.Submit(ctx, validRecord())
	require.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, 1, f.sub.callCount())
	assert.Contains(t, f.dismissed, id1)
	_, err = f.reg.Get(id1, "v1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistrySweepUnmountsIdleSessions(t *testing.T) {
	f := newRegistryFixture(map[string][]string{"v1": slugs(5), "v2": slugs(5)})
	ctx := context.Background()

	_, _, err := f.reg.Open(ctx, "v1")
	require.NoError(t, err)
	f.clock.Advance(45 * time.Second)
	_, _, err = f.reg.Open(ctx, "v2")
	require.NoError(t, err)

	assert.Equal(t, 1, f.reg.Sweep(f.clock.Now().Add(30*time.Second)))
	assert.Equal(t, 1, f.reg.Len())
	assert.False(t, f.reg.ScrollLocked("v1"))
	assert.True(t, f.reg.ScrollLocked("v2"))

	f.reg.Shutdown()
	assert.Equal(t, 0, f.reg.Len())
	assert.False(t, f.reg.ScrollLocked("v2"))
	assert.Equal(t, 0, f.clock.pending())
}

func TestRegistryVisitorSubmitsFromOneSessionAtATime(t *testing.T) {
	f := newRegistryFixture(map[string][]string{"v1": slugs(5)})
	f.sub.started = make(chan struct{}, 2)
	f.sub.gate = make(chan struct{})
	ctx := context.Background()

	_, tr1, err := f.reg.Open(ctx, "v1")
	require.NoError(t, err)
	id2, tr2, err := f.reg.Open(ctx, "v1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := tr1.Submit(ctx, validRecord())
		done <- err
	}()
	<-f.sub.started

	_, err = tr2.Submit(ctx, validRecord())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(f.sub.gate)
	require.NoError(t, <-done)

	_, err = tr2.Submit(ctx, validRecord())
	require.ErrorIs(t, err, ErrNotEligible)
	assert.Contains(t, f.dismissed, id2)

	n, err := f.store.Count(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.sub.callCount())
	assert.Len(t, f.redeemed, 1)
	f.reg.Shutdown()
}

func TestRegistriesSharingStoreCreditOnce(t *testing.T) {
	f := newRegistryFixture(map[string][]string{"v1": slugs(5)})
	f.sub.started = make(chan struct{}, 2)
	f.sub.gate = make(chan struct{})
	other := NewRegistry(f.reads, f.store,
		Options{Threshold: 5, Submitter: f.sub, Clock: f.clock}, Hooks{}, time.Minute)
	ctx := context.Background()

	_, tr1, err := f.reg.Open(ctx, "v1")
	require.NoError(t, err)
	_, tr2, err := other.Open(ctx, "v1")
	require.NoError(t, err)

	errs := make(chan error, 2)
	for _, tr := range []*Tracker{tr1, tr2} {
		go func(tr *Tracker) {
			_, err := tr.Submit(ctx, validRecord())
			errs <- err
		}(tr)
	}
	<-f.sub.started
	<-f.sub.started
	close(f.sub.gate)

	var ok, refused int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNotEligible):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, refused)

	n, err := f.store.Count(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.reg.Shutdown()
	other.Shutdown()
}

func TestRegistryLockSurvivesConcurrentRemove(t *testing.T) {
	f := newRegistryFixture(map[string][]string{"v1": slugs(5)})
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		old, _, err := f.reg.Open(ctx, "v1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.reg.Remove(old)
		}()
		cur, _, err := f.reg.Open(ctx, "v1")
		wg.Wait()
		require.NoError(t, err)

		require.True(t, f.reg.ScrollLocked("v1"), "iteration %d", i)
		f.reg.Remove(cur)
		require.False(t, f.reg.ScrollLocked("v1"))
	}
}
