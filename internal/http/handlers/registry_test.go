package handlers

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sr22fit/checkout-web/internal/checkout"
	"github.com/sr22fit/checkout-web/internal/sr22api"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

func TestRegistryRebuildsFromSnapshot(t *testing.T) {
	f := newFixture(t, false)
	f.upstream.customers["(555) 123-4567"] = sr22api.Customer{ID: "42", Name: "Juan"}
	ctx := context.Background()

	id, sess, err := f.registry.Create(ctx, url.Values{"idprod": {"2"}})
	require.NoError(t, err)
	require.Equal(t, checkout.LookupFound, sess.ChangePhone(ctx, "5551234567"))
	f.registry.Persist(ctx, id, sess)

	// A second process sharing the store knows nothing about the session.
	other := NewRegistry(RegistryOptions{Session: f.registry.opts, Store: f.store, TTL: time.Minute, Logger: logging.Discard()})
	t.Cleanup(other.CloseAll)
	rebuilt, ok := other.Get(ctx, id)
	require.True(t, ok)
	assert.NotSame(t, sess, rebuilt)

	view := rebuilt.View()
	assert.True(t, view.Loaded)
	assert.Equal(t, "2", view.SelectedID)
	assert.Equal(t, "42", view.Client.ExternalID)
	assert.True(t, view.NameReadOnly)
	assert.True(t, view.CanSubmit)

	again, ok := other.Get(ctx, id)
	require.True(t, ok)
	assert.Same(t, rebuilt, again)
}

func TestRegistryGetUnknown(t *testing.T) {
	f := newFixture(t, false)
	_, ok := f.registry.Get(context.Background(), "")
	assert.False(t, ok)
	_, ok = f.registry.Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestRegistrySweepClosesIdleSessions(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f.registry.now = func() time.Time { return now }

	idleID, idle, err := f.registry.Create(ctx, nil)
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	activeID, active, err := f.registry.Create(ctx, nil)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, f.registry.Sweep())
	assert.True(t, idle.Closed())
	assert.False(t, active.Closed())
	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, 1, f.gauge.Last())

	got, ok := f.registry.Get(ctx, activeID)
	require.True(t, ok)
	assert.Same(t, active, got)

	// The idle session comes back from its snapshot as a fresh mount.
	back, ok := f.registry.Get(ctx, idleID)
	require.True(t, ok)
	assert.NotSame(t, idle, back)
	assert.False(t, back.Closed())
}

func TestRegistryRemoveAndCloseAll(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	id, sess, err := f.registry.Create(ctx, nil)
	require.NoError(t, err)
	f.registry.Remove(ctx, id)
	assert.True(t, sess.Closed())
	_, err = f.store.Load(ctx, id)
	assert.ErrorIs(t, err, checkout.ErrSnapshotNotFound)

	_, a, _ := f.registry.Create(ctx, nil)
	_, b, _ := f.registry.Create(ctx, nil)
	f.registry.CloseAll()
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.gauge.Last())
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	f := newFixture(t, false)
	_, sess, err := f.registry.Create(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.registry.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.True(t, sess.Closed())
}
