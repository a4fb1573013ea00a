package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(time.Hour)
	flow := NewFlow(&fakeBackend{}, openInvoice())

	require.NoError(t, r.Start("sid-1", "inv-1", flow))
	got, ok := r.Get("sid-1", "inv-1")
	require.True(t, ok)
	assert.Same(t, flow, got)

	_, ok = r.Get("sid-2", "inv-1")
	assert.False(t, ok)

	require.NoError(t, r.Start("sid-1", "inv-2", NewFlow(&fakeBackend{}, openInvoice())))
	r.DropSession("sid-1")
	_, ok = r.Get("sid-1", "inv-1")
	assert.False(t, ok)
	_, ok = r.Get("sid-1", "inv-2")
	assert.False(t, ok)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(time.Hour)
	require.NoError(t, r.Start("sid", "inv", NewFlow(&fakeBackend{}, openInvoice())))
	r.Remove("sid", "inv")
	_, ok := r.Get("sid", "inv")
	assert.False(t, ok)
}

func TestRegistryStartReservesUntilBegin(t *testing.T) {
	r := NewRegistry(time.Hour)
	first := NewFlow(&fakeBackend{}, openInvoice())
	require.NoError(t, r.Start("sid", "inv", first))

	// registered but not yet begun: a second request must not replace it
	assert.ErrorIs(t, r.Start("sid", "inv", NewFlow(&fakeBackend{}, openInvoice())), ErrBusy)

	require.NoError(t, first.Begin(context.Background(), decimal.RequireFromString("100.00")))
	assert.Equal(t, AwaitingCardInput, first.State())

	// an intent awaiting card input may be replaced by a new attempt
	second := NewFlow(&fakeBackend{}, openInvoice())
	require.NoError(t, r.Start("sid", "inv", second))
	got, ok := r.Get("sid", "inv")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistryConcurrentStartAdmitsOne(t *testing.T) {
	r := NewRegistry(time.Hour)
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Start("sid", "inv", NewFlow(&fakeBackend{}, openInvoice())) == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}
