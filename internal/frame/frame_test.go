package frame

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/presenter/internal/gpu"
	"github.com/vkngwrapper/presenter/internal/gpu/gputest"
	"github.com/vkngwrapper/presenter/internal/swapchain"
)

type fixture struct {
	device    *gputest.Device
	queue     *gputest.Queue
	swapchain *swapchain.Swapchain
	sync      *Synchronizer
}

func newFixture(t *testing.T, opts gputest.Options, framesInFlight int) *fixture {
	t.Helper()
	device := gputest.NewDevice(opts)
	t.Cleanup(device.Close)

	families := gpu.QueueFamilies{Graphics: 0, Present: 0}
	sc, err := swapchain.NewManager(device, gputest.NewSurface(800, 600), families).Create(nil)
	require.NoError(t, err)

	s, err := New(device, framesInFlight)
	require.NoError(t, err)

	return &fixture{
		device:    device,
		queue:     gputest.NewQueue(device, 0),
		swapchain: sc,
		sync:      s,
	}
}

// frame runs one full begin/acquire/submit/present cycle.
func (f *fixture) frame(t *testing.T, counter uint64, work ...gpu.CommandBuffer) *Slot {
	t.Helper()
	slot := f.sync.SlotFor(counter)
	require.NoError(t, f.sync.BeginFrame(slot, gpu.NoTimeout))
	index, status, err := f.sync.Acquire(slot, f.swapchain, gpu.NoTimeout)
	require.NoError(t, err)
	require.Equal(t, gpu.StatusOK, status)
	require.NoError(t, f.sync.Submit(slot, f.queue, work...))
	status, err = f.sync.Present(slot, f.queue, f.swapchain, index)
	require.NoError(t, err)
	require.Equal(t, gpu.StatusOK, status)
	return slot
}

func TestNew(t *testing.T) {
	device := gputest.NewDevice(gputest.Options{})

	_, err := New(device, 0)
	require.Error(t, err)

	s, err := New(device, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	fences := device.Fences()
	require.Len(t, fences, 3)
	for i, f := range fences {
		signaled, err := f.Signaled()
		require.NoError(t, err)
		assert.True(t, signaled, "fence %d", i)
		assert.Same(t, f, s.Slot(i).InFlight)
	}
	for i := 0; i < s.Len(); i++ {
		slot := s.Slot(i)
		assert.Equal(t, i, slot.Index())
		assert.Equal(t, StateIdle, slot.State())
		assert.Equal(t, -1, slot.Image())
		assert.NotSame(t, slot.ImageAvailable, slot.RenderFinished)
	}
}

func TestSlotIndexPeriodic(t *testing.T) {
	device := gputest.NewDevice(gputest.Options{})
	for _, n := range []int{1, 2, 3} {
		s, err := New(device, n)
		require.NoError(t, err)
		for k := uint64(0); k < 20; k++ {
			assert.Equal(t, int(k%uint64(n)), s.SlotIndex(k))
			assert.Equal(t, s.SlotIndex(k), s.SlotIndex(k+uint64(n)))
			assert.Same(t, s.Slot(s.SlotIndex(k)), s.SlotFor(k))
		}
	}
}

func TestBeginFrameResetsFence(t *testing.T) {
	f := newFixture(t, gputest.Options{}, 2)
	slot := f.sync.Slot(0)

	require.NoError(t, f.sync.BeginFrame(slot, gpu.NoTimeout))
	assert.Equal(t, StateAcquiring, slot.State())

	signaled, err := slot.InFlight.(*gputest.Fence).Signaled()
	require.NoError(t, err)
	assert.False(t, signaled)
	assert.Equal(t, 1, slot.InFlight.(*gputest.Fence).Resets())
}

func TestBeginFrameWaitsForGPU(t *testing.T) {
	f := newFixture(t, gputest.Options{Manual: true}, 1)
	f.frame(t, 0)
	require.Equal(t, 1, f.device.Held())

	slot := f.sync.Slot(0)
	done := make(chan error, 1)
	go func() {
		done <- f.sync.BeginFrame(slot, gpu.NoTimeout)
	}()

	select {
	case <-done:
		t.Fatal("begin frame returned before the GPU finished the previous frame")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, f.device.Complete())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("begin frame did not return after the fence signaled")
	}

	signaled, err := slot.InFlight.(*gputest.Fence).Signaled()
	require.NoError(t, err)
	assert.False(t, signaled)
}

func TestBeginFrameTimeout(t *testing.T) {
	f := newFixture(t, gputest.Options{Manual: true}, 1)
	f.frame(t, 0)

	slot := f.sync.Slot(0)
	err := f.sync.BeginFrame(slot, 10*time.Millisecond)
	assert.ErrorIs(t, err, gpu.ErrTimeout)
	assert.Equal(t, StateIdle, slot.State())

	f.device.CompleteAll()
	require.NoError(t, f.sync.BeginFrame(slot, gpu.NoTimeout))
}

func TestFrameCycle(t *testing.T) {
	f := newFixture(t, gputest.Options{}, 2)
	work := &gputest.CommandBuffer{}

	slot := f.frame(t, 0, work)
	assert.Equal(t, StateIdle, slot.State())
	assert.Equal(t, 1, slot.Uses())
	assert.Equal(t, 0, work.Released())

	presented := f.device.Presented()
	require.Len(t, presented, 1)
	assert.Equal(t, 0, presented[0].Index)
	assert.False(t, f.swapchain.Acquired(0))

	// work is released once the slot's fence is observed again
	require.NoError(t, f.sync.BeginFrame(slot, gpu.NoTimeout))
	assert.Equal(t, 1, work.Released())
	assert.Empty(t, f.device.Violations())
}

func TestStateAssertions(t *testing.T) {
	f := newFixture(t, gputest.Options{}, 2)
	slot := f.sync.Slot(0)

	err := f.sync.Submit(slot, f.queue)
	assert.True(t, errors.IsAssertionFailure(err))

	_, err = f.sync.Present(slot, f.queue, f.swapchain, 0)
	assert.True(t, errors.IsAssertionFailure(err))

	require.NoError(t, f.sync.BeginFrame(slot, gpu.NoTimeout))
	err = f.sync.BeginFrame(slot, gpu.NoTimeout)
	assert.True(t, errors.IsAssertionFailure(err))

	err = f.sync.Submit(slot, f.queue)
	assert.True(t, errors.IsAssertionFailure(err), "submit without an image")

	index, _, err := f.sync.Acquire(slot, f.swapchain, gpu.NoTimeout)
	require.NoError(t, err)

	err = f.sync.Abandon(slot, f.queue)
	assert.True(t, errors.IsAssertionFailure(err), "abandon while holding an image")

	require.NoError(t, f.sync.Submit(slot, f.queue))
	_, err = f.sync.Present(slot, f.queue, f.swapchain, index+1)
	assert.True(t, errors.IsAssertionFailure(err), "present of an image the slot did not acquire")

	_, err = f.sync.Present(slot, f.queue, f.swapchain, index)
	require.NoError(t, err)
	assert.Empty(t, f.device.Violations())
}

func TestAbandonRearmsFence(t *testing.T) {
	f := newFixture(t, gputest.Options{}, 1)
	slot := f.sync.Slot(0)

	f.device.ScriptAcquire(gpu.StatusOutOfDate)
	require.NoError(t, f.sync.BeginFrame(slot, gpu.NoTimeout))
	index, status, err := f.sync.Acquire(slot, f.swapchain, gpu.NoTimeout)
	require.NoError(t, err)
	assert.Equal(t, gpu.StatusOutOfDate, status)
	assert.Equal(t, -1, index)

	require.NoError(t, f.sync.Abandon(slot, f.queue))
	assert.Equal(t, StateIdle, slot.State())
	assert.Equal(t, 0, slot.Uses())

	signaled, err := slot.InFlight.(*gputest.Fence).Signaled()
	require.NoError(t, err)
	assert.True(t, signaled)

	f.frame(t, 0)
	assert.Empty(t, f.device.Violations())
}

func TestOutstandingWorkBounded(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		f := newFixture(t, gputest.Options{Latency: time.Millisecond}, n)
		for k := uint64(0); k < 24; k++ {
			f.frame(t, k)
		}
		require.NoError(t, f.sync.Destroy())

		assert.LessOrEqual(t, f.device.MaxOutstanding(), n, "frames in flight %d", n)
		assert.Len(t, f.device.Presented(), 24)
		assert.Empty(t, f.device.Violations())
	}
}

func TestDestroyWaitsForIdle(t *testing.T) {
	f := newFixture(t, gputest.Options{Latency: time.Millisecond}, 2)
	f.frame(t, 0)
	f.frame(t, 1)

	require.NoError(t, f.sync.Destroy())

	events := f.device.Events()
	idle := -1
	for i, e := range events {
		if e == "wait-idle" {
			idle = i
			break
		}
	}
	require.GreaterOrEqual(t, idle, 0)
	for _, e := range events[:idle] {
		assert.NotContains(t, e, "destroy-")
	}
	for _, fence := range f.device.Fences() {
		assert.True(t, fence.Destroyed())
	}
	assert.Empty(t, f.device.Violations())
}

func TestPresentRejectsOtherSwapchain(t *testing.T) {
	f := newFixture(t, gputest.Options{}, 2)
	other, err := swapchain.NewManager(f.device, gputest.NewSurface(800, 600), gpu.QueueFamilies{}).Create(nil)
	require.NoError(t, err)

	first, second := f.sync.Slot(0), f.sync.Slot(1)
	require.NoError(t, f.sync.BeginFrame(first, gpu.NoTimeout))
	otherIndex, _, err := f.sync.Acquire(first, other, gpu.NoTimeout)
	require.NoError(t, err)
	require.NoError(t, f.sync.Submit(first, f.queue))

	require.NoError(t, f.sync.BeginFrame(second, gpu.NoTimeout))
	index, _, err := f.sync.Acquire(second, f.swapchain, gpu.NoTimeout)
	require.NoError(t, err)
	require.NoError(t, f.sync.Submit(second, f.queue))
	require.Equal(t, otherIndex, index)

	_, err = f.sync.Present(second, f.queue, other, index)
	assert.True(t, errors.IsAssertionFailure(err))
	assert.True(t, other.Acquired(otherIndex), "the other slot's acquire is still outstanding")
	assert.Equal(t, StateSubmitted, second.State())

	_, err = f.sync.Present(second, f.queue, f.swapchain, index)
	require.NoError(t, err)
	_, err = f.sync.Present(first, f.queue, other, otherIndex)
	require.NoError(t, err)
	assert.Empty(t, f.device.Violations())
}
