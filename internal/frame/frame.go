// Package frame owns the per-frame synchronization objects that keep at most
// N frames of GPU work in flight.
//
// A slot cycles through
//
//	Idle -> WaitingOnFence -> Acquiring -> Submitted -> Presenting -> Idle
//
// and every operation checks it is called from the state it expects.
package frame

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/presenter/internal/gpu"
	"github.com/vkngwrapper/presenter/internal/swapchain"
)

// DefaultFramesInFlight lets the CPU record one frame while the GPU renders
// the previous one.
const DefaultFramesInFlight = 2

type State int

const (
	StateIdle State = iota
	StateWaitingOnFence
	StateAcquiring
	StateSubmitted
	StatePresenting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingOnFence:
		return "waiting-on-fence"
	case StateAcquiring:
		return "acquiring"
	case StateSubmitted:
		return "submitted"
	case StatePresenting:
		return "presenting"
	}
	return "unknown"
}

// Slot is one frame's worth of synchronization objects. Slots belong to the
// Synchronizer; callers only borrow them.
type Slot struct {
	ImageAvailable gpu.Semaphore
	RenderFinished gpu.Semaphore
	InFlight       gpu.Fence

	index int
	state State
	image int
	// source is the swapchain image was acquired from.
	source *swapchain.Swapchain
	uses   int
	work   []gpu.CommandBuffer
}

func (s *Slot) Index() int   { return s.index }
func (s *Slot) State() State { return s.state }

// Image is the swapchain image acquired for the current frame, or -1.
func (s *Slot) Image() int { return s.image }

// Uses counts the frames submitted through this slot.
func (s *Slot) Uses() int { return s.uses }

func (s *Slot) expect(op string, state State) error {
	if s.state != state {
		return errors.AssertionFailedf("%s on frame slot %d in state %s, want %s", op, s.index, s.state, state)
	}
	return nil
}

func (s *Slot) release() {
	for _, w := range s.work {
		w.Release()
	}
	s.work = nil
}

func (s *Slot) destroy() {
	s.release()
	if s.ImageAvailable != nil {
		s.ImageAvailable.Destroy()
	}
	if s.RenderFinished != nil {
		s.RenderFinished.Destroy()
	}
	if s.InFlight != nil {
		s.InFlight.Destroy()
	}
}

// Synchronizer is the fixed ring of frame slots.
type Synchronizer struct {
	// WaitStage is where submitted work waits for the acquired image. Work
	// that touches the image only at color output may move this later.
	WaitStage core1_0.PipelineStageFlags

	device gpu.Device
	slots  []*Slot
}

// New creates framesInFlight slots, each with two semaphores and a fence
// created signaled so the first wait on every slot returns immediately.
func New(device gpu.Device, framesInFlight int) (*Synchronizer, error) {
	if framesInFlight < 1 {
		return nil, errors.Newf("frames in flight must be at least 1, got %d", framesInFlight)
	}

	s := &Synchronizer{
		WaitStage: core1_0.PipelineStageTopOfPipe,
		device:    device,
		slots:     make([]*Slot, 0, framesInFlight),
	}
	for i := 0; i < framesInFlight; i++ {
		slot, err := newSlot(device, i)
		if err != nil {
			for _, created := range s.slots {
				created.destroy()
			}
			return nil, errors.Wrapf(err, "create frame slot %d", i)
		}
		s.slots = append(s.slots, slot)
	}
	return s, nil
}

func newSlot(device gpu.Device, index int) (*Slot, error) {
	slot := &Slot{index: index, image: -1}

	var err error
	slot.ImageAvailable, err = device.CreateSemaphore()
	if err != nil {
		slot.destroy()
		return nil, err
	}
	slot.RenderFinished, err = device.CreateSemaphore()
	if err != nil {
		slot.destroy()
		return nil, err
	}
	slot.InFlight, err = device.CreateFence(true)
	if err != nil {
		slot.destroy()
		return nil, err
	}
	return slot, nil
}

func (s *Synchronizer) Len() int {
	return len(s.slots)
}

// SlotIndex maps a frame counter onto the ring.
func (s *Synchronizer) SlotIndex(frame uint64) int {
	return int(frame % uint64(len(s.slots)))
}

func (s *Synchronizer) Slot(index int) *Slot {
	return s.slots[index]
}

// SlotFor returns the slot that frame number frame renders through.
func (s *Synchronizer) SlotFor(frame uint64) *Slot {
	return s.slots[s.SlotIndex(frame)]
}

// BeginFrame blocks until the GPU has finished the slot's previous frame,
// then resets the fence and frees that frame's command buffers.
func (s *Synchronizer) BeginFrame(slot *Slot, timeout time.Duration) error {
	if err := slot.expect("begin frame", StateIdle); err != nil {
		return err
	}

	slot.state = StateWaitingOnFence
	if err := slot.InFlight.Wait(timeout); err != nil {
		slot.state = StateIdle
		return errors.Wrapf(err, "wait for frame slot %d", slot.index)
	}
	if err := slot.InFlight.Reset(); err != nil {
		slot.state = StateIdle
		return errors.Wrapf(err, "reset fence of frame slot %d", slot.index)
	}

	slot.release()
	slot.image = -1
	slot.source = nil
	slot.state = StateAcquiring
	return nil
}

// Acquire takes the next image from sc, signaling the slot's
// image-available semaphore. On StatusOutOfDate no image is held and the
// slot must be abandoned.
func (s *Synchronizer) Acquire(slot *Slot, sc *swapchain.Swapchain, timeout time.Duration) (int, gpu.Status, error) {
	if err := slot.expect("acquire", StateAcquiring); err != nil {
		return -1, gpu.StatusOK, err
	}
	if slot.image >= 0 {
		return -1, gpu.StatusOK, errors.AssertionFailedf("frame slot %d already holds image %d", slot.index, slot.image)
	}

	index, status, err := sc.Acquire(slot.ImageAvailable, timeout)
	if err != nil || status == gpu.StatusOutOfDate {
		return -1, status, err
	}
	slot.image = index
	slot.source = sc
	return index, status, nil
}

// Submit queues the frame's work behind the image-available semaphore. On
// completion the GPU signals the render-finished semaphore and the in-flight
// fence.
func (s *Synchronizer) Submit(slot *Slot, queue gpu.Queue, work ...gpu.CommandBuffer) error {
	if err := slot.expect("submit", StateAcquiring); err != nil {
		return err
	}
	if slot.image < 0 {
		return errors.AssertionFailedf("submit on frame slot %d without an acquired image", slot.index)
	}

	err := queue.Submit(gpu.SubmitInfo{
		Work:             work,
		WaitSemaphores:   []gpu.Semaphore{slot.ImageAvailable},
		WaitStages:       []core1_0.PipelineStageFlags{s.WaitStage},
		SignalSemaphores: []gpu.Semaphore{slot.RenderFinished},
		Fence:            slot.InFlight,
	})
	if err != nil {
		return errors.Wrapf(err, "submit frame slot %d", slot.index)
	}

	slot.work = work
	slot.uses++
	slot.state = StateSubmitted
	return nil
}

// Present hands the slot's image back to the presentation engine once the
// render-finished semaphore signals. index must be the image this slot
// acquired.
func (s *Synchronizer) Present(slot *Slot, queue gpu.Queue, sc *swapchain.Swapchain, index int) (gpu.Status, error) {
	if err := slot.expect("present", StateSubmitted); err != nil {
		return gpu.StatusOK, err
	}
	if index != slot.image {
		return gpu.StatusOK, errors.AssertionFailedf("frame slot %d presents image %d but acquired %d", slot.index, index, slot.image)
	}
	if sc != slot.source {
		return gpu.StatusOK, errors.AssertionFailedf("frame slot %d presents to a swapchain it did not acquire image %d from", slot.index, index)
	}
	if err := sc.Release(index); err != nil {
		return gpu.StatusOK, err
	}

	slot.state = StatePresenting
	status, err := queue.Present(gpu.PresentInfo{
		Swapchain:      sc.Handle(),
		ImageIndex:     index,
		WaitSemaphores: []gpu.Semaphore{slot.RenderFinished},
	})
	slot.state = StateIdle
	slot.image = -1
	slot.source = nil
	if err != nil {
		return status, errors.Wrapf(err, "present image %d", index)
	}
	return status, nil
}

// Abandon returns a slot whose acquire failed to Idle. Its fence was reset
// by BeginFrame, so an empty submission re-arms it; otherwise the next wait
// on the slot would never return.
func (s *Synchronizer) Abandon(slot *Slot, queue gpu.Queue) error {
	if err := slot.expect("abandon", StateAcquiring); err != nil {
		return err
	}
	if slot.image >= 0 {
		return errors.AssertionFailedf("abandon frame slot %d holding image %d", slot.index, slot.image)
	}

	if err := queue.Submit(gpu.SubmitInfo{Fence: slot.InFlight}); err != nil {
		return errors.Wrapf(err, "re-arm fence of frame slot %d", slot.index)
	}
	slot.source = nil
	slot.state = StateIdle
	return nil
}

// Destroy waits for the device to go idle, then destroys every slot. The
// slots are destroyed even when the wait fails.
func (s *Synchronizer) Destroy() error {
	err := s.device.WaitIdle()
	for _, slot := range s.slots {
		slot.destroy()
	}
	s.slots = nil
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	return nil
}
