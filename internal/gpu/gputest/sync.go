package gputest

import (
	"sync"
	"time"

	"github.com/vkngwrapper/presenter/internal/gpu"
)

// Semaphore tracks scheduled signals that have not yet been waited on. The
// timeline is checked in submission order, which is the order the GPU
// observes them in.
type Semaphore struct {
	device *Device
	id     int

	mu        sync.Mutex
	pending   int
	signals   int
	destroyed bool
}

var _ gpu.Semaphore = (*Semaphore)(nil)

func (s *Semaphore) schedule(by string) {
	s.mu.Lock()
	double := s.pending > 0
	s.pending++
	s.mu.Unlock()
	if double {
		s.device.violate("%s: semaphore %d signaled again before it was waited on", by, s.id)
	}
}

func (s *Semaphore) wait(by string) {
	s.mu.Lock()
	missing := s.pending == 0
	if !missing {
		s.pending--
	}
	s.mu.Unlock()
	if missing {
		s.device.violate("%s: wait on semaphore %d with no signal scheduled", by, s.id)
	}
}

func (s *Semaphore) signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals++
}

// Pending reports whether a signal is scheduled and not yet consumed.
func (s *Semaphore) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

func (s *Semaphore) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *Semaphore) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
	s.device.record("destroy-semaphore %d", s.id)
}

type Fence struct {
	device *Device
	id     int

	mu        sync.Mutex
	signaled  bool
	pending   bool
	resets    int
	destroyed bool
	ch        chan struct{}
}

var _ gpu.Fence = (*Fence)(nil)

func newFence(d *Device, signaled bool) *Fence {
	f := &Fence{device: d, signaled: signaled, ch: make(chan struct{})}
	if signaled {
		close(f.ch)
	}
	return f
}

func (f *Fence) arm() {
	f.mu.Lock()
	bad := f.pending || f.signaled
	f.pending = true
	f.mu.Unlock()
	if bad {
		f.device.violate("fence %d submitted without being reset", f.id)
	}
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	if !f.signaled {
		f.signaled = true
		close(f.ch)
	}
}

// Signal completes the fence from outside the timeline.
func (f *Fence) Signal() {
	f.signal()
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()

	if timeout == gpu.NoTimeout {
		<-ch
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return gpu.ErrTimeout
	}
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	pending := f.pending
	if f.signaled {
		f.signaled = false
		f.ch = make(chan struct{})
	}
	f.resets++
	f.mu.Unlock()
	if pending {
		f.device.violate("fence %d reset while its work was pending", f.id)
	}
	return nil
}

func (f *Fence) Signaled() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled, nil
}

// Resets counts Reset calls.
func (f *Fence) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *Fence) Destroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *Fence) Destroy() {
	f.mu.Lock()
	pending := f.pending
	f.destroyed = true
	f.mu.Unlock()
	if pending {
		f.device.violate("fence %d destroyed while its work was pending", f.id)
	}
	f.device.record("destroy-fence %d", f.id)
}

// CommandBuffer is recorded work that remembers whether it was released.
type CommandBuffer struct {
	mu       sync.Mutex
	released int
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

func (c *CommandBuffer) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func (c *CommandBuffer) Released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
