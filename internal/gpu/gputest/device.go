// Package gputest provides an in-process GPU timeline implementing the gpu
// contracts. Work submitted to a Queue completes immediately, after a fixed
// latency, or when the test calls Complete, always in submission order. Every misuse the real driver would
// reject is recorded as a violation instead of crashing.
package gputest

import (
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

type Options struct {
	// Latency delays the completion of each submitted batch. Zero completes
	// batches as they are submitted.
	Latency time.Duration
	// Manual holds submitted batches until Complete is called.
	Manual bool
}

// Transfer is one recorded ownership transfer.
type Transfer struct {
	Swapchain *Swapchain
	Images    []int
	Families  gpu.QueueFamilies
}

// Presented is one recorded present call.
type Presented struct {
	Swapchain *Swapchain
	Index     int
	Status    gpu.Status
}

type batch struct {
	signals []*Semaphore
	fence   *Fence
}

type Device struct {
	latency time.Duration
	manual  bool
	work    chan batch
	done    chan struct{}
	idle    sync.WaitGroup

	mu             sync.Mutex
	outstanding    int
	maxOutstanding int
	submits        int
	violations     []string
	events         []string
	transfers      []Transfer
	presented      []Presented
	swapchains     []*Swapchain
	acquireScript  []gpu.Status
	presentScript  []gpu.Status
	acquireErr     error
	presentErr     error
	swapchainErr   error
	idleErr        error
	imageCount     int
	fences         []*Fence
	semaphores     []*Semaphore
	held           []batch
}

var _ gpu.Device = (*Device)(nil)

func NewDevice(opts Options) *Device {
	d := &Device{latency: opts.Latency, manual: opts.Manual}
	if d.latency > 0 && !d.manual {
		d.work = make(chan batch, 64)
		d.done = make(chan struct{})
		go d.run()
	}
	return d
}

func (d *Device) run() {
	defer close(d.done)
	for b := range d.work {
		time.Sleep(d.latency)
		d.complete(b)
	}
}

// Close stops the latency timeline. Pending work is completed first.
func (d *Device) Close() {
	if d.work != nil {
		close(d.work)
		<-d.done
		d.work = nil
	}
}

func (d *Device) complete(b batch) {
	if b.fence != nil {
		// retire before signaling so a waiter never sees one extra batch
		d.mu.Lock()
		d.outstanding--
		d.mu.Unlock()
	}
	for _, s := range b.signals {
		s.signal()
	}
	if b.fence != nil {
		b.fence.signal()
	}
	d.idle.Done()
}

// Complete finishes the oldest held batch of a manual device. It reports
// false when nothing was held.
func (d *Device) Complete() bool {
	d.mu.Lock()
	if len(d.held) == 0 {
		d.mu.Unlock()
		return false
	}
	b := d.held[0]
	d.held = d.held[1:]
	d.mu.Unlock()
	d.complete(b)
	return true
}

// CompleteAll finishes every held batch.
func (d *Device) CompleteAll() {
	for d.Complete() {
	}
}

// Held counts batches a manual device has not completed yet.
func (d *Device) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held)
}

func (d *Device) violate(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) record(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

// Violations lists every protocol misuse observed so far.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Events is the ordered log of lifecycle calls: wait-idle, destroy-*,
// create-swapchain.
func (d *Device) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// MaxOutstanding is the largest number of fenced batches ever in flight at
// once.
func (d *Device) MaxOutstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOutstanding
}

func (d *Device) Submits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

func (d *Device) Transfers() []Transfer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Transfer(nil), d.transfers...)
}

func (d *Device) Presented() []Presented {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Presented(nil), d.presented...)
}

func (d *Device) Swapchains() []*Swapchain {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Swapchain(nil), d.swapchains...)
}

// Fences returns every fence created on the device, in creation order.
func (d *Device) Fences() []*Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Fence(nil), d.fences...)
}

// ScriptAcquire queues statuses returned by the next acquires, in order.
// Once exhausted, acquires report StatusOK.
func (d *Device) ScriptAcquire(statuses ...gpu.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireScript = append(d.acquireScript, statuses...)
}

// ScriptPresent queues statuses returned by the next presents, in order.
func (d *Device) ScriptPresent(statuses ...gpu.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentScript = append(d.presentScript, statuses...)
}

// FailAcquire makes every following acquire return err.
func (d *Device) FailAcquire(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireErr = err
}

// FailPresent makes every following present return err.
func (d *Device) FailPresent(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentErr = err
}

// FailSwapchain makes every following swapchain creation return err.
func (d *Device) FailSwapchain(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.swapchainErr = err
}

// FailWaitIdle makes every following WaitIdle return err once the device
// has drained.
func (d *Device) FailWaitIdle(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idleErr = err
}

// SetImageCount overrides the number of images a swapchain is built with.
// Zero uses the requested minimum.
func (d *Device) SetImageCount(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imageCount = n
}

func (d *Device) nextAcquire() (gpu.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquireErr != nil {
		return gpu.StatusOK, d.acquireErr
	}
	if len(d.acquireScript) == 0 {
		return gpu.StatusOK, nil
	}
	status := d.acquireScript[0]
	d.acquireScript = d.acquireScript[1:]
	return status, nil
}

func (d *Device) nextPresent() (gpu.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.presentErr != nil {
		return gpu.StatusOK, d.presentErr
	}
	if len(d.presentScript) == 0 {
		return gpu.StatusOK, nil
	}
	status := d.presentScript[0]
	d.presentScript = d.presentScript[1:]
	return status, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	s := &Semaphore{device: d}
	d.mu.Lock()
	d.semaphores = append(d.semaphores, s)
	s.id = len(d.semaphores)
	d.mu.Unlock()
	return s, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	f := newFence(d, signaled)
	d.mu.Lock()
	d.fences = append(d.fences, f)
	f.id = len(d.fences)
	d.mu.Unlock()
	return f, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo, old gpu.Swapchain) (gpu.Swapchain, error) {
	d.mu.Lock()
	err := d.swapchainErr
	count := d.imageCount
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		count = info.MinImageCount
	}

	sc := &Swapchain{device: d, Info: info, images: count}
	if old != nil {
		prev, ok := old.(*Swapchain)
		if !ok {
			return nil, errors.Newf("foreign swapchain %T", old)
		}
		if prev.Destroyed() {
			d.violate("swapchain %d chained to destroyed swapchain %d", len(d.swapchains)+1, prev.ID)
		}
		sc.Old = prev
	}

	d.mu.Lock()
	d.swapchains = append(d.swapchains, sc)
	sc.ID = len(d.swapchains)
	d.events = append(d.events, fmt.Sprintf("create-swapchain %d", sc.ID))
	d.mu.Unlock()
	return sc, nil
}

func (d *Device) TransferOwnership(swapchain gpu.Swapchain, images []int, families gpu.QueueFamilies) error {
	sc, ok := swapchain.(*Swapchain)
	if !ok {
		return errors.Newf("foreign swapchain %T", swapchain)
	}
	for _, i := range images {
		if i < 0 || i >= sc.images {
			d.violate("ownership transfer of image %d outside swapchain %d", i, sc.ID)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transfers = append(d.transfers, Transfer{
		Swapchain: sc,
		Images:    append([]int(nil), images...),
		Families:  families,
	})
	return nil
}

func (d *Device) WaitIdle() error {
	d.idle.Wait()
	d.record("wait-idle")

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idleErr
}

func (d *Device) submit(info gpu.SubmitInfo) error {
	if len(info.WaitStages) != len(info.WaitSemaphores) {
		d.violate("submit with %d wait semaphores and %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
	}
	for _, s := range info.WaitSemaphores {
		sem(s, d).wait("submit")
	}

	b := batch{}
	for _, s := range info.SignalSemaphores {
		ss := sem(s, d)
		ss.schedule("submit")
		b.signals = append(b.signals, ss)
	}
	if info.Fence != nil {
		f, ok := info.Fence.(*Fence)
		if !ok {
			return errors.Newf("foreign fence %T", info.Fence)
		}
		f.arm()
		b.fence = f
	}

	d.mu.Lock()
	d.submits++
	if b.fence != nil {
		d.outstanding++
		if d.outstanding > d.maxOutstanding {
			d.maxOutstanding = d.outstanding
		}
	}
	d.mu.Unlock()

	d.idle.Add(1)
	if d.manual {
		d.mu.Lock()
		d.held = append(d.held, b)
		d.mu.Unlock()
		return nil
	}
	if d.work != nil {
		d.work <- b
		return nil
	}
	d.complete(b)
	return nil
}

func sem(s gpu.Semaphore, d *Device) *Semaphore {
	ss, ok := s.(*Semaphore)
	if !ok {
		panic(fmt.Sprintf("gputest: foreign semaphore %T", s))
	}
	if ss.device != d {
		panic("gputest: semaphore from another device")
	}
	return ss
}
