package gputest

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

// Swapchain hands out image indices round-robin.
type Swapchain struct {
	device *Device
	ID     int
	Info   gpu.SwapchainInfo
	Old    *Swapchain

	mu        sync.Mutex
	images    int
	next      int
	destroyed bool
}

var _ gpu.Swapchain = (*Swapchain)(nil)

func (s *Swapchain) ImageCount() (int, error) {
	return s.images, nil
}

func (s *Swapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	if s.Destroyed() {
		s.device.violate("acquire on destroyed swapchain %d", s.ID)
	}
	status, err := s.device.nextAcquire()
	if err != nil {
		return -1, gpu.StatusOK, err
	}
	if status == gpu.StatusOutOfDate {
		return -1, status, nil
	}

	s.mu.Lock()
	index := s.next
	s.next = (s.next + 1) % s.images
	s.mu.Unlock()

	sem(signal, s.device).schedule("acquire")
	return index, status, nil
}

func (s *Swapchain) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *Swapchain) Destroy() {
	s.mu.Lock()
	twice := s.destroyed
	s.destroyed = true
	s.mu.Unlock()
	if twice {
		s.device.violate("swapchain %d destroyed twice", s.ID)
	}
	s.device.record("destroy-swapchain %d", s.ID)
}

type Queue struct {
	device *Device
	family int
}

var _ gpu.Queue = (*Queue)(nil)

func NewQueue(d *Device, family int) *Queue {
	return &Queue{device: d, family: family}
}

func (q *Queue) Family() int {
	return q.family
}

func (q *Queue) Submit(info gpu.SubmitInfo) error {
	return q.device.submit(info)
}

func (q *Queue) Present(info gpu.PresentInfo) (gpu.Status, error) {
	d := q.device
	for _, s := range info.WaitSemaphores {
		sem(s, d).wait("present")
	}
	sc, ok := info.Swapchain.(*Swapchain)
	if !ok {
		return gpu.StatusOK, errors.Newf("foreign swapchain %T", info.Swapchain)
	}
	if sc.Destroyed() {
		d.violate("present on destroyed swapchain %d", sc.ID)
	}
	if info.ImageIndex < 0 || info.ImageIndex >= sc.images {
		d.violate("present of image %d outside swapchain %d", info.ImageIndex, sc.ID)
	}

	status, err := d.nextPresent()
	if err != nil {
		return gpu.StatusOK, err
	}
	d.mu.Lock()
	d.presented = append(d.presented, Presented{Swapchain: sc, Index: info.ImageIndex, Status: status})
	d.mu.Unlock()
	return status, nil
}

// Surface is a window surface whose size can be changed by the test.
type Surface struct {
	mu      sync.Mutex
	caps    khr_surface.SurfaceCapabilities
	formats []khr_surface.SurfaceFormat
	modes   []khr_surface.PresentMode
	width   int
	height  int
	capsErr error
}

var _ gpu.Surface = (*Surface)(nil)

// NewSurface reports two minimum images with no maximum, a defined current
// extent of width x height, an sRGB BGRA format and FIFO plus mailbox.
func NewSurface(width, height int) *Surface {
	return &Surface{
		caps: khr_surface.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  0,
			CurrentExtent:  core1_0.Extent2D{Width: width, Height: height},
			MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
		},
		formats: []khr_surface.SurfaceFormat{
			{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		},
		modes:  []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox},
		width:  width,
		height: height,
	}
}

// Resize changes both the drawable size and the reported current extent.
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	if s.caps.CurrentExtent.Width != -1 {
		s.caps.CurrentExtent = core1_0.Extent2D{Width: width, Height: height}
	}
}

func (s *Surface) SetImageCounts(min, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps.MinImageCount = min
	s.caps.MaxImageCount = max
}

// SetUndefinedExtent makes the surface report the undefined current extent,
// deferring to the drawable size.
func (s *Surface) SetUndefinedExtent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps.CurrentExtent = core1_0.Extent2D{Width: -1, Height: -1}
}

func (s *Surface) SetFormats(formats ...khr_surface.SurfaceFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats = formats
}

func (s *Surface) SetPresentModes(modes ...khr_surface.PresentMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = modes
}

func (s *Surface) FailCapabilities(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capsErr = err
}

func (s *Surface) Capabilities() (*khr_surface.SurfaceCapabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capsErr != nil {
		return nil, s.capsErr
	}
	caps := s.caps
	return &caps, nil
}

func (s *Surface) Formats() ([]khr_surface.SurfaceFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]khr_surface.SurfaceFormat(nil), s.formats...), nil
}

func (s *Surface) PresentModes() ([]khr_surface.PresentMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]khr_surface.PresentMode(nil), s.modes...), nil
}

func (s *Surface) DrawableSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}
