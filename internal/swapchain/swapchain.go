// Package swapchain negotiates and owns the ring of presentable images.
package swapchain

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/presenter/internal/gpu"
	"github.com/vkngwrapper/presenter/internal/logging"
)

// Manager builds swapchains for one surface on one device.
type Manager struct {
	device     gpu.Device
	surface    gpu.Surface
	families   gpu.QueueFamilies
	generation int
}

func NewManager(device gpu.Device, surface gpu.Surface, families gpu.QueueFamilies) *Manager {
	return &Manager{
		device:   device,
		surface:  surface,
		families: families,
	}
}

// Swapchain is one generation of the image ring. It is replaced wholesale,
// never mutated, when the surface changes.
type Swapchain struct {
	ID          uuid.UUID
	Generation  int
	Format      khr_surface.SurfaceFormat
	Extent      core1_0.Extent2D
	PresentMode khr_surface.PresentMode

	handle    gpu.Swapchain
	images    int
	ownership *Ownership
	acquired  []bool
}

// Create negotiates a new swapchain against the surface's current
// capabilities. When previous is non-nil the new swapchain is chained to it,
// and previous is destroyed once the replacement is complete. On failure
// previous is left untouched.
func (m *Manager) Create(previous *Swapchain) (*Swapchain, error) {
	caps, err := m.surface.Capabilities()
	if err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}
	formats, err := m.surface.Formats()
	if err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}
	modes, err := m.surface.PresentModes()
	if err != nil {
		return nil, errors.Wrap(err, "query surface present modes")
	}

	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}
	width, height := m.surface.DrawableSize()
	info := gpu.SwapchainInfo{
		MinImageCount: ChooseImageCount(caps),
		Format:        format,
		Extent:        ChooseExtent(caps, width, height),
		PresentMode:   ChoosePresentMode(modes),
		Capabilities:  caps,
		Families:      m.families,
	}

	logging.Logger().Debug("swapchain parameters chosen",
		slog.Int("min_image_count", info.MinImageCount),
		slog.Any("format", info.Format.Format),
		slog.Any("color_space", info.Format.ColorSpace),
		slog.Int("width", info.Extent.Width),
		slog.Int("height", info.Extent.Height),
		slog.Any("present_mode", info.PresentMode),
		slog.Int("graphics_family", info.Families.Graphics),
		slog.Int("present_family", info.Families.Present),
	)

	var old gpu.Swapchain
	if previous != nil {
		if previous.handle == nil {
			return nil, errors.AssertionFailedf("swapchain %s chained after it was destroyed", previous.ID)
		}
		old = previous.handle
	}

	handle, err := m.device.CreateSwapchain(info, old)
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	count, err := handle.ImageCount()
	if err != nil {
		handle.Destroy()
		return nil, errors.Wrap(err, "query swapchain images")
	}
	if count < caps.MinImageCount || (caps.MaxImageCount > 0 && count > caps.MaxImageCount) {
		handle.Destroy()
		return nil, errors.AssertionFailedf("swapchain has %d images, surface allows [%d, %d]", count, caps.MinImageCount, caps.MaxImageCount)
	}

	m.generation++
	sc := &Swapchain{
		ID:          uuid.New(),
		Generation:  m.generation,
		Format:      info.Format,
		Extent:      info.Extent,
		PresentMode: info.PresentMode,
		handle:      handle,
		images:      count,
		ownership:   newOwnership(count, m.families),
		acquired:    make([]bool, count),
	}
	if err := sc.ownership.transfer(m.device, handle); err != nil {
		handle.Destroy()
		return nil, err
	}

	if previous != nil {
		previous.Destroy()
	}

	logging.Logger().Info("swapchain created",
		slog.String("id", sc.ID.String()),
		slog.Int("generation", sc.Generation),
		slog.Int("images", count),
		slog.Int("width", sc.Extent.Width),
		slog.Int("height", sc.Extent.Height),
	)
	return sc, nil
}

func (s *Swapchain) ImageCount() int {
	return s.images
}

func (s *Swapchain) Ownership() *Ownership {
	return s.ownership
}

// Handle is the underlying presentable handle, nil once destroyed.
func (s *Swapchain) Handle() gpu.Swapchain {
	return s.handle
}

// Acquire asks the presentation engine for the next writable image. The
// semaphore is signaled once the image may be written. An out-of-date
// swapchain yields index -1 and leaves the semaphore unsignaled.
func (s *Swapchain) Acquire(signal gpu.Semaphore, timeout time.Duration) (int, gpu.Status, error) {
	if s.handle == nil {
		return -1, gpu.StatusOK, errors.AssertionFailedf("acquire on destroyed swapchain %s", s.ID)
	}

	index, status, err := s.handle.AcquireNextImage(timeout, signal)
	if err != nil {
		return -1, status, errors.Wrapf(err, "acquire image from swapchain %s", s.ID)
	}
	if status == gpu.StatusOutOfDate {
		return -1, status, nil
	}

	if index < 0 || index >= s.images {
		return -1, status, errors.AssertionFailedf("acquired image %d outside [0, %d)", index, s.images)
	}
	if s.acquired[index] {
		return -1, status, errors.AssertionFailedf("image %d acquired again before it was presented", index)
	}
	if err := s.ownership.requirePresentable(index); err != nil {
		return -1, status, err
	}
	s.acquired[index] = true
	return index, status, nil
}

// Release hands an acquired image back for presentation. Every present must
// release exactly the index a prior acquire on this swapchain returned.
func (s *Swapchain) Release(index int) error {
	if s.handle == nil {
		return errors.AssertionFailedf("present on destroyed swapchain %s", s.ID)
	}
	if index < 0 || index >= s.images {
		return errors.AssertionFailedf("presented image %d outside [0, %d)", index, s.images)
	}
	if !s.acquired[index] {
		return errors.AssertionFailedf("image %d presented without a matching acquire", index)
	}
	s.acquired[index] = false
	return nil
}

// Acquired reports whether an image is held by the application.
func (s *Swapchain) Acquired(index int) bool {
	return s.acquired[index]
}

func (s *Swapchain) Destroyed() bool {
	return s.handle == nil
}

func (s *Swapchain) Destroy() {
	if s.handle == nil {
		return
	}
	s.handle.Destroy()
	s.handle = nil
}
