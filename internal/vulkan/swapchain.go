package vulkan

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

var _ gpu.Swapchain = (*Swapchain)(nil)

type Swapchain struct {
	device *Device
	handle khr_swapchain.Swapchain
	images []core1_0.Image
}

func (s *Swapchain) ImageCount() (int, error) {
	return len(s.images), nil
}

func (s *Swapchain) AcquireNextImage(d time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	sem, ok := signal.(*Semaphore)
	if !ok {
		return -1, gpu.StatusOK, errors.AssertionFailedf("semaphore %T was not created by this device", signal)
	}

	index, res, err := s.device.swapchainExt.AcquireNextImage(s.handle, timeout(d), &sem.handle, nil)
	status, err := presentStatus(res, err)
	if err != nil {
		return -1, status, errors.Wrap(err, "acquire next image")
	}
	if status == gpu.StatusOutOfDate {
		return -1, status, nil
	}
	return index, status, nil
}

func (s *Swapchain) Destroy() {
	if s.handle.Initialized() {
		s.device.swapchainExt.DestroySwapchain(s.handle, nil)
		s.handle = khr_swapchain.Swapchain{}
		s.images = nil
	}
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo, old gpu.Swapchain) (gpu.Swapchain, error) {
	create := khr_swapchain.SwapchainCreateInfo{
		Surface: d.physical.surface.handle,

		MinImageCount:    info.MinImageCount,
		ImageFormat:      info.Format.Format,
		ImageColorSpace:  info.Format.ColorSpace,
		ImageExtent:      info.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		// Images are handed between families by explicit barriers instead of
		// concurrent sharing.
		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   info.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    info.PresentMode,
		Clipped:        true,
	}
	if old != nil {
		previous, ok := old.(*Swapchain)
		if !ok {
			return nil, errors.AssertionFailedf("swapchain %T was not created by this device", old)
		}
		create.OldSwapchain = previous.handle
	}

	handle, res, err := d.swapchainExt.CreateSwapchain(nil, create)
	if err != nil {
		return nil, errors.Wrap(check(res, err), "create swapchain")
	}

	images, res, err := d.swapchainExt.GetSwapchainImages(handle)
	if err != nil {
		d.swapchainExt.DestroySwapchain(handle, nil)
		return nil, errors.Wrap(check(res, err), "get swapchain images")
	}

	return &Swapchain{device: d, handle: handle, images: images}, nil
}
