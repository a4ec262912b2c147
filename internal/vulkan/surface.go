package vulkan

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
	"github.com/vkngwrapper/presenter/internal/gpu"
	"github.com/vkngwrapper/presenter/internal/logging"
)

var ErrNoSuitableGPU = errors.New("no GPU can present to the window")

var deviceExtensions = []string{khr_swapchain.ExtensionName}

var _ gpu.Surface = (*surfaceSupport)(nil)

type Surface struct {
	instance *Instance
	handle   khr_surface.Surface
	window   Window
}

func (i *Instance) CreateSurface(win Window) (*Surface, error) {
	handle, err := vkng_sdl2.CreateSurface(i.driver.Instance(), i.surfaceExt, win.SDL())
	if err != nil {
		return nil, errors.Wrap(err, "create surface")
	}
	return &Surface{instance: i, handle: handle, window: win}, nil
}

func (s *Surface) Destroy() {
	if s.handle.Initialized() {
		s.instance.surfaceExt.DestroySurface(s.handle, nil)
		s.handle = khr_surface.Surface{}
	}
}

// PhysicalDevice is a GPU that can render and present to the surface.
type PhysicalDevice struct {
	surface  *Surface
	handle   core1_0.PhysicalDevice
	Families gpu.QueueFamilies
}

// SelectGPU picks the first physical device that supports the swapchain
// extension, offers at least one surface format and present mode, and has
// graphics and present queue families.
func (s *Surface) SelectGPU() (*PhysicalDevice, error) {
	devices, _, err := s.instance.driver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	for index, device := range devices {
		families, err := s.suitable(device)
		if err != nil {
			logging.Logger().Debug("physical device rejected",
				slog.Int("device", index), slog.String("reason", err.Error()))
			continue
		}
		logging.Logger().Info("physical device selected",
			slog.Int("device", index),
			slog.Int("graphics_family", families.Graphics),
			slog.Int("present_family", families.Present))
		return &PhysicalDevice{surface: s, handle: device, Families: families}, nil
	}
	return nil, ErrNoSuitableGPU
}

func (s *Surface) suitable(device core1_0.PhysicalDevice) (gpu.QueueFamilies, error) {
	indices, err := s.queueFamilies(device)
	if err != nil {
		return gpu.QueueFamilies{}, err
	}
	families, err := indices.Resolve()
	if err != nil {
		return gpu.QueueFamilies{}, err
	}

	extensions, _, err := s.instance.driver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return gpu.QueueFamilies{}, errors.Wrap(err, "enumerate device extensions")
	}
	for _, ext := range deviceExtensions {
		if _, ok := extensions[ext]; !ok {
			return gpu.QueueFamilies{}, errors.Newf("missing device extension %s", ext)
		}
	}

	support := s.support(device)
	formats, err := support.Formats()
	if err != nil {
		return gpu.QueueFamilies{}, err
	}
	modes, err := support.PresentModes()
	if err != nil {
		return gpu.QueueFamilies{}, err
	}
	if len(formats) == 0 || len(modes) == 0 {
		return gpu.QueueFamilies{}, errors.New("surface offers no formats or present modes")
	}
	return families, nil
}

func (s *Surface) queueFamilies(device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	properties := s.instance.driver.GetPhysicalDeviceQueueFamilyProperties(device)
	support := make([]familySupport, len(properties))
	for idx, family := range properties {
		present, _, err := s.instance.surfaceExt.GetPhysicalDeviceSurfaceSupport(s.handle, device, idx)
		if err != nil {
			return QueueFamilyIndices{}, errors.Wrapf(err, "query present support of queue family %d", idx)
		}
		support[idx] = familySupport{
			graphics: family.QueueFlags&core1_0.QueueGraphics != 0,
			present:  present,
		}
	}
	return findQueueFamilies(support), nil
}

func (s *Surface) support(device core1_0.PhysicalDevice) *surfaceSupport {
	return &surfaceSupport{surface: s, device: device}
}

// surfaceSupport answers surface queries for one physical device.
type surfaceSupport struct {
	surface *Surface
	device  core1_0.PhysicalDevice
}

func (s *surfaceSupport) Capabilities() (*khr_surface.SurfaceCapabilities, error) {
	caps, res, err := s.surface.instance.surfaceExt.GetPhysicalDeviceSurfaceCapabilities(s.surface.handle, s.device)
	if err != nil {
		return nil, errors.Wrap(check(res, err), "query surface capabilities")
	}
	return caps, nil
}

func (s *surfaceSupport) Formats() ([]khr_surface.SurfaceFormat, error) {
	formats, res, err := s.surface.instance.surfaceExt.GetPhysicalDeviceSurfaceFormats(s.surface.handle, s.device)
	if err != nil {
		return nil, errors.Wrap(check(res, err), "query surface formats")
	}
	return formats, nil
}

func (s *surfaceSupport) PresentModes() ([]khr_surface.PresentMode, error) {
	modes, res, err := s.surface.instance.surfaceExt.GetPhysicalDeviceSurfacePresentModes(s.surface.handle, s.device)
	if err != nil {
		return nil, errors.Wrap(check(res, err), "query surface present modes")
	}
	return modes, nil
}

func (s *surfaceSupport) DrawableSize() (int, int) {
	return s.surface.window.DrawableSize()
}
