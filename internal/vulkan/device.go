package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

var _ gpu.Device = (*Device)(nil)

// Device is a logical device with one graphics and one present queue. When
// both roles share a family they share the queue.
type Device struct {
	physical     *PhysicalDevice
	driver       core1_0.CoreDeviceDriver
	swapchainExt khr_swapchain.ExtensionDriver

	graphics *Queue
	present  *Queue
	// pools holds one pool per distinct family for ownership transfers.
	pools map[int]core1_0.CommandPool
}

func (p *PhysicalDevice) CreateDevice() (*Device, error) {
	families := []int{p.Families.Graphics}
	if !p.Families.Shared() {
		families = append(families, p.Families.Present)
	}

	var queues []core1_0.DeviceQueueCreateInfo
	for _, family := range families {
		queues = append(queues, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := append([]string(nil), deviceExtensions...)
	extensions, _, err := p.surface.instance.driver.EnumerateDeviceExtensionProperties(p.handle)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	driver, _, err := p.surface.instance.driver.CreateDevice(p.handle, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queues,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	d := &Device{
		physical:     p,
		driver:       driver,
		swapchainExt: khr_swapchain.CreateExtensionDriverFromCoreDriver(driver),
		pools:        make(map[int]core1_0.CommandPool),
	}
	d.graphics = &Queue{device: d, handle: driver.GetQueue(p.Families.Graphics, 0), family: p.Families.Graphics}
	d.present = d.graphics
	if !p.Families.Shared() {
		d.present = &Queue{device: d, handle: driver.GetQueue(p.Families.Present, 0), family: p.Families.Present}
	}

	for _, family := range families {
		pool, _, err := driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
			QueueFamilyIndex: family,
		})
		if err != nil {
			d.Destroy()
			return nil, errors.Wrapf(err, "create transfer command pool for family %d", family)
		}
		d.pools[family] = pool
	}
	return d, nil
}

func (d *Device) Graphics() *Queue {
	return d.graphics
}

func (d *Device) Present() *Queue {
	return d.present
}

func (d *Device) Families() gpu.QueueFamilies {
	return d.physical.Families
}

// Surface reports surface support as seen by this device's GPU.
func (d *Device) Surface() gpu.Surface {
	return d.physical.surface.support(d.physical.handle)
}

func (d *Device) WaitIdle() error {
	res, err := d.driver.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(check(res, err), "wait for device idle")
	}
	return nil
}

// Destroy releases the device. Everything created from it must already be
// destroyed.
func (d *Device) Destroy() {
	for family, pool := range d.pools {
		d.driver.DestroyCommandPool(pool, nil)
		delete(d.pools, family)
	}
	d.driver.DestroyDevice(nil)
}
