package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/presenter/internal/gpu"
	"github.com/vkngwrapper/presenter/internal/loop"
	"github.com/vkngwrapper/presenter/internal/swapchain"
)

var (
	_ loop.Recorder     = (*CommandPool)(nil)
	_ gpu.CommandBuffer = (*CommandBuffer)(nil)
)

// CommandPool allocates per-frame command buffers on the graphics family.
type CommandPool struct {
	device *Device
	handle core1_0.CommandPool
}

func (d *Device) CreateCommandPool() (*CommandPool, error) {
	pool, res, err := d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: d.graphics.family,
	})
	if err != nil {
		return nil, errors.Wrap(check(res, err), "create command pool")
	}
	return &CommandPool{device: d, handle: pool}, nil
}

// Record produces the frame's work. Nothing is drawn: the buffer is begun and
// ended empty, so the frame only carries the synchronization around it.
func (p *CommandPool) Record(sc *swapchain.Swapchain, image int) ([]gpu.CommandBuffer, error) {
	if image < 0 || image >= sc.ImageCount() {
		return nil, errors.AssertionFailedf("record for image %d of %d", image, sc.ImageCount())
	}

	driver := p.device.driver
	buffers, res, err := driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.handle,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(check(res, err), "allocate command buffer")
	}
	buffer := &CommandBuffer{driver: driver, handle: buffers[0]}

	res, err = driver.BeginCommandBuffer(buffer.handle, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		buffer.Release()
		return nil, errors.Wrap(check(res, err), "begin command buffer")
	}
	res, err = driver.EndCommandBuffer(buffer.handle)
	if err != nil {
		buffer.Release()
		return nil, errors.Wrap(check(res, err), "end command buffer")
	}
	return []gpu.CommandBuffer{buffer}, nil
}

// Destroy frees the pool and every buffer still allocated from it.
func (p *CommandPool) Destroy() {
	if p.handle.Initialized() {
		p.device.driver.DestroyCommandPool(p.handle, nil)
		p.handle = core1_0.CommandPool{}
	}
}

type CommandBuffer struct {
	driver core1_0.CoreDeviceDriver
	handle core1_0.CommandBuffer
}

func (b *CommandBuffer) Release() {
	if b.handle.Initialized() {
		b.driver.FreeCommandBuffers(b.handle)
		b.handle = core1_0.CommandBuffer{}
	}
}
