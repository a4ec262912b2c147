package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

// TransferOwnership moves freshly created swapchain images into the present
// layout. With split families the graphics queue records the release half
// of the barrier and the present queue the acquire half, ordered by a
// semaphore. It blocks until the present side has executed.
func (d *Device) TransferOwnership(swapchain gpu.Swapchain, images []int, families gpu.QueueFamilies) error {
	sc, ok := swapchain.(*Swapchain)
	if !ok {
		return errors.AssertionFailedf("swapchain %T was not created by this device", swapchain)
	}
	if len(images) == 0 {
		return nil
	}

	barriers := make([]core1_0.ImageMemoryBarrier, 0, len(images))
	for _, index := range images {
		if index < 0 || index >= len(sc.images) {
			return errors.AssertionFailedf("image %d out of range for %d images", index, len(sc.images))
		}
		barrier := core1_0.ImageMemoryBarrier{
			OldLayout:           core1_0.ImageLayoutUndefined,
			NewLayout:           khr_swapchain.ImageLayoutPresentSrc,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               sc.images[index],
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		if !families.Shared() {
			barrier.SrcQueueFamilyIndex = families.Graphics
			barrier.DstQueueFamilyIndex = families.Present
		}
		barriers = append(barriers, barrier)
	}

	if families.Shared() {
		return d.runOnce(d.graphics, barriers, nil, nil)
	}

	handoff, res, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return errors.Wrap(check(res, err), "create ownership semaphore")
	}
	defer d.driver.DestroySemaphore(handoff, nil)

	if err := d.runOnce(d.graphics, barriers, nil, &handoff); err != nil {
		return errors.Wrap(err, "release images from the graphics family")
	}
	if err := d.runOnce(d.present, barriers, &handoff, nil); err != nil {
		return errors.Wrap(err, "acquire images on the present family")
	}
	return nil
}

// runOnce records barriers into a one-time command buffer, submits it to
// queue and waits for it on the host.
func (d *Device) runOnce(queue *Queue, barriers []core1_0.ImageMemoryBarrier, wait, signal *core1_0.Semaphore) error {
	pool, ok := d.pools[queue.family]
	if !ok {
		return errors.AssertionFailedf("no transfer pool for queue family %d", queue.family)
	}

	buffers, res, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(check(res, err), "allocate transfer command buffer")
	}
	buffer := buffers[0]
	defer d.driver.FreeCommandBuffers(buffer)

	if res, err := d.driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}); err != nil {
		return errors.Wrap(check(res, err), "begin transfer command buffer")
	}
	if err := d.driver.CmdPipelineBarrier(buffer, core1_0.PipelineStageTopOfPipe, core1_0.PipelineStageBottomOfPipe, 0, nil, nil, barriers); err != nil {
		return errors.Wrap(err, "record ownership barrier")
	}
	if res, err := d.driver.EndCommandBuffer(buffer); err != nil {
		return errors.Wrap(check(res, err), "end transfer command buffer")
	}

	fence, res, err := d.driver.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return errors.Wrap(check(res, err), "create transfer fence")
	}
	defer d.driver.DestroyFence(fence, nil)

	submit := core1_0.SubmitInfo{CommandBuffers: []core1_0.CommandBuffer{buffer}}
	if wait != nil {
		submit.WaitSemaphores = []core1_0.Semaphore{*wait}
		submit.WaitDstStageMask = []core1_0.PipelineStageFlags{core1_0.PipelineStageTopOfPipe}
	}
	if signal != nil {
		submit.SignalSemaphores = []core1_0.Semaphore{*signal}
	}
	if res, err := d.driver.QueueSubmit(queue.handle, &fence, submit); err != nil {
		return errors.Wrap(check(res, err), "submit ownership barrier")
	}
	if res, err := d.driver.WaitForFences(true, common.NoTimeout, fence); err != nil {
		return errors.Wrap(check(res, err), "wait for ownership barrier")
	}
	return nil
}
