package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

var _ gpu.Queue = (*Queue)(nil)

type Queue struct {
	device *Device
	handle core1_0.Queue
	family int
}

func (q *Queue) Family() int {
	return q.family
}

func (q *Queue) Submit(info gpu.SubmitInfo) error {
	wait, err := semaphoreHandles(info.WaitSemaphores)
	if err != nil {
		return err
	}
	signal, err := semaphoreHandles(info.SignalSemaphores)
	if err != nil {
		return err
	}
	fence, err := fenceHandle(info.Fence)
	if err != nil {
		return err
	}

	var buffers []core1_0.CommandBuffer
	for _, work := range info.Work {
		buffer, ok := work.(*CommandBuffer)
		if !ok {
			return errors.AssertionFailedf("command buffer %T was not allocated by this device", work)
		}
		buffers = append(buffers, buffer.handle)
	}

	res, err := q.device.driver.QueueSubmit(q.handle, fence, core1_0.SubmitInfo{
		WaitSemaphores:   wait,
		WaitDstStageMask: info.WaitStages,
		CommandBuffers:   buffers,
		SignalSemaphores: signal,
	})
	if err != nil {
		return errors.Wrapf(check(res, err), "submit to queue family %d", q.family)
	}
	return nil
}

func (q *Queue) Present(info gpu.PresentInfo) (gpu.Status, error) {
	sc, ok := info.Swapchain.(*Swapchain)
	if !ok {
		return gpu.StatusOK, errors.AssertionFailedf("swapchain %T was not created by this device", info.Swapchain)
	}
	wait, err := semaphoreHandles(info.WaitSemaphores)
	if err != nil {
		return gpu.StatusOK, err
	}

	status, err := presentStatus(q.device.swapchainExt.QueuePresent(q.handle, khr_swapchain.PresentInfo{
		WaitSemaphores: wait,
		Swapchains:     []khr_swapchain.Swapchain{sc.handle},
		ImageIndices:   []int{info.ImageIndex},
	}))
	if err != nil {
		return status, errors.Wrapf(err, "present image %d", info.ImageIndex)
	}
	return status, nil
}
