package vulkan

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

// presentStatus sorts a driver result into the acquire/present trichotomy.
// Lost devices and surfaces come back marked with the gpu sentinels.
func presentStatus(res common.VkResult, err error) (gpu.Status, error) {
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return gpu.StatusOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return gpu.StatusSuboptimal, nil
	}
	return gpu.StatusOK, check(res, err)
}

func check(res common.VkResult, err error) error {
	switch res {
	case core1_0.VKErrorDeviceLost:
		return mark(err, gpu.ErrDeviceLost)
	case khr_surface.VKErrorSurfaceLost:
		return mark(err, gpu.ErrSurfaceLost)
	case core1_0.VKTimeout:
		return mark(err, gpu.ErrTimeout)
	}
	return err
}

func mark(err, sentinel error) error {
	if err == nil {
		return sentinel
	}
	return errors.Mark(err, sentinel)
}

func timeout(d time.Duration) time.Duration {
	if d == gpu.NoTimeout {
		return common.NoTimeout
	}
	return d
}
