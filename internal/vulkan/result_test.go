package vulkan

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

func TestPresentStatus(t *testing.T) {
	driverErr := errors.New("driver error")

	status, err := presentStatus(core1_0.VKSuccess, nil)
	assert.NoError(t, err)
	assert.Equal(t, gpu.StatusOK, status)

	status, err = presentStatus(khr_swapchain.VKSuboptimal, nil)
	assert.NoError(t, err)
	assert.Equal(t, gpu.StatusSuboptimal, status)

	status, err = presentStatus(khr_swapchain.VKErrorOutOfDate, driverErr)
	assert.NoError(t, err)
	assert.Equal(t, gpu.StatusOutOfDate, status)

	_, err = presentStatus(core1_0.VKErrorDeviceLost, driverErr)
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	assert.ErrorIs(t, err, driverErr)

	_, err = presentStatus(khr_surface.VKErrorSurfaceLost, driverErr)
	assert.ErrorIs(t, err, gpu.ErrSurfaceLost)
}

func TestCheck(t *testing.T) {
	assert.ErrorIs(t, check(core1_0.VKTimeout, nil), gpu.ErrTimeout)
	assert.NoError(t, check(core1_0.VKSuccess, nil))

	other := errors.New("out of memory")
	assert.Equal(t, other, check(core1_0.VKErrorOutOfHostMemory, other))
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, common.NoTimeout, timeout(gpu.NoTimeout))
	assert.Equal(t, 5*time.Millisecond, timeout(5*time.Millisecond))
}
