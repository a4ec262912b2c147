package vulkan

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

var (
	_ gpu.Semaphore = (*Semaphore)(nil)
	_ gpu.Fence     = (*Fence)(nil)
)

type Semaphore struct {
	driver core1_0.CoreDeviceDriver
	handle core1_0.Semaphore
}

func (s *Semaphore) Destroy() {
	if s.handle.Initialized() {
		s.driver.DestroySemaphore(s.handle, nil)
		s.handle = core1_0.Semaphore{}
	}
}

type Fence struct {
	driver core1_0.CoreDeviceDriver
	handle core1_0.Fence
}

func (f *Fence) Wait(d time.Duration) error {
	res, err := f.driver.WaitForFences(true, timeout(d), f.handle)
	return check(res, err)
}

func (f *Fence) Reset() error {
	res, err := f.driver.ResetFences(f.handle)
	return check(res, err)
}

func (f *Fence) Destroy() {
	if f.handle.Initialized() {
		f.driver.DestroyFence(f.handle, nil)
		f.handle = core1_0.Fence{}
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	handle, res, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(check(res, err), "create semaphore")
	}
	return &Semaphore{driver: d.driver, handle: handle}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	var info core1_0.FenceCreateInfo
	if signaled {
		info.Flags = core1_0.FenceCreateSignaled
	}
	handle, res, err := d.driver.CreateFence(nil, info)
	if err != nil {
		return nil, errors.Wrap(check(res, err), "create fence")
	}
	return &Fence{driver: d.driver, handle: handle}, nil
}

func semaphoreHandles(in []gpu.Semaphore) ([]core1_0.Semaphore, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]core1_0.Semaphore, 0, len(in))
	for _, s := range in {
		sem, ok := s.(*Semaphore)
		if !ok {
			return nil, errors.AssertionFailedf("semaphore %T was not created by this device", s)
		}
		out = append(out, sem.handle)
	}
	return out, nil
}

func fenceHandle(in gpu.Fence) (*core1_0.Fence, error) {
	if in == nil {
		return nil, nil
	}
	f, ok := in.(*Fence)
	if !ok {
		return nil, errors.AssertionFailedf("fence %T was not created by this device", in)
	}
	return &f.handle, nil
}
