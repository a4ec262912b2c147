// Package gpu declares the device-side collaborators the presentation
// protocol is driven against. The vulkan package implements them on top of
// vkngwrapper; gputest implements them as an in-process fake timeline.
package gpu

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// NoTimeout blocks a wait until it completes.
const NoTimeout = time.Duration(math.MaxInt64)

var (
	ErrDeviceLost  = errors.New("device lost")
	ErrSurfaceLost = errors.New("surface lost")
	ErrTimeout     = errors.New("timed out waiting on the gpu")
)

// Status is the outcome of an acquire or present that did not fail outright.
type Status int

const (
	StatusOK Status = iota
	// StatusSuboptimal still presents correctly, but the swapchain no longer
	// matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the swapchain can no longer be used.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	}
	return "unknown"
}

// QueueFamilies is a resolved graphics/present family pair.
type QueueFamilies struct {
	Graphics int
	Present  int
}

func (f QueueFamilies) Shared() bool {
	return f.Graphics == f.Present
}

type Semaphore interface {
	Destroy()
}

type Fence interface {
	// Wait blocks until the fence is signaled or the timeout elapses, in which
	// case it returns ErrTimeout.
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

// CommandBuffer is recorded GPU work. Release is called once the fence
// guarding its submission has been observed signaled.
type CommandBuffer interface {
	Release()
}

type SubmitInfo struct {
	Work             []CommandBuffer
	WaitSemaphores   []Semaphore
	WaitStages       []core1_0.PipelineStageFlags
	SignalSemaphores []Semaphore
	// Fence is signaled when every command in the batch has completed. It may
	// be nil.
	Fence Fence
}

type PresentInfo struct {
	Swapchain      Swapchain
	ImageIndex     int
	WaitSemaphores []Semaphore
}

type Queue interface {
	Family() int
	Submit(info SubmitInfo) error
	Present(info PresentInfo) (Status, error)
}

// Surface reports what the presentation engine supports for the window.
type Surface interface {
	Capabilities() (*khr_surface.SurfaceCapabilities, error)
	Formats() ([]khr_surface.SurfaceFormat, error)
	PresentModes() ([]khr_surface.PresentMode, error)
	// DrawableSize is the window's size in pixels.
	DrawableSize() (width, height int)
}

// SwapchainInfo carries the negotiated swapchain parameters.
type SwapchainInfo struct {
	MinImageCount int
	Format        khr_surface.SurfaceFormat
	Extent        core1_0.Extent2D
	PresentMode   khr_surface.PresentMode
	Capabilities  *khr_surface.SurfaceCapabilities
	Families      QueueFamilies
}

// Swapchain is a raw presentable image ring.
type Swapchain interface {
	ImageCount() (int, error)
	// AcquireNextImage signals the semaphore when the returned image may be
	// written. On StatusOutOfDate the index is -1 and the semaphore is left
	// untouched.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (int, Status, error)
	Destroy()
}

type Device interface {
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	// CreateSwapchain builds a swapchain, chained to old when it is non-nil.
	// The old swapchain is not destroyed.
	CreateSwapchain(info SwapchainInfo, old Swapchain) (Swapchain, error)
	// TransferOwnership moves the listed images from undefined layout into
	// the present layout, released by the graphics family and acquired by
	// the present family, and blocks until the transfer has executed.
	TransferOwnership(swapchain Swapchain, images []int, families QueueFamilies) error
	WaitIdle() error
}
