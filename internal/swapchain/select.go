package swapchain

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// undefinedExtent is the current-extent width a surface reports when the
// swapchain extent decides the window size instead.
const undefinedExtent = -1

// ErrNoSurfaceFormats is returned when the surface reports no formats.
var ErrNoSurfaceFormats = errors.New("surface reports no formats")

var preferredFormats = []core1_0.Format{
	core1_0.FormatB8G8R8A8SRGB,
	core1_0.FormatR8G8B8A8SRGB,
}

// ChooseImageCount asks for one image above the minimum so the CPU never
// waits on the presentation engine for the last image, clamped to the
// maximum when the surface has one.
func ChooseImageCount(caps *khr_surface.SurfaceCapabilities) int {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ChoosePresentMode picks mailbox when available and FIFO otherwise. FIFO is
// always supported.
func ChoosePresentMode(modes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, mode := range modes {
		if mode == khr_surface.PresentModeMailbox {
			return mode
		}
	}
	return khr_surface.PresentModeFIFO
}

// ChooseSurfaceFormat returns the first 8-bit sRGB format in the sRGB
// nonlinear color space, falling back to whatever the surface lists first.
func ChooseSurfaceFormat(formats []khr_surface.SurfaceFormat) (khr_surface.SurfaceFormat, error) {
	if len(formats) == 0 {
		return khr_surface.SurfaceFormat{}, ErrNoSurfaceFormats
	}
	for _, preferred := range preferredFormats {
		for _, format := range formats {
			if format.Format == preferred && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
				return format, nil
			}
		}
	}
	return formats[0], nil
}

func ChooseExtent(caps *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(drawableWidth, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(drawableHeight, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}
