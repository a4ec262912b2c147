package swapchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		want     int
	}{
		{"unbounded", 2, 0, 3},
		{"clamped to max", 3, 3, 3},
		{"room below max", 2, 8, 3},
		{"single image surface", 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := &khr_surface.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
			assert.Equal(t, tt.want, ChooseImageCount(caps))
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, khr_surface.PresentModeMailbox,
		ChoosePresentMode([]khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox}))
	assert.Equal(t, khr_surface.PresentModeFIFO,
		ChoosePresentMode([]khr_surface.PresentMode{khr_surface.PresentModeFIFO}))
	assert.Equal(t, khr_surface.PresentModeFIFO, ChoosePresentMode(nil))
}

func TestChooseSurfaceFormat(t *testing.T) {
	bgra := khr_surface.SurfaceFormat{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}
	rgba := khr_surface.SurfaceFormat{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}
	unorm := khr_surface.SurfaceFormat{Format: core1_0.Format(44), ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}

	got, err := ChooseSurfaceFormat([]khr_surface.SurfaceFormat{unorm, rgba, bgra})
	require.NoError(t, err)
	assert.Equal(t, bgra, got)

	got, err = ChooseSurfaceFormat([]khr_surface.SurfaceFormat{unorm, rgba})
	require.NoError(t, err)
	assert.Equal(t, rgba, got)

	got, err = ChooseSurfaceFormat([]khr_surface.SurfaceFormat{unorm})
	require.NoError(t, err)
	assert.Equal(t, unorm, got)

	_, err = ChooseSurfaceFormat(nil)
	assert.ErrorIs(t, err, ErrNoSurfaceFormats)
}

func TestChooseExtent(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, core1_0.Extent2D{Width: 1024, Height: 768}, ChooseExtent(caps, 1024, 768))
	assert.Equal(t, core1_0.Extent2D{Width: 4096, Height: 1}, ChooseExtent(caps, 5000, 0))

	caps.CurrentExtent = core1_0.Extent2D{Width: 1280, Height: 720}
	assert.Equal(t, core1_0.Extent2D{Width: 1280, Height: 720}, ChooseExtent(caps, 1024, 768))
}
