// Package window wraps the SDL2 window the swapchain presents into.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/presenter/internal/config"
	"github.com/vkngwrapper/presenter/internal/loop"
)

type Window struct {
	window    *sdl.Window
	minimized bool
}

var _ loop.Window = (*Window)(nil)

// Open initializes SDL video and creates a Vulkan-capable window. It must be
// called from the locked main thread.
func Open(cfg config.Window) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initialize sdl video")
	}

	flags := uint32(sdl.WINDOW_SHOWN | sdl.WINDOW_VULKAN)
	if cfg.Resizable {
		flags |= sdl.WINDOW_RESIZABLE
	}
	w, err := sdl.CreateWindow(cfg.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(cfg.Width), int32(cfg.Height), flags)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}
	return &Window{window: w}, nil
}

func (w *Window) SDL() *sdl.Window {
	return w.window
}

// InstanceExtensions lists the instance extensions SDL needs to create a
// surface for this window.
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// Poll drains the SDL event queue.
func (w *Window) Poll() loop.Events {
	var events loop.Events
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.minimized = apply(event, &events, w.minimized)
	}
	return events
}

func apply(event sdl.Event, events *loop.Events, minimized bool) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		events.Quit = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			events.Quit = true
		case sdl.WINDOWEVENT_MINIMIZED:
			minimized = true
		// SDL does not always report RESTORED on the way out of a
		// minimize: a window maximized before it was minimized comes back
		// with MAXIMIZED, and some platforms only report a size change.
		case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_MAXIMIZED,
			sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			minimized = false
			events.Resized = true
		}
	}
	return minimized
}

// DrawableSize is the window size in pixels, zero while minimized.
func (w *Window) DrawableSize() (int, int) {
	if w.minimized || w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *Window) Close() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
