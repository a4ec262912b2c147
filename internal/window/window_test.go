package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/presenter/internal/loop"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name          string
		event         sdl.Event
		minimized     bool
		want          loop.Events
		wantMinimized bool
	}{
		{"quit", &sdl.QuitEvent{}, false, loop.Events{Quit: true}, false},
		{"close", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_CLOSE}, false, loop.Events{Quit: true}, false},
		{"resized", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_RESIZED}, false, loop.Events{Resized: true}, false},
		{"size changed", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_SIZE_CHANGED}, false, loop.Events{Resized: true}, false},
		{"minimized", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_MINIMIZED}, false, loop.Events{}, true},
		{"restored", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_RESTORED}, true, loop.Events{Resized: true}, false},
		{"maximized after minimized", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_MAXIMIZED}, true, loop.Events{Resized: true}, false},
		{"resized after minimized", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_RESIZED}, true, loop.Events{Resized: true}, false},
		{"size changed after minimized", &sdl.WindowEvent{Event: sdl.WINDOWEVENT_SIZE_CHANGED}, true, loop.Events{Resized: true}, false},
		{"unrelated", &sdl.KeyboardEvent{}, true, loop.Events{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events loop.Events
			minimized := apply(tt.event, &events, tt.minimized)
			assert.Equal(t, tt.want, events)
			assert.Equal(t, tt.wantMinimized, minimized)
		})
	}
}

func TestApplySequenceLeavesMinimize(t *testing.T) {
	var events loop.Events
	minimized := apply(&sdl.WindowEvent{Event: sdl.WINDOWEVENT_MAXIMIZED}, &events, false)
	minimized = apply(&sdl.WindowEvent{Event: sdl.WINDOWEVENT_MINIMIZED}, &events, minimized)
	assert.True(t, minimized)

	events = loop.Events{}
	minimized = apply(&sdl.WindowEvent{Event: sdl.WINDOWEVENT_MAXIMIZED}, &events, minimized)
	assert.False(t, minimized)
	assert.True(t, events.Resized)
}
