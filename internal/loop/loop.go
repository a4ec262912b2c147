// Package loop drives frames through the synchronizer until the window
// closes, rebuilding the swapchain whenever the surface outgrows it.
package loop

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/presenter/internal/frame"
	"github.com/vkngwrapper/presenter/internal/gpu"
	"github.com/vkngwrapper/presenter/internal/logging"
	"github.com/vkngwrapper/presenter/internal/swapchain"
)

// Events is what the window reported since the last poll.
type Events struct {
	Quit    bool
	Resized bool
}

type Window interface {
	Poll() Events
	// DrawableSize is zero in either dimension while the window is
	// minimized.
	DrawableSize() (width, height int)
}

// Recorder produces the GPU work for one frame targeting image of sc.
type Recorder interface {
	Record(sc *swapchain.Swapchain, image int) ([]gpu.CommandBuffer, error)
}

type Options struct {
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
	// IdleInterval is slept per iteration while the window is minimized.
	IdleInterval time.Duration
	// ReportInterval is how often frame statistics are logged. Zero never
	// logs them.
	ReportInterval time.Duration
}

// Params gathers what a Loop drives. Swapchain is the initial swapchain;
// the loop owns it from then on.
type Params struct {
	Device     gpu.Device
	Graphics   gpu.Queue
	Present    gpu.Queue
	Frames     *frame.Synchronizer
	Swapchains *swapchain.Manager
	Swapchain  *swapchain.Swapchain
	Window     Window
	Recorder   Recorder
	Options    Options
}

type Loop struct {
	opts       Options
	device     gpu.Device
	graphics   gpu.Queue
	present    gpu.Queue
	frames     *frame.Synchronizer
	swapchains *swapchain.Manager
	current    *swapchain.Swapchain
	window     Window
	recorder   Recorder

	counter uint64
	stale   bool
	stats   Stats
	report  reporter
}

func New(p Params) (*Loop, error) {
	switch {
	case p.Device == nil:
		return nil, errors.New("loop: nil device")
	case p.Graphics == nil || p.Present == nil:
		return nil, errors.New("loop: nil queue")
	case p.Frames == nil:
		return nil, errors.New("loop: nil frame synchronizer")
	case p.Swapchains == nil || p.Swapchain == nil:
		return nil, errors.New("loop: nil swapchain")
	case p.Window == nil:
		return nil, errors.New("loop: nil window")
	case p.Recorder == nil:
		return nil, errors.New("loop: nil recorder")
	}

	opts := p.Options
	if opts.FenceTimeout <= 0 {
		opts.FenceTimeout = gpu.NoTimeout
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = gpu.NoTimeout
	}

	return &Loop{
		opts:       opts,
		device:     p.Device,
		graphics:   p.Graphics,
		present:    p.Present,
		frames:     p.Frames,
		swapchains: p.Swapchains,
		current:    p.Swapchain,
		window:     p.Window,
		recorder:   p.Recorder,
		report:     reporter{interval: opts.ReportInterval},
	}, nil
}

// Counter is the number of frames presented so far.
func (l *Loop) Counter() uint64 {
	return l.counter
}

func (l *Loop) Stats() Stats {
	return l.stats
}

func (l *Loop) Swapchain() *swapchain.Swapchain {
	return l.current
}

// Run renders until the window asks to quit or ctx is cancelled, then waits
// for the device to go idle. The returned error is the first fatal one.
func (l *Loop) Run(ctx context.Context) error {
	err := l.run(ctx)
	if idleErr := l.device.WaitIdle(); idleErr != nil && err == nil {
		err = errors.Wrap(idleErr, "wait for device idle")
	}
	return err
}

func (l *Loop) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			logging.Logger().Info("presentation loop cancelled", slog.Uint64("frames", l.counter))
			return nil
		}

		events := l.window.Poll()
		if events.Quit {
			logging.Logger().Info("window closed", slog.Uint64("frames", l.counter))
			return nil
		}
		if events.Resized {
			logging.Logger().Debug("window resized", slog.Uint64("frame", l.counter))
			l.stale = true
		}

		if err := l.Frame(); err != nil {
			return err
		}
	}
}

// Frame runs one iteration: rebuild if stale, then begin, acquire, record,
// submit and present through the next slot. A minimized window skips the
// iteration.
func (l *Loop) Frame() error {
	if !l.drawable() {
		l.stats.Paused++
		if l.opts.IdleInterval > 0 {
			time.Sleep(l.opts.IdleInterval)
		}
		return nil
	}
	if l.stale {
		if err := l.rebuild(); err != nil {
			return err
		}
		if l.stale {
			return nil
		}
	}

	start := hrtime.Now()
	slot := l.frames.SlotFor(l.counter)
	if err := l.frames.BeginFrame(slot, l.opts.FenceTimeout); err != nil {
		return err
	}

	index, status, err := l.frames.Acquire(slot, l.current, l.opts.AcquireTimeout)
	if err != nil {
		return err
	}
	switch status {
	case gpu.StatusOutOfDate:
		l.stats.OutOfDate++
		l.degraded("acquire", status)
		if err := l.frames.Abandon(slot, l.graphics); err != nil {
			return err
		}
		return l.rebuild()
	case gpu.StatusSuboptimal:
		l.stats.Suboptimal++
		l.degraded("acquire", status)
		l.stale = true
	}

	work, err := l.recorder.Record(l.current, index)
	if err != nil {
		return errors.Wrapf(err, "record frame %d", l.counter)
	}
	if err := l.frames.Submit(slot, l.graphics, work...); err != nil {
		return err
	}

	status, err = l.frames.Present(slot, l.present, l.current, index)
	if err != nil {
		return err
	}
	switch status {
	case gpu.StatusOutOfDate:
		l.stats.OutOfDate++
		l.degraded("present", status)
		l.stale = true
	case gpu.StatusSuboptimal:
		l.stats.Suboptimal++
		l.degraded("present", status)
		l.stale = true
	}

	l.counter++
	l.stats.Frames++
	l.stats.FrameTime += hrtime.Since(start)
	l.report.tick(l.stats)
	return nil
}

// degraded reports an acquire or present that left the swapchain in need of
// a rebuild.
func (l *Loop) degraded(op string, status gpu.Status) {
	logging.Logger().Warn("swapchain degraded",
		slog.String("op", op),
		slog.String("status", status.String()),
		slog.Int("generation", l.current.Generation),
		slog.Uint64("frame", l.counter))
}

func (l *Loop) drawable() bool {
	w, h := l.window.DrawableSize()
	return w > 0 && h > 0
}

// rebuild replaces the swapchain once the device is idle. While the window
// has no drawable area the swapchain stays stale.
func (l *Loop) rebuild() error {
	if !l.drawable() {
		l.stale = true
		return nil
	}
	if err := l.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle before rebuilding the swapchain")
	}

	sc, err := l.swapchains.Create(l.current)
	if err != nil {
		return errors.Wrap(err, "rebuild swapchain")
	}
	l.current = sc
	l.stale = false
	l.stats.Recreations++
	return nil
}

// Close destroys the frame slots and the current swapchain, in that order,
// after the device is idle.
func (l *Loop) Close() error {
	err := l.frames.Destroy()
	l.current.Destroy()
	return err
}
