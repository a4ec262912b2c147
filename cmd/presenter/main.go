// Command presenter opens a window and runs the frame synchronization and
// presentation protocol against it until the window closes or the process is
// interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/vkngwrapper/presenter/internal/config"
	"github.com/vkngwrapper/presenter/internal/frame"
	"github.com/vkngwrapper/presenter/internal/logging"
	"github.com/vkngwrapper/presenter/internal/loop"
	"github.com/vkngwrapper/presenter/internal/swapchain"
	"github.com/vkngwrapper/presenter/internal/vulkan"
	"github.com/vkngwrapper/presenter/internal/window"
	"golang.org/x/sync/errgroup"
)

func main() {
	// SDL and the presentation engine expect every call on the main thread.
	runtime.LockOSThread()

	cfg, err := config.Parse(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := cfg.Level()
	logging.SetLogger(logging.New(os.Stderr, level))

	if err := run(cfg); err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run(cfg config.Config) (err error) {
	win, err := window.Open(cfg.Window)
	if err != nil {
		return err
	}
	defer win.Close()

	instance, err := vulkan.CreateInstance(win, vulkan.InstanceOptions{
		ApplicationName: cfg.Window.Title,
		Validation:      cfg.Validation,
	})
	if err != nil {
		return err
	}
	defer instance.Destroy()

	surface, err := instance.CreateSurface(win)
	if err != nil {
		return err
	}
	defer surface.Destroy()

	physical, err := surface.SelectGPU()
	if err != nil {
		return err
	}

	device, err := physical.CreateDevice()
	if err != nil {
		return err
	}
	defer device.Destroy()

	manager := swapchain.NewManager(device, device.Surface(), device.Families())
	sc, err := manager.Create(nil)
	if err != nil {
		return err
	}

	frames, err := frame.New(device, cfg.FramesInFlight)
	if err != nil {
		sc.Destroy()
		return err
	}

	pool, err := device.CreateCommandPool()
	if err != nil {
		return discard(err, frames, sc)
	}
	defer pool.Destroy()

	l, err := loop.New(loop.Params{
		Device:     device,
		Graphics:   device.Graphics(),
		Present:    device.Present(),
		Frames:     frames,
		Swapchains: manager,
		Swapchain:  sc,
		Window:     win,
		Recorder:   pool,
		Options: loop.Options{
			FenceTimeout:   cfg.FenceTimeout.Duration,
			AcquireTimeout: cfg.AcquireTimeout.Duration,
			IdleInterval:   cfg.IdleInterval.Duration,
			ReportInterval: cfg.ReportInterval.Duration,
		},
	})
	if err != nil {
		return discard(err, frames, sc)
	}
	defer func() {
		if closeErr := l.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return watchSignals(ctx, cancel)
	})

	runErr := l.Run(ctx)
	cancel()
	if err := group.Wait(); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	stats := l.Stats()
	logging.Logger().Info("presenter stopped",
		slog.Uint64("frames", stats.Frames),
		slog.Int("recreations", stats.Recreations),
		slog.Duration("mean_frame_time", stats.MeanFrameTime()))
	return nil
}

// discard tears down the frame slots and swapchain built before a later
// setup stage failed, keeping any teardown error alongside err.
func discard(err error, frames *frame.Synchronizer, sc *swapchain.Swapchain) error {
	if destroyErr := frames.Destroy(); destroyErr != nil {
		err = errors.WithSecondaryError(err, destroyErr)
	}
	sc.Destroy()
	return err
}

// watchSignals cancels the loop on SIGINT or SIGTERM, and returns when ctx
// is done.
func watchSignals(ctx context.Context, cancel context.CancelFunc) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		logging.Logger().Info("interrupted", slog.String("signal", sig.String()))
		cancel()
	case <-ctx.Done():
	}
	return nil
}
