package loop

import (
	"log/slog"
	"time"

	"github.com/loov/hrtime"
	"github.com/vkngwrapper/presenter/internal/logging"
)

type Stats struct {
	Frames      uint64
	Recreations int
	Suboptimal  int
	OutOfDate   int
	// Paused counts iterations skipped while the window was minimized.
	Paused    int
	FrameTime time.Duration
}

func (s Stats) MeanFrameTime() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.FrameTime / time.Duration(s.Frames)
}

type reporter struct {
	interval time.Duration
	last     time.Duration
	frames   uint64
}

func (r *reporter) tick(stats Stats) {
	if r.interval <= 0 {
		return
	}
	now := hrtime.Now()
	if r.last == 0 {
		r.last, r.frames = now, stats.Frames
		return
	}
	elapsed := now - r.last
	if elapsed < r.interval {
		return
	}

	fps := float64(stats.Frames-r.frames) / elapsed.Seconds()
	logging.Logger().Info("frame statistics",
		slog.Float64("fps", fps),
		slog.Uint64("frames", stats.Frames),
		slog.Duration("mean_frame_time", stats.MeanFrameTime()),
		slog.Int("recreations", stats.Recreations),
		slog.Int("suboptimal", stats.Suboptimal),
		slog.Int("out_of_date", stats.OutOfDate),
	)
	r.last, r.frames = now, stats.Frames
}
