// Package config loads presenter settings from defaults, an optional TOML
// file and command-line flags, in increasing order of precedence.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/vkngwrapper/presenter/internal/logging"
)

// Duration reads "250ms" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Window struct {
	Title     string `toml:"title"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Resizable bool   `toml:"resizable"`
}

type Config struct {
	Window Window `toml:"window"`

	FramesInFlight int  `toml:"frames_in_flight"`
	Validation     bool `toml:"validation"`

	// Zero timeouts wait forever.
	FenceTimeout   Duration `toml:"fence_timeout"`
	AcquireTimeout Duration `toml:"acquire_timeout"`
	IdleInterval   Duration `toml:"idle_interval"`
	ReportInterval Duration `toml:"report_interval"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `toml:"log_level"`
}

func Default() Config {
	return Config{
		Window: Window{
			Title:     "presenter",
			Width:     800,
			Height:    600,
			Resizable: true,
		},
		FramesInFlight: 2,
		IdleInterval:   Duration{16 * time.Millisecond},
		ReportInterval: Duration{5 * time.Second},
		LogLevel:       "warn",
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Parse builds the configuration from command-line arguments, loading the
// file named by --config first when given. pflag.ErrHelp is returned as is.
func Parse(args []string) (Config, error) {
	flags := Default()
	fs := pflag.NewFlagSet("presenter", pflag.ContinueOnError)
	path := fs.String("config", "", "TOML configuration file")
	fs.StringVar(&flags.Window.Title, "title", flags.Window.Title, "window title")
	fs.IntVar(&flags.Window.Width, "width", flags.Window.Width, "window width in screen coordinates")
	fs.IntVar(&flags.Window.Height, "height", flags.Window.Height, "window height in screen coordinates")
	fs.BoolVar(&flags.Window.Resizable, "resizable", flags.Window.Resizable, "allow the window to be resized")
	fs.IntVar(&flags.FramesInFlight, "frames", flags.FramesInFlight, "frames the CPU may record ahead of the GPU")
	fs.BoolVar(&flags.Validation, "validation", flags.Validation, "enable the Khronos validation layer")
	fs.DurationVar(&flags.FenceTimeout.Duration, "fence-timeout", 0, "frame fence wait limit, 0 waits forever")
	fs.DurationVar(&flags.AcquireTimeout.Duration, "acquire-timeout", 0, "image acquire limit, 0 waits forever")
	fs.DurationVar(&flags.ReportInterval.Duration, "report-interval", flags.ReportInterval.Duration, "frame statistics log interval, 0 disables")
	vv := fs.Bool("vv", false, "debug logging")
	v := fs.BoolP("verbose", "v", false, "info logging")
	q := fs.BoolP("quiet", "q", false, "only log errors")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return flags, err
		}
		return flags, errors.Wrap(err, "parse flags")
	}

	cfg := Default()
	if *path != "" {
		var err error
		if cfg, err = Load(*path); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "title":
			cfg.Window.Title = flags.Window.Title
		case "width":
			cfg.Window.Width = flags.Window.Width
		case "height":
			cfg.Window.Height = flags.Window.Height
		case "resizable":
			cfg.Window.Resizable = flags.Window.Resizable
		case "frames":
			cfg.FramesInFlight = flags.FramesInFlight
		case "validation":
			cfg.Validation = flags.Validation
		case "fence-timeout":
			cfg.FenceTimeout = flags.FenceTimeout
		case "acquire-timeout":
			cfg.AcquireTimeout = flags.AcquireTimeout
		case "report-interval":
			cfg.ReportInterval = flags.ReportInterval
		}
	})
	if *vv || *v || *q {
		cfg.LogLevel = strings.ToLower(logging.LevelFromFlags(*vv, *v, *q).String())
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.FramesInFlight < 1:
		return errors.Newf("frames in flight must be at least 1, got %d", c.FramesInFlight)
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.Newf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	case c.FenceTimeout.Duration < 0, c.AcquireTimeout.Duration < 0:
		return errors.New("timeouts must not be negative")
	case c.IdleInterval.Duration < 0, c.ReportInterval.Duration < 0:
		return errors.New("intervals must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	return level, nil
}
