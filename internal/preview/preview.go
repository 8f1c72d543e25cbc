// Package preview shows images in the terminal without letting a slow or
// hung terminal hold up the pipeline.
//
// A render runs in its own goroutine and reports through a one-shot
// channel. The caller polls that channel until Config.Timeout and then
// walks away; the goroutine is not cancelled and whatever it produces
// afterwards is dropped.
package preview

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"clipstitch/internal/processing"
)

const (
	DefaultWidth        = 80
	DefaultTimeout      = 2 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// Config controls preview rendering. Height 0 derives the height from the
// image aspect ratio.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	Width         int           `yaml:"width"`
	Height        int           `yaml:"height"`
	RestoreCursor bool          `yaml:"restore_cursor"`
	Timeout       time.Duration `yaml:"timeout"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Width:        DefaultWidth,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// Renderer draws an image to a terminal. It may block for an unbounded
// time.
type Renderer interface {
	Render(img image.Image, cfg Config) error
}

type RendererFunc func(img image.Image, cfg Config) error

func (f RendererFunc) Render(img image.Image, cfg Config) error { return f(img, cfg) }

type Outcome int

const (
	Rendered Outcome = iota
	Failed
	TimedOut
	Disabled
)

func (o Outcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// TimeoutNotice is printed when a render misses its deadline.
const TimeoutNotice = "(preview skipped (timeout))"

type Previewer struct {
	out      io.Writer
	renderer Renderer
	cfg      Config
}

func New(out io.Writer, renderer Renderer, cfg Config) *Previewer {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Previewer{out: out, renderer: renderer, cfg: cfg}
}

// Show prints a framed preview of img. The outcome is informational only;
// no outcome stops the pipeline.
func (p *Previewer) Show(title string, img *image.NRGBA) Outcome {
	if !p.cfg.Enabled || p.renderer == nil {
		return Disabled
	}
	b := img.Bounds()
	fmt.Fprintf(p.out, "\n[preview] %s\n", title)
	fmt.Fprintf(p.out, "size: %dx%d\n", b.Dx(), b.Dy())
	fmt.Fprintln(p.out, "format: RGBA")
	fmt.Fprintln(p.out, strings.Repeat("─", 60))

	// The worker may outlive this call, so it gets its own copy.
	outcome, err := p.bounded(processing.Clone(img))
	switch outcome {
	case Failed:
		slog.Info("preview render failed", "title", title, "error", err)
	case TimedOut:
		fmt.Fprintln(p.out, TimeoutNotice)
		slog.Debug("preview abandoned", "title", title, "timeout", p.cfg.Timeout)
	}

	fmt.Fprintln(p.out, strings.Repeat("─", 60))
	return outcome
}

func (p *Previewer) bounded(img image.Image) (Outcome, error) {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("renderer panic: %v", r)
			}
		}()
		done <- p.renderer.Render(img, p.cfg)
	}()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case err := <-done:
			if err != nil {
				return Failed, err
			}
			return Rendered, nil
		default:
		}
		if time.Since(start) >= p.cfg.Timeout {
			return TimedOut, nil
		}
		<-ticker.C
	}
}
