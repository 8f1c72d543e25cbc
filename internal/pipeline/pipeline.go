// Package pipeline runs one stitching session end to end: two clipboard
// captures in, one PNG out.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"clipstitch/internal/capture"
	"clipstitch/internal/ingest"
	"clipstitch/internal/preview"
	"clipstitch/internal/processing"
	"clipstitch/internal/types"
)

type Previewer interface {
	Show(title string, img *image.NRGBA) preview.Outcome
}

type Saver interface {
	Save(img image.Image) (types.SavedArtifact, error)
}

// Observer is told about every image the run produces.
type Observer interface {
	Stage(stage, title string, img image.Image)
}

const (
	StageIdle          = "idle"
	StageInit          = "init"
	StageAcquireFirst  = "acquire_first"
	StageAcquireSecond = "acquire_second"
	StageStitch        = "stitch"
	StageSave          = "save"
	StageDone          = "done"
	StageFailed        = "failed"
)

type Pipeline struct {
	Port         capture.Port
	Preview      Previewer
	Saver        Saver
	Console      *Console
	Observer     Observer
	Recorder     ingest.RawRecorder
	RunID        string
	PollInterval time.Duration
	SettleDelay  time.Duration
	Now          func() time.Time

	mu    sync.Mutex
	stage string
}

// Stage reports where the run currently is.
func (p *Pipeline) Stage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stage == "" {
		return StageIdle
	}
	return p.stage
}

func (p *Pipeline) setStage(stage string) {
	p.mu.Lock()
	p.stage = stage
	p.mu.Unlock()
	slog.Debug("stage", "stage", stage)
}

// Run executes every step in order. Any returned error is fatal to the
// run; preview problems never are.
func (p *Pipeline) Run(ctx context.Context) (types.SavedArtifact, error) {
	saved, err := p.run(ctx)
	if err != nil {
		p.setStage(StageFailed)
		return types.SavedArtifact{}, err
	}
	p.setStage(StageDone)
	return saved, nil
}

func (p *Pipeline) run(ctx context.Context) (types.SavedArtifact, error) {
	p.setStage(StageInit)
	p.Console.Step(0, "Initialise")
	p.clear()

	p.setStage(StageAcquireFirst)
	p.Console.Step(1, "Capture the upper-half image")
	p.Console.Instructions(
		"In the browser, drag the generated image into a new tab",
		`Right-click the image and choose "Copy image"`,
		"Close the tab",
	)
	first, err := p.acquire(ctx, "first")
	if err != nil {
		return types.SavedArtifact{}, err
	}
	p.show(StageAcquireFirst, "upper-half image (copied image)", first)

	p.clear()
	if err := sleepCtx(ctx, p.SettleDelay); err != nil {
		return types.SavedArtifact{}, err
	}

	p.setStage(StageAcquireSecond)
	p.Console.Step(2, "Capture the lower-half image")
	p.Console.Instructions(
		"Right-click the generated image directly",
		`Choose "Copy"`,
	)
	second, err := p.acquire(ctx, "second")
	if err != nil {
		return types.SavedArtifact{}, err
	}
	p.show(StageAcquireSecond, "lower-half image (direct copy)", second)

	p.setStage(StageStitch)
	p.Console.Step(3, "Stitch")
	p.Console.Info("Stitching images...")
	result, err := processing.Stitch(first, second)
	if err != nil {
		return types.SavedArtifact{}, fmt.Errorf("stitch: %w", err)
	}
	p.Console.Success("stitching complete")
	p.show(StageStitch, "stitched result", result)

	p.setStage(StageSave)
	p.Console.Step(4, "Save")
	saved, err := p.Saver.Save(result)
	if err != nil {
		return types.SavedArtifact{}, err
	}
	p.Console.Success("image saved to:")
	p.Console.Info("  %s", saved.Path)
	slog.Info("run complete", "path", saved.Path, "width", saved.Width, "height", saved.Height)

	p.Console.Summary(saved)
	return saved, nil
}

// clear is best effort: a clipboard that cannot be emptied only risks
// picking up a stale image, which the operator will see in the preview.
func (p *Pipeline) clear() {
	p.Console.Info("Clearing the clipboard...")
	if err := p.Port.Clear(); err != nil {
		p.Console.Warn("%v", err)
		slog.Warn("clipboard clear failed", "error", err)
		return
	}
	p.Console.Success("clipboard cleared")
}

func (p *Pipeline) acquire(ctx context.Context, label string) (*image.NRGBA, error) {
	raw, err := capture.WaitForImage(ctx, p.Port, p.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", label, err)
	}
	p.Console.Success("got %s image (size: %dx%d)", label, raw.Width, raw.Height)
	p.record(raw)

	img, err := processing.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s image decode: %w", label, err)
	}
	return img, nil
}

func (p *Pipeline) record(raw types.RawCapture) {
	if p.Recorder == nil {
		return
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	if err := ingest.RecordCapture(p.Recorder, p.RunID, raw, now()); err != nil {
		slog.Warn("capture log write failed", "error", err)
	}
}

func (p *Pipeline) show(stage, title string, img *image.NRGBA) {
	if p.Observer != nil {
		p.Observer.Stage(stage, title, img)
	}
	if p.Preview != nil {
		outcome := p.Preview.Show(title, img)
		slog.Debug("preview", "title", title, "outcome", outcome.String())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
