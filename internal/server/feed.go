package server

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"

	"clipstitch/internal/types"
)

const thumbnailWidth = 480

// Feed turns pipeline stages into StageEvents for the websocket
// broadcaster. Stage never blocks: when nobody drains the channel the
// event is dropped, and only the latest one is kept for late joiners.
type Feed struct {
	runID string
	out   chan any

	mu      sync.Mutex
	latest  *types.StageEvent
	dropped int
}

func NewFeed(runID string, buffer int) *Feed {
	return &Feed{runID: runID, out: make(chan any, buffer)}
}

func (f *Feed) Messages() <-chan any { return f.out }

func (f *Feed) Stage(stage, title string, img image.Image) {
	b := img.Bounds()
	event := types.StageEvent{
		Type:   "stage",
		RunID:  f.runID,
		Stage:  stage,
		Title:  title,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
	thumb, err := thumbnail(img)
	if err != nil {
		slog.Debug("thumbnail encode failed", "stage", stage, "error", err)
	} else {
		event.PNG = thumb
	}

	f.mu.Lock()
	f.latest = &event
	f.mu.Unlock()

	select {
	case f.out <- event:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
	}
}

// Latest returns the most recent event, or nil before the first stage.
func (f *Feed) Latest() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return nil
	}
	return *f.latest
}

func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func thumbnail(img image.Image) (string, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > thumbnailWidth {
		h = h * thumbnailWidth / w
		if h < 1 {
			h = 1
		}
		w = thumbnailWidth
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
