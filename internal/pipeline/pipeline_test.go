package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"clipstitch/internal/capture"
	"clipstitch/internal/ingest"
	"clipstitch/internal/output"
	"clipstitch/internal/preview"
	"clipstitch/internal/processing"
	"clipstitch/internal/types"
)

type read struct {
	raw types.RawCapture
	err error
}

type scriptedPort struct {
	mu       sync.Mutex
	reads    []read
	clears   int
	clearErr error
}

func (p *scriptedPort) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	return p.clearErr
}

func (p *scriptedPort) ReadImage() (types.RawCapture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reads) == 0 {
		return types.RawCapture{}, capture.ErrNoImagePresent
	}
	next := p.reads[0]
	p.reads = p.reads[1:]
	return next.raw, next.err
}

func solidCapture(w, h int, r, g, b byte) types.RawCapture {
	pixels := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		pixels[i*4] = r
		pixels[i*4+1] = g
		pixels[i*4+2] = b
		pixels[i*4+3] = 255
	}
	return types.RawCapture{Width: uint32(w), Height: uint32(h), Format: types.FormatRGBA8, Pixels: pixels}
}

type recordingPreview struct {
	titles []string
}

func (r *recordingPreview) Show(title string, _ *image.NRGBA) preview.Outcome {
	r.titles = append(r.titles, title)
	return preview.Rendered
}

type memorySaver struct {
	saved []image.Image
	err   error
}

func (m *memorySaver) Save(img image.Image) (types.SavedArtifact, error) {
	if m.err != nil {
		return types.SavedArtifact{}, m.err
	}
	m.saved = append(m.saved, img)
	b := img.Bounds()
	return types.SavedArtifact{Path: "mem://result.png", Width: b.Dx(), Height: b.Dy()}, nil
}

type memoryRecorder struct {
	payloads [][]byte
}

func (m *memoryRecorder) Record(payload []byte) error {
	m.payloads = append(m.payloads, payload)
	return nil
}

type stageLog struct {
	stages []string
}

func (s *stageLog) Stage(stage, _ string, _ image.Image) {
	s.stages = append(s.stages, stage)
}

func newTestPipeline(port capture.Port, saver Saver) (*Pipeline, *bytes.Buffer, *bytes.Buffer) {
	var out, errw bytes.Buffer
	return &Pipeline{
		Port:         port,
		Preview:      &recordingPreview{},
		Saver:        saver,
		Console:      NewConsole(&out, &errw),
		RunID:        "test-run",
		PollInterval: time.Millisecond,
	}, &out, &errw
}

func TestRunStitchesAndSaves(t *testing.T) {
	port := &scriptedPort{reads: []read{
		{err: capture.ErrNoImagePresent},
		{raw: solidCapture(4, 4, 255, 0, 0)},
		{raw: types.RawCapture{Width: 4}},
		{raw: solidCapture(4, 4, 0, 0, 255)},
	}}
	saver := &memorySaver{}
	p, out, _ := newTestPipeline(port, saver)
	rec := &memoryRecorder{}
	p.Recorder = rec
	stages := &stageLog{}
	p.Observer = stages

	saved, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if saved.Width != 4 || saved.Height != 4 {
		t.Fatalf("unexpected saved size %dx%d", saved.Width, saved.Height)
	}
	if port.clears != 2 {
		t.Fatalf("expected 2 clipboard clears, got %d", port.clears)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(saver.saved))
	}
	result := saver.saved[0].(*image.NRGBA)
	if c := result.NRGBAAt(0, 1); c.B != 255 || c.R != 0 {
		t.Fatalf("row 1 should be blue, got %+v", c)
	}
	if c := result.NRGBAAt(3, 2); c.R != 255 || c.B != 0 {
		t.Fatalf("row 2 should be red, got %+v", c)
	}

	titles := p.Preview.(*recordingPreview).titles
	if len(titles) != 3 {
		t.Fatalf("expected 3 previews, got %v", titles)
	}
	if got := strings.Join(stages.stages, ","); got != "acquire_first,acquire_second,stitch" {
		t.Fatalf("unexpected observed stages %q", got)
	}
	if len(rec.payloads) != 2 {
		t.Fatalf("expected 2 logged captures, got %d", len(rec.payloads))
	}
	first, err := ingest.DecodeRecord(rec.payloads[0])
	if err != nil || first.RunID != "test-run" || first.Capture.Pixels[0] != 255 {
		t.Fatalf("unexpected logged capture %+v err=%v", first.RunID, err)
	}
	if p.Stage() != StageDone {
		t.Fatalf("unexpected final stage %q", p.Stage())
	}
	if !strings.Contains(out.String(), "mem://result.png") {
		t.Fatalf("summary missing path:\n%s", out.String())
	}
}

func TestRunDimensionMismatchIsFatal(t *testing.T) {
	port := &scriptedPort{reads: []read{
		{raw: solidCapture(4, 4, 1, 1, 1)},
		{raw: solidCapture(4, 5, 2, 2, 2)},
	}}
	saver := &memorySaver{}
	p, _, _ := newTestPipeline(port, saver)

	_, err := p.Run(context.Background())
	var mismatch *processing.DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if len(saver.saved) != 0 {
		t.Fatalf("nothing should be saved after a mismatch")
	}
	if p.Stage() != StageFailed {
		t.Fatalf("unexpected final stage %q", p.Stage())
	}
}

func TestRunPixelLengthMismatchIsFatal(t *testing.T) {
	bad := solidCapture(2, 2, 0, 0, 0)
	bad.Pixels = bad.Pixels[:12]
	port := &scriptedPort{reads: []read{{raw: bad}}}
	p, _, _ := newTestPipeline(port, &memorySaver{})

	_, err := p.Run(context.Background())
	var mismatch *processing.PixelLengthMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected PixelLengthMismatchError, got %v", err)
	}
	if !strings.Contains(err.Error(), "first image") {
		t.Fatalf("error should name the image: %v", err)
	}
}

func TestRunAccessErrorIsFatal(t *testing.T) {
	port := &scriptedPort{reads: []read{
		{raw: solidCapture(2, 2, 0, 0, 0)},
		{err: &capture.AccessError{Op: "open", Err: errors.New("display gone")}},
	}}
	p, _, _ := newTestPipeline(port, &memorySaver{})

	_, err := p.Run(context.Background())
	var access *capture.AccessError
	if !errors.As(err, &access) {
		t.Fatalf("expected AccessError, got %v", err)
	}
	if !strings.Contains(err.Error(), "second image") {
		t.Fatalf("error should name the image: %v", err)
	}
}

func TestRunClearFailureIsOnlyAWarning(t *testing.T) {
	port := &scriptedPort{
		clearErr: &capture.AccessError{Op: "clear", Err: errors.New("xsel missing")},
		reads: []read{
			{raw: solidCapture(2, 2, 0, 0, 0)},
			{raw: solidCapture(2, 2, 9, 9, 9)},
		},
	}
	p, _, errw := newTestPipeline(port, &memorySaver{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.Contains(errw.String(), "xsel missing") {
		t.Fatalf("expected clear warning on stderr, got %q", errw.String())
	}
}

func TestRunPersistenceErrorIsFatal(t *testing.T) {
	port := &scriptedPort{reads: []read{
		{raw: solidCapture(2, 2, 0, 0, 0)},
		{raw: solidCapture(2, 2, 9, 9, 9)},
	}}
	saver := &memorySaver{err: &output.PersistenceError{Path: "/nope", Err: errors.New("read-only")}}
	p, _, _ := newTestPipeline(port, saver)

	_, err := p.Run(context.Background())
	var perr *output.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestRunContinuesPastHungPreview(t *testing.T) {
	port := &scriptedPort{reads: []read{
		{raw: solidCapture(2, 2, 0, 0, 0)},
		{raw: solidCapture(2, 2, 9, 9, 9)},
	}}
	saver := &memorySaver{}
	p, _, _ := newTestPipeline(port, saver)

	release := make(chan struct{})
	defer close(release)
	var previewOut bytes.Buffer
	cfg := preview.DefaultConfig()
	cfg.Timeout = 60 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	p.Preview = preview.New(&previewOut, preview.RendererFunc(func(image.Image, preview.Config) error {
		<-release
		return nil
	}), cfg)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("result was not saved")
	}
	if n := strings.Count(previewOut.String(), preview.TimeoutNotice); n != 3 {
		t.Fatalf("expected 3 timeout notices, got %d", n)
	}
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p, _, _ := newTestPipeline(&scriptedPort{}, &memorySaver{})

	_, err := p.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
