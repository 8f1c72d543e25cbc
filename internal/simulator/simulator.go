package simulator

import (
	"math"
	"math/rand"
	"sync"

	"clipstitch/internal/capture"
	"clipstitch/internal/types"
)

// Clipboard is a capture.Port that behaves like a user copying images:
// after every Clear it reports a few empty polls, then one capture with no
// area, then a gradient image whose tint changes with each Clear.
type Clipboard struct {
	mu         sync.Mutex
	width      int
	height     int
	emptyPolls int
	pending    int
	blank      bool
	generation int
}

var _ capture.Port = (*Clipboard)(nil)

func New(width, height, emptyPolls int) *Clipboard {
	return &Clipboard{
		width:      width,
		height:     height,
		emptyPolls: emptyPolls,
		pending:    emptyPolls,
		blank:      true,
	}
}

func (c *Clipboard) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.pending = c.emptyPolls
	c.blank = true
	return nil
}

func (c *Clipboard) ReadImage() (types.RawCapture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending > 0 {
		c.pending--
		return types.RawCapture{}, capture.ErrNoImagePresent
	}
	if c.blank {
		c.blank = false
		return types.RawCapture{Width: 0, Height: uint32(c.height), Format: types.FormatRGBA8}, nil
	}
	return c.frame(), nil
}

func (c *Clipboard) frame() types.RawCapture {
	tint := [3]float64{1, 0.35, 0.2}
	if c.generation%2 == 0 {
		tint = [3]float64{0.2, 0.45, 1}
	}

	pixels := make([]byte, c.width*c.height*4)
	centerX := float64(c.width) / 2.0
	centerY := float64(c.height) / 2.0
	spread := float64(c.width*c.height) / 6
	for i := 0; i < c.width*c.height; i++ {
		dx := float64(i%c.width) - centerX
		dy := float64(i/c.width) - centerY
		base := 255 * math.Exp(-(dx*dx+dy*dy)/spread)
		noise := rand.NormFloat64() * 4
		for ch := 0; ch < 3; ch++ {
			v := base*tint[ch] + noise
			pixels[i*4+ch] = uint8(math.Max(0, math.Min(255, v)))
		}
		pixels[i*4+3] = 255
	}
	return types.RawCapture{
		Width:  uint32(c.width),
		Height: uint32(c.height),
		Format: types.FormatRGBA8,
		Pixels: pixels,
	}
}
