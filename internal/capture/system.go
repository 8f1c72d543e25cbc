package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"sync"

	textclip "github.com/atotto/clipboard"
	xclip "golang.design/x/clipboard"
	"golang.org/x/image/draw"

	"clipstitch/internal/types"
)

// SystemClipboard reads images from the desktop clipboard. Images arrive
// PNG-encoded and are unpacked into tightly packed RGBA rows.
type SystemClipboard struct {
	once    sync.Once
	initErr error
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (c *SystemClipboard) open() error {
	c.once.Do(func() {
		c.initErr = xclip.Init()
	})
	return c.initErr
}

// Clear replaces the clipboard contents with empty text.
func (c *SystemClipboard) Clear() error {
	if err := textclip.WriteAll(""); err != nil {
		return &AccessError{Op: "clear", Err: err}
	}
	return nil
}

func (c *SystemClipboard) ReadImage() (types.RawCapture, error) {
	if err := c.open(); err != nil {
		return types.RawCapture{}, &AccessError{Op: "open", Err: err}
	}
	data := xclip.Read(xclip.FmtImage)
	if len(data) == 0 {
		return types.RawCapture{}, ErrNoImagePresent
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Half-written or foreign payloads look the same as no image.
		return types.RawCapture{}, fmt.Errorf("%w: %v", ErrNoImagePresent, err)
	}
	return FromImage(img), nil
}

// FromImage packs any image into a RawCapture with rows of exactly
// width*4 bytes and straight alpha.
func FromImage(img image.Image) types.RawCapture {
	b := img.Bounds()
	var packed *image.NRGBA
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == b.Dx()*4 {
		packed = n
	} else {
		packed = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(packed, packed.Bounds(), img, b.Min, draw.Src)
	}
	return types.RawCapture{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Format: types.FormatRGBA8,
		Pixels: packed.Pix[:b.Dx()*b.Dy()*4],
	}
}
