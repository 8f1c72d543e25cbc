package processing

import (
	"fmt"
	"image"

	"clipstitch/internal/types"
)

// Decode validates a raw capture and wraps its buffer as an image.
//
// The buffer is taken over, not copied: the caller must not touch
// raw.Pixels afterwards. Rows are assumed to be tightly packed; providers
// that pad rows would show up here as a length mismatch.
func Decode(raw types.RawCapture) (*image.NRGBA, error) {
	if raw.Format != "" && raw.Format != types.FormatRGBA8 {
		return nil, fmt.Errorf("unsupported pixel format %q", raw.Format)
	}
	expected := raw.ExpectedLen()
	if len(raw.Pixels) != expected {
		return nil, &PixelLengthMismatchError{Expected: expected, Actual: len(raw.Pixels)}
	}
	if !raw.HasArea() {
		return nil, fmt.Errorf("capture has no area: %dx%d", raw.Width, raw.Height)
	}

	return &image.NRGBA{
		Pix:    raw.Pixels,
		Stride: int(raw.Width) * 4,
		Rect:   image.Rect(0, 0, int(raw.Width), int(raw.Height)),
	}, nil
}

// Clone returns a deep copy of img with its origin at (0, 0).
func Clone(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], img.Pix[src:src+b.Dx()*4])
	}
	return out
}
