package processing

import (
	"fmt"
	"image"
)

// Stitch builds the composite of two equally sized images: the top half
// comes from top, the bottom half from bottom. The split row is height/2
// rounded down, so for odd heights the bottom part is one row taller.
func Stitch(bottom, top *image.NRGBA) (*image.NRGBA, error) {
	bb := bottom.Bounds()
	tb := top.Bounds()
	if bb.Dx() != tb.Dx() || bb.Dy() != tb.Dy() {
		return nil, &DimensionMismatchError{
			WidthA: bb.Dx(), HeightA: bb.Dy(),
			WidthB: tb.Dx(), HeightB: tb.Dy(),
		}
	}

	width, height := bb.Dx(), bb.Dy()
	mid := height / 2
	out := image.NewNRGBA(image.Rect(0, 0, width, height))

	upper := image.Rect(0, 0, width, mid)
	if err := copyRegion(out, upper, top, tb.Min); err != nil {
		return nil, &CompositionError{Region: "top", Err: err}
	}
	lower := image.Rect(0, mid, width, height)
	if err := copyRegion(out, lower, bottom, bb.Min.Add(image.Pt(0, mid))); err != nil {
		return nil, &CompositionError{Region: "bottom", Err: err}
	}
	return out, nil
}

// copyRegion copies the dst-sized block of src starting at srcMin into
// dstRect of dst. Both regions must lie inside their images.
func copyRegion(dst *image.NRGBA, dstRect image.Rectangle, src *image.NRGBA, srcMin image.Point) error {
	if dstRect.Empty() {
		return nil
	}
	if !dstRect.In(dst.Bounds()) {
		return fmt.Errorf("destination %v outside %v", dstRect, dst.Bounds())
	}
	srcRect := image.Rectangle{Min: srcMin, Max: srcMin.Add(dstRect.Size())}
	if !srcRect.In(src.Bounds()) {
		return fmt.Errorf("source %v outside %v", srcRect, src.Bounds())
	}
	if len(src.Pix) < src.PixOffset(srcRect.Max.X-1, srcRect.Max.Y-1)+4 {
		return fmt.Errorf("source buffer too short for %v", srcRect)
	}

	// Byte copies keep straight alpha exact; a compositing draw would
	// round-trip through premultiplied colour.
	rowBytes := dstRect.Dx() * 4
	for y := 0; y < dstRect.Dy(); y++ {
		d := dst.PixOffset(dstRect.Min.X, dstRect.Min.Y+y)
		s := src.PixOffset(srcRect.Min.X, srcRect.Min.Y+y)
		copy(dst.Pix[d:d+rowBytes], src.Pix[s:s+rowBytes])
	}
	return nil
}
