package processing

import "fmt"

// PixelLengthMismatchError reports a capture whose buffer does not match
// its declared dimensions.
type PixelLengthMismatchError struct {
	Expected int
	Actual   int
}

func (e *PixelLengthMismatchError) Error() string {
	return fmt.Sprintf("pixel data length mismatch: expected %d bytes, got %d bytes", e.Expected, e.Actual)
}

// DimensionMismatchError reports two stitch inputs of different size.
type DimensionMismatchError struct {
	WidthA, HeightA int
	WidthB, HeightB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("image sizes differ: first %dx%d, second %dx%d", e.WidthA, e.HeightA, e.WidthB, e.HeightB)
}

// CompositionError reports a failed region copy while building the
// stitched image.
type CompositionError struct {
	Region string
	Err    error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose %s region: %v", e.Region, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }
