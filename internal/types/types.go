package types

// FormatRGBA8 is the only pixel layout accepted from a clipboard provider:
// four bytes per pixel, R G B A, rows tightly packed with no stride padding.
const FormatRGBA8 = "rgba8"

// RawCapture is unvalidated pixel data plus declared dimensions straight
// from a clipboard provider.
type RawCapture struct {
	Width  uint32 `json:"width" cbor:"width"`
	Height uint32 `json:"height" cbor:"height"`
	Format string `json:"format" cbor:"format"`
	Pixels []byte `json:"-" cbor:"pixels"`
}

// HasArea reports whether both dimensions are non-zero.
func (c RawCapture) HasArea() bool {
	return c.Width > 0 && c.Height > 0
}

// ExpectedLen is the buffer length implied by the declared dimensions.
func (c RawCapture) ExpectedLen() int {
	return int(c.Width) * int(c.Height) * 4
}

// SavedArtifact is the record of a successful run.
type SavedArtifact struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
