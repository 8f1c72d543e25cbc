package preview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/image/draw"
)

const upperHalfBlock = "▀"

// luminance ramp for terminals without colour support, dark to bright
const asciiRamp = " .:-=+*#%@"

// HalfBlock renders two pixel rows per character cell: the upper pixel as
// the foreground of "▀", the lower one as the background.
type HalfBlock struct {
	out     io.Writer
	options []termenv.OutputOption
}

func NewHalfBlock(out io.Writer, options ...termenv.OutputOption) *HalfBlock {
	return &HalfBlock{out: out, options: options}
}

func (h *HalfBlock) Render(img image.Image, cfg Config) error {
	// Profile detection talks to the terminal and is the usual place for
	// a render to hang.
	term := termenv.NewOutput(h.out, h.options...)

	cols, rows := CellSize(img.Bounds(), cfg.Width, cfg.Height)
	scaled := image.NewNRGBA(image.Rect(0, 0, cols, rows*2))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	if cfg.RestoreCursor {
		term.SaveCursorPosition()
		defer term.RestoreCursorPosition()
	}

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		for x := 0; x < cols; x++ {
			top := flatten(scaled.NRGBAAt(x, row*2))
			bottom := flatten(scaled.NRGBAAt(x, row*2+1))
			if term.Profile == termenv.Ascii {
				sb.WriteByte(rampChar(top, bottom))
				continue
			}
			sb.WriteString(term.String(upperHalfBlock).
				Foreground(term.Color(hex(top))).
				Background(term.Color(hex(bottom))).
				String())
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(h.out, sb.String())
	return err
}

// CellSize returns the preview size in terminal cells. With height 0 the
// row count follows the image aspect ratio, counting two pixels per cell.
func CellSize(bounds image.Rectangle, width, height int) (cols, rows int) {
	cols = width
	if cols <= 0 {
		cols = DefaultWidth
	}
	if height > 0 {
		return cols, height
	}
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return cols, 1
	}
	pixelRows := (h*cols + w/2) / w
	rows = (pixelRows + 1) / 2
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// flatten composites c over black.
func flatten(c color.NRGBA) color.NRGBA {
	if c.A == 255 {
		return c
	}
	a := uint16(c.A)
	return color.NRGBA{
		R: uint8(uint16(c.R) * a / 255),
		G: uint8(uint16(c.G) * a / 255),
		B: uint8(uint16(c.B) * a / 255),
		A: 255,
	}
}

func hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func rampChar(top, bottom color.NRGBA) byte {
	l := (luma(top) + luma(bottom)) / 2
	idx := int(l * float64(len(asciiRamp)-1) / 255)
	return asciiRamp[idx]
}

func luma(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
