package sdk

import (
	"bytes"
	"image"
)

// ESC/POS commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	DLE byte = 0x10
	EOT byte = 0x04
)

// Real-time status requests (DLE EOT n)
const (
	statusError     byte = 3
	statusPaperRoll byte = 4
)

// Encoder generates the raw ESC/POS commands hennedo/escpos lacks: margins,
// status requests and rasters with a gray-level threshold.
type Encoder struct {
	buffer *bytes.Buffer
}

// NewEncoder creates a new ESC/POS encoder
func NewEncoder() *Encoder {
	return &Encoder{
		buffer: new(bytes.Buffer),
	}
}

// SetAlignment sends ESC a n
func (e *Encoder) SetAlignment(align Align) *Encoder {
	e.buffer.Write([]byte{ESC, 'a', byte(align)})
	return e
}

// SetLeftMargin sends GS L nL nH (margin in dots)
func (e *Encoder) SetLeftMargin(dots int) *Encoder {
	if dots < 0 {
		dots = 0
	}
	e.buffer.Write([]byte{GS, 'L', byte(dots & 0xFF), byte((dots >> 8) & 0xFF)})
	return e
}

// RasterImage sends GS v 0 with the image as a 1-bit bitmap. Pixels darker
// than threshold (0-255) are printed.
func (e *Encoder) RasterImage(img image.Image, threshold uint8) *Encoder {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	bytesPerLine := (width + 7) / 8

	e.buffer.Write([]byte{GS, 'v', '0', 0,
		byte(bytesPerLine & 0xFF), byte((bytesPerLine >> 8) & 0xFF),
		byte(height & 0xFF), byte((height >> 8) & 0xFF),
	})
	e.buffer.Write(imageToBitmap(img, threshold))
	return e
}

// StatusRequest sends DLE EOT n
func (e *Encoder) StatusRequest(n byte) *Encoder {
	e.buffer.Write([]byte{DLE, EOT, n})
	return e
}

// Bytes returns the generated commands
func (e *Encoder) Bytes() []byte {
	return e.buffer.Bytes()
}

// imageToBitmap converts an image to a packed 1-bit bitmap, MSB first
func imageToBitmap(img image.Image, threshold uint8) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	bytesPerLine := (width + 7) / 8
	bitmap := make([]byte, bytesPerLine*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			if a == 0 {
				continue // transparent prints as paper
			}

			gray := uint8((r + g + b) / 3 >> 8)
			if gray < threshold {
				byteIndex := y*bytesPerLine + x/8
				bitIndex := 7 - (x % 8)
				bitmap[byteIndex] |= 1 << bitIndex
			}
		}
	}

	return bitmap
}

// grayThreshold maps an engine gray level (1-10, default 5) to a bitmap
// threshold; higher levels print darker.
func grayThreshold(level int) uint8 {
	if level < 1 {
		level = 1
	}
	if level > 10 {
		level = 10
	}
	return uint8(128 + (level-5)*16)
}
