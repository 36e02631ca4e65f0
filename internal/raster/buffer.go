package raster

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Buffer is a non-premultiplied RGBA raster. Pix holds Width*Height pixels
// in row-major RGBA order, 4 bytes per pixel.
//
// A Buffer is owned by the invocation that created it. Stages mutate Pix in
// place and never change Width or Height.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBuffer allocates a fully transparent buffer.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}
}

// FromImage copies any image into a new Buffer. Zero-area images are rejected.
func FromImage(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("image has zero area (%dx%d)", bounds.Dx(), bounds.Dy())
	}

	buf := NewBuffer(bounds.Dx(), bounds.Dy())

	// Straight-alpha sources are copied row by row so RGB under
	// transparent pixels survives the conversion.
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < buf.Height; y++ {
			off := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(buf.Pix[y*buf.Width*4:(y+1)*buf.Width*4], src.Pix[off:off+buf.Width*4])
		}
		return buf, nil
	}

	draw.Draw(buf.Image(), buf.Image().Bounds(), img, bounds.Min, draw.Src)
	return buf, nil
}

// Validate reports whether the buffer dimensions and pixel slice agree.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("buffer is nil")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("invalid buffer dimensions %dx%d", b.Width, b.Height)
	}
	if len(b.Pix)%4 != 0 {
		return fmt.Errorf("pixel length %d is not a multiple of 4", len(b.Pix))
	}
	if len(b.Pix) != b.Width*b.Height*4 {
		return fmt.Errorf("pixel length %d does not match %dx%d", len(b.Pix), b.Width, b.Height)
	}
	return nil
}

// MustValidate panics when the buffer is malformed.
func (b *Buffer) MustValidate() {
	if err := b.Validate(); err != nil {
		panic("raster: malformed buffer: " + err.Error())
	}
}

// Image returns an *image.NRGBA view that shares Pix with the buffer.
func (b *Buffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Offset returns the index of the red byte of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * 4
}

// OpaqueCount returns the number of pixels with alpha 255.
func (b *Buffer) OpaqueCount() int {
	n := 0
	for i := 3; i < len(b.Pix); i += 4 {
		if b.Pix[i] == 255 {
			n++
		}
	}
	return n
}

// Alpha extracts the alpha channel into a new slice of Width*Height bytes.
func (b *Buffer) Alpha() []uint8 {
	out := make([]uint8, b.Width*b.Height)
	for i := range out {
		out[i] = b.Pix[i*4+3]
	}
	return out
}
