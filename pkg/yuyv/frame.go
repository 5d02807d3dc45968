// Package yuyv converts packed YUYV (4:2:2) camera frames into RGB rasters.
//
// Every 4-byte group Y0 U Y1 V describes two horizontally adjacent pixels
// that share one chroma pair. U and V carry a 128 bias.
package yuyv

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// BytesPerGroup is the size of one Y0 U Y1 V group.
const BytesPerGroup = 4

// Sentinel errors for malformed input.
var (
	// ErrMalformedFrame is returned when a raw frame's length does not match
	// its declared dimensions.
	ErrMalformedFrame = errors.New("yuyv: malformed frame")

	// ErrDimensionMismatch is returned when a frame's dimensions differ from
	// the ones the caller configured.
	ErrDimensionMismatch = errors.New("yuyv: dimension mismatch")
)

// FormatError describes why a frame was rejected.
type FormatError struct {
	Width  int
	Height int
	Length int
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%v: %s (%dx%d, %d bytes)", e.Err, e.Reason, e.Width, e.Height, e.Length)
}

// Unwrap returns the sentinel error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Frame is one raw YUYV frame as read from the device.
type Frame struct {
	Width  int
	Height int
	Data   []byte
}

// ExpectedLen returns the number of bytes a frame of the given size carries.
// Every row holds (width+1)/2 whole groups, so an odd-width row ends with a
// group whose second pixel is padding.
func ExpectedLen(width, height int) int {
	return height * ((width + 1) / 2) * BytesPerGroup
}

// Validate checks the frame length against its dimensions.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return &FormatError{f.Width, f.Height, len(f.Data), "non-positive dimensions", ErrMalformedFrame}
	}
	if len(f.Data)%BytesPerGroup != 0 {
		return &FormatError{f.Width, f.Height, len(f.Data), "length not a multiple of 4", ErrMalformedFrame}
	}
	if len(f.Data) != ExpectedLen(f.Width, f.Height) {
		return &FormatError{f.Width, f.Height, len(f.Data),
			fmt.Sprintf("want %d bytes", ExpectedLen(f.Width, f.Height)), ErrMalformedFrame}
	}
	return nil
}

// CheckSize reports ErrDimensionMismatch when the frame is not width x height.
func (f Frame) CheckSize(width, height int) error {
	if f.Width != width || f.Height != height {
		return &FormatError{f.Width, f.Height, len(f.Data),
			fmt.Sprintf("configured for %dx%d", width, height), ErrDimensionMismatch}
	}
	return nil
}

// Raster is a row-major RGB image with 3 bytes per pixel.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRaster allocates a zeroed raster.
func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*3),
	}
}

// Set writes one pixel.
func (r *Raster) Set(x, y int, red, green, blue uint8) {
	i := (y*r.Width + x) * 3
	r.Pix[i] = red
	r.Pix[i+1] = green
	r.Pix[i+2] = blue
}

// RGB returns the channels of one pixel.
func (r *Raster) RGB(x, y int) (uint8, uint8, uint8) {
	i := (y*r.Width + x) * 3
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// ColorModel implements image.Image.
func (r *Raster) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// At implements image.Image.
func (r *Raster) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.RGBA{}
	}
	red, green, blue := r.RGB(x, y)
	return color.RGBA{R: red, G: green, B: blue, A: 0xff}
}

// ToRGBA expands the raster into an opaque *image.RGBA, which image/jpeg
// encodes without going through At for every pixel.
func (r *Raster) ToRGBA() *image.RGBA {
	img := image.NewRGBA(r.Bounds())
	for src, dst := 0, 0; src+2 < len(r.Pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = r.Pix[src]
		img.Pix[dst+1] = r.Pix[src+1]
		img.Pix[dst+2] = r.Pix[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}
