// Package encoder turns RGB rasters into immutable JPEG images.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// ErrEmptyRaster is returned for rasters with no pixels or a short buffer.
var ErrEmptyRaster = errors.New("encoder: empty or short raster")

// EncodeError wraps a failure from the underlying codec.
type EncodeError struct {
	Format string
	Width  int
	Height int
	Err    error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoder [%s]: %dx%d: %v", e.Format, e.Width, e.Height, e.Err)
}

// Unwrap returns the codec error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Encoder encodes a raster captured at a given time.
type Encoder interface {
	Encode(r *yuyv.Raster, capturedAt time.Time) (*Image, error)
	ContentType() string
}

// Image is an encoded frame. Its bytes never change after construction.
type Image struct {
	ID         uuid.UUID `json:"id"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
	Size       int       `json:"size"`

	data []byte
}

// NewImage wraps already-encoded bytes. The slice is copied.
func NewImage(data []byte, width, height int, capturedAt time.Time) *Image {
	buf := make([]byte, len(data))
	copy(buf, data)
	return newImage(buf, width, height, capturedAt)
}

func newImage(data []byte, width, height int, capturedAt time.Time) *Image {
	return &Image{
		ID:         uuid.New(),
		Width:      width,
		Height:     height,
		CapturedAt: capturedAt,
		Size:       len(data),
		data:       data,
	}
}

// Bytes returns a copy of the encoded stream.
func (i *Image) Bytes() []byte {
	out := make([]byte, len(i.data))
	copy(out, i.data)
	return out
}

// Len returns the encoded size in bytes.
func (i *Image) Len() int {
	return len(i.data)
}

// WriteTo writes the encoded stream to w.
func (i *Image) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(i.data)
	return int64(n), err
}
