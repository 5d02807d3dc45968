package encoder

import (
	"bytes"
	"image/jpeg"
	"time"

	"github.com/teslashibe/go-webcam/pkg/yuyv"
)

// DefaultQuality is used when no quality is configured.
const DefaultQuality = 85

// JPEGEncoder encodes rasters as baseline JPEG.
type JPEGEncoder struct {
	quality int
}

// NewJPEGEncoder creates a JPEG encoder with the given quality (1-100).
func NewJPEGEncoder(quality int) *JPEGEncoder {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return &JPEGEncoder{quality: quality}
}

// Quality returns the configured quality.
func (e *JPEGEncoder) Quality() int {
	return e.quality
}

// ContentType implements Encoder.
func (e *JPEGEncoder) ContentType() string {
	return "image/jpeg"
}

// Encode implements Encoder.
func (e *JPEGEncoder) Encode(r *yuyv.Raster, capturedAt time.Time) (*Image, error) {
	if r == nil {
		return nil, &EncodeError{Format: "jpeg", Err: ErrEmptyRaster}
	}
	if r.Width <= 0 || r.Height <= 0 || len(r.Pix) < r.Width*r.Height*3 {
		return nil, &EncodeError{Format: "jpeg", Width: r.Width, Height: r.Height, Err: ErrEmptyRaster}
	}

	var buf bytes.Buffer
	buf.Grow(r.Width * r.Height / 4)
	if err := jpeg.Encode(&buf, r.ToRGBA(), &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, &EncodeError{Format: "jpeg", Width: r.Width, Height: r.Height, Err: err}
	}
	return newImage(buf.Bytes(), r.Width, r.Height, capturedAt), nil
}
