// Package motion runs a presence probe over encoded frames using OpenCV.
package motion

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when there is nothing to decode.
var ErrEmptyImage = errors.New("motion: empty image")

// Result is the outcome of one probe.
type Result struct {
	Present bool `json:"present"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
}

// GrayProbe decodes a JPEG, converts it to grayscale and reports whether
// the grayscale frame holds any pixels.
type GrayProbe struct {
	mu sync.Mutex
}

// NewGrayProbe creates a probe.
func NewGrayProbe() *GrayProbe {
	return &GrayProbe{}
}

// Probe runs the check on one JPEG frame.
func (p *GrayProbe) Probe(jpeg []byte) (Result, error) {
	if len(jpeg) == 0 {
		return Result{}, ErrEmptyImage
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return Result{}, fmt.Errorf("decode image: %w", ErrEmptyImage)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(img, &gray, gocv.ColorBGRToGray); err != nil {
		return Result{}, fmt.Errorf("convert to gray: %w", err)
	}

	return Result{
		Present: !gray.Empty(),
		Width:   gray.Cols(),
		Height:  gray.Rows(),
	}, nil
}

// Detect reports only the presence flag.
func (p *GrayProbe) Detect(jpeg []byte) (bool, error) {
	r, err := p.Probe(jpeg)
	return r.Present, err
}
