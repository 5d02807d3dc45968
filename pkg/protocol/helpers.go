package protocol

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/pipeline"
)

// NewFrameMessage creates a frame message for img. When inline is set the
// JPEG bytes are embedded as base64.
func NewFrameMessage(img *encoder.Image, seq uint64, inline bool) (*Message, error) {
	fd := FrameData{
		ID:         img.ID.String(),
		Seq:        seq,
		Width:      img.Width,
		Height:     img.Height,
		Format:     "jpeg",
		Size:       img.Len(),
		CapturedAt: img.CapturedAt.UnixMilli(),
	}
	if inline {
		fd.Data = base64.StdEncoding.EncodeToString(img.Bytes())
	}
	return NewMessage(TypeFrame, fd)
}

// NewStatusMessage creates a status message from a producer snapshot.
func NewStatusMessage(st pipeline.Status, clients int) (*Message, error) {
	sd := StatusData{
		Mode:                st.Mode,
		Running:             st.Running,
		DeviceOpen:          st.DeviceOpen,
		Frames:              st.Frames,
		Errors:              st.Errors,
		ConsecutiveFailures: st.ConsecutiveFailures,
		LastError:           st.LastError,
		Clients:             clients,
	}
	if !st.LastCapture.IsZero() {
		sd.LastCapture = st.LastCapture.UnixMilli()
	}
	return NewMessage(TypeStatus, sd)
}

// NewCaptureErrorMessage creates a capture_error message. The stage is
// taken from a pipeline.StageError when err wraps one.
func NewCaptureErrorMessage(err error) (*Message, error) {
	stage := "unknown"
	var se *pipeline.StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	return NewMessage(TypeCaptureError, CaptureErrorData{
		Stage: stage,
		Error: err.Error(),
	})
}

// NewMotionMessage creates a motion probe message.
func NewMotionMessage(img *encoder.Image, present bool) (*Message, error) {
	return NewMessage(TypeMotion, MotionData{
		FrameID: img.ID.String(),
		Present: present,
		Width:   img.Width,
		Height:  img.Height,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response to a ping
func NewPongMessage(ping PingData) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        ping.ID,
		PingTS:    ping.Timestamp,
		PongTS:    now,
		LatencyMs: now - ping.Timestamp,
	})
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the inline JPEG bytes. It returns nil when the
// frame was announced without data.
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	if f.Data == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCaptureErrorData extracts capture error data from a message
func (m *Message) GetCaptureErrorData() (*CaptureErrorData, error) {
	var data CaptureErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMotionData extracts motion data from a message
func (m *Message) GetMotionData() (*MotionData, error) {
	var data MotionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
