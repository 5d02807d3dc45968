// Package protocol defines the JSON event messages sent on /ws/events.
// It is shared between camserve and stream clients such as camwatch.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → client
	TypeFrame        MessageType = "frame"         // New frame cached
	TypeStatus       MessageType = "status"        // Producer status snapshot
	TypeCaptureError MessageType = "capture_error" // Capture pipeline failure
	TypeMotion       MessageType = "motion"        // Motion probe result

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// FrameData announces a cached frame. Data is only set when the
// subscriber asked for inline frames; otherwise fetch /image.
type FrameData struct {
	ID         string `json:"id"`
	Seq        uint64 `json:"seq"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"` // "jpeg"
	Size       int    `json:"size"`
	CapturedAt int64  `json:"captured_at"` // Unix milliseconds
	Data       string `json:"data,omitempty"` // base64 encoded
}

// StatusData is a producer status snapshot.
type StatusData struct {
	Mode                string `json:"mode"`
	Running             bool   `json:"running"`
	DeviceOpen          bool   `json:"device_open"`
	Frames              uint64 `json:"frames"`
	Errors              uint64 `json:"errors"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
	LastCapture         int64  `json:"last_capture,omitempty"` // Unix milliseconds
	Clients             int    `json:"clients"`
}

// CaptureErrorData describes one failed pipeline run.
type CaptureErrorData struct {
	Stage string `json:"stage"` // "open", "capture", "convert", "encode"
	Error string `json:"error"`
}

// MotionData is the result of the motion probe on the latest frame.
type MotionData struct {
	FrameID string `json:"frame_id"`
	Present bool   `json:"present"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
