// Package hub fans websocket messages out to every connected client.
// Run owns the client set; everything else talks to it over channels.
package hub

import "github.com/gofiber/contrib/websocket"

// Message is one websocket write queued for every client.
// Kind is the websocket opcode (text or binary).
type Message struct {
	Kind int
	Data []byte
}

// Text wraps pre-encoded JSON.
func Text(data []byte) Message {
	return Message{Kind: websocket.TextMessage, Data: data}
}

// Binary wraps a JPEG frame.
func Binary(data []byte) Message {
	return Message{Kind: websocket.BinaryMessage, Data: data}
}
