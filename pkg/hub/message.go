// Package hub fans websocket messages out to every connected dashboard.
//
// One goroutine (Run) owns the client set. Connections register and
// unregister through channels; each client has its own writer goroutine
// so a slow browser never blocks the broadcaster.
package hub

// MessageType indicates the websocket frame type.
type MessageType int

const (
	// TextMessage is a JSON-encoded message.
	TextMessage MessageType = iota
	// BinaryMessage is raw bytes.
	BinaryMessage
)

// Message is one broadcast frame.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: TextMessage, Data: data}
}
