package ui

import (
	"encoding/json"

	"github.com/iancoleman/orderedmap"
)

const (
	// ProtocolVersion is stamped on every UI message.
	ProtocolVersion = 1
	// MessageTypeUI marks overlay updates on the websocket.
	MessageTypeUI = "ui"
)

// Message is the wire form of an Update.
type Message struct {
	Ver      int                    `json:"ver"`
	Type     string                 `json:"type"`
	Full     bool                   `json:"full"`
	Document string                 `json:"document,omitempty"`
	Fields   *orderedmap.OrderedMap `json:"fields"`
}

// Encode marshals an update into its wire message.
func Encode(update Update) ([]byte, error) {
	fields := update.Fields
	if fields == nil {
		fields = orderedmap.New()
	}
	return json.Marshal(Message{
		Ver:      ProtocolVersion,
		Type:     MessageTypeUI,
		Full:     update.Full,
		Document: update.Document,
		Fields:   fields,
	})
}

// Decode parses a wire message back into an Update.
func Decode(data []byte) (Update, error) {
	msg := Message{Fields: orderedmap.New()}
	if err := json.Unmarshal(data, &msg); err != nil {
		return Update{}, err
	}
	return Update{Full: msg.Full, Document: msg.Document, Fields: msg.Fields}, nil
}
