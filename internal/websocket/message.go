package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewEventMessage encodes a meeting lifecycle notification.
func NewEventMessage(action string, payload interface{}) []byte {
	data, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		return nil
	}
	return data
}

// NewErrorMessage encodes an error notification for a single client.
func NewErrorMessage(text string) []byte {
	return NewEventMessage("error", map[string]string{"message": text})
}
