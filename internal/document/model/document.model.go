package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"
	"unicode/utf8"
)

const (
	UpdateType = "UPDATE" // Full document text, either direction
)

var (
	ErrInvalidUTF8  = errors.New("payload is not valid UTF-8")
	ErrTrailingData = errors.New("unexpected data after JSON value")
)

// WriteRequest is the body of POST /content. Text is a pointer so that a
// missing field can be told apart from an empty document.
type WriteRequest struct {
	Text *string `json:"text"`
}

// Event is the data of each SSE update event.
type Event struct {
	Text string `json:"text"`
}

// Message is the frame exchanged over the WebSocket transport. As with
// WriteRequest, an UPDATE without a text field is not a write.
type Message struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

func NewUpdateMessage(text string) Message {
	return Message{Type: UpdateType, Text: &text}
}

type Status struct {
	Revision    uint64    `json:"revision"`
	Length      int       `json:"length"`
	Subscribers int       `json:"subscribers"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DecodeStrict decodes exactly one JSON value from raw into v. Invalid UTF-8
// is rejected instead of being replaced, and so is anything after the value
// other than whitespace.
func DecodeStrict(raw []byte, v any) error {
	if !utf8.Valid(raw) {
		return ErrInvalidUTF8
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingData
	}
	return nil
}
