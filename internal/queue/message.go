package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageVersion is the payload schema written by this build.
const MessageVersion = 1

// Message asks a worker to run the pipeline for one inquiry.
type Message struct {
	InquiryID  string `json:"inquiryId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(msg.InquiryID) == "" {
		return Message{}, fmt.Errorf("message has no inquiryId")
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
