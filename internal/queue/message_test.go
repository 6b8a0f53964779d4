package queue

import (
	"reflect"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		InquiryID:  "inquiry-123",
		RequestID:  "request-456",
		EnqueuedAt: "2026-01-30T22:00:00Z",
		Version:    MessageVersion,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestDecodeMessageRejectsInvalidPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"inquiryId":`,
		"missing id":     `{"requestId":"r-1","version":1}`,
		"future version": `{"inquiryId":"i-1","version":99}`,
	}
	for name, payload := range cases {
		if _, err := DecodeMessage([]byte(payload)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
