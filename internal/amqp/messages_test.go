package amqp

import (
	"strings"
	"testing"
	"time"
)

func TestTransactionChangedMessageRoundTrip(t *testing.T) {
	msg := NewTransactionChangedMessage(42, "updated")
	if msg.Timestamp.IsZero() {
		t.Fatal("constructor should stamp the message")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TransactionChangedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}

	if decoded.ID != 42 || decoded.Action != "updated" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("timestamp = %v, want %v", decoded.Timestamp, msg.Timestamp)
	}
}

func TestTransactionChangedMessageFieldNames(t *testing.T) {
	msg := &TransactionChangedMessage{
		ID:        7,
		Action:    "created",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	for _, want := range []string{`"id":7`, `"action":"created"`, `"timestamp":"2026-03-01T09:00:00Z"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("payload %s missing %s", data, want)
		}
	}
}

func TestTransactionChangedMessageFromJSON_Malformed(t *testing.T) {
	if _, err := TransactionChangedMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("malformed payload must error")
	}
}
