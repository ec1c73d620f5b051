package amqp

import (
	"encoding/json"
	"time"
)

// TransactionChangedMessage notifies the retrain worker that ledger state
// changed. It carries only the id and action; consumers that need the full
// record fetch it from the database.
type TransactionChangedMessage struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionChangedMessage(id int64, action string) *TransactionChangedMessage {
	return &TransactionChangedMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionChangedMessageFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
