package amqp

import (
	"encoding/json"
	"time"
)

const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// TransactionEventMessage is a lightweight change notification.
// It carries only the operation and the transaction ID, consumers
// fetch the full collection from the store when they need it.
type TransactionEventMessage struct {
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEventMessage creates an event for the given operation and transaction ID.
func NewTransactionEventMessage(op, id string) *TransactionEventMessage {
	return &TransactionEventMessage{
		Op:        op,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
