package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"keeptrack/internal/core"
)

// MirrorMessage carries a newly added transaction to the worker that writes
// it into the remote store. The full record travels with the message since
// the worker has no access to the device's local storage.
type MirrorMessage struct {
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewMirrorMessage wraps tx in a message stamped with now.
func NewMirrorMessage(tx core.Transaction, now time.Time) *MirrorMessage {
	return &MirrorMessage{Transaction: tx, Timestamp: now}
}

// ToJSON converts the message to JSON bytes
func (m *MirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MirrorMessageFromJSON decodes a message and checks that it carries an
// identified, owned transaction.
func MirrorMessageFromJSON(data []byte) (*MirrorMessage, error) {
	var msg MirrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Transaction.ID == "" {
		return nil, errors.New("message without transaction id")
	}
	if msg.Transaction.OwnerID == "" {
		return nil, errors.New("message without owner")
	}
	return &msg, nil
}
