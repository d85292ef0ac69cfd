package amqp

import (
	"encoding/json"
	"time"
)

// RebuildRequestMessage asks the worker to recompute one owner's aggregates.
// It carries no data beyond the owner: the worker reads the ledger itself.
type RebuildRequestMessage struct {
	OwnerID     int64     `json:"owner_id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRebuildRequestMessage(ownerID int64, reason string) *RebuildRequestMessage {
	return &RebuildRequestMessage{
		OwnerID:     ownerID,
		Reason:      reason,
		RequestedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RebuildRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RebuildRequestMessageFromJSON creates a message from JSON bytes
func RebuildRequestMessageFromJSON(data []byte) (*RebuildRequestMessage, error) {
	var msg RebuildRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
