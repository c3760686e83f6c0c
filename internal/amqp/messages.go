package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReloadMessage asks every server consuming the queue to rebuild its
// ledger snapshot from the configured source.
type ReloadMessage struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewReloadMessage(reason, requestedBy string) *ReloadMessage {
	return &ReloadMessage{
		ID:          uuid.NewString(),
		Reason:      reason,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

func (m *ReloadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReloadMessageFromJSON(data []byte) (*ReloadMessage, error) {
	var msg ReloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("reload message without id")
	}
	return &msg, nil
}
