package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sync operations carried on the queue.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// LedgerSyncMessage asks the worker to mirror one ledger row to the
// remote spreadsheet. It carries only the ID, operation and version;
// the worker fetches the current row state from the database.
type LedgerSyncMessage struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerSyncMessage creates a sync message for the given operation.
func NewLedgerSyncMessage(id int64, op string, version int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		ID:        id,
		Op:        op,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerSyncMessageFromJSON decodes and sanity-checks a message.
func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op != OpUpsert && msg.Op != OpDelete {
		return nil, fmt.Errorf("unknown sync operation %q", msg.Op)
	}
	return &msg, nil
}
