package amqp

import (
	"encoding/json"
	"time"
)

// Ledger event types carried over the broker.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventRecurringExecuted  = "recurring.executed"
)

// LedgerEventMessage notifies consumers that the ledger changed an
// account balance. DeltaCents is the signed effect the event had on the
// account, so the auditor can reconstruct the balance trail without
// re-reading the transaction row (which may already be deleted).
type LedgerEventMessage struct {
	Event         string    `json:"event"`
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	RecurringID   int64     `json:"recurring_id,omitempty"`
	DeltaCents    int64     `json:"delta_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(event string, transactionID, accountID, deltaCents int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:         event,
		TransactionID: transactionID,
		AccountID:     accountID,
		DeltaCents:    deltaCents,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
