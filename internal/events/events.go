// Package events carries transaction notifications between the API and the
// worker over AMQP.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// TransactionRecorded is the routing name of the event published whenever a
// transaction is created, edited or deleted.
const TransactionRecorded = "transaction.recorded"

// TransactionEvent tells consumers that a user's ledger changed on a date.
type TransactionEvent struct {
	Name          string    `json:"name"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Date          time.Time `json:"date"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewTransactionEvent builds a TransactionRecorded event stamped now.
func NewTransactionEvent(userID, transactionID string, date time.Time, typ string) TransactionEvent {
	return TransactionEvent{
		Name:          TransactionRecorded,
		UserID:        userID,
		TransactionID: transactionID,
		Date:          date,
		Type:          typ,
		OccurredAt:    time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event body.
func TransactionEventFromJSON(data []byte) (TransactionEvent, error) {
	var e TransactionEvent
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher sends transaction events.
type Publisher interface {
	PublishTransaction(ctx context.Context, e TransactionEvent) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

// PublishTransaction implements Publisher.
func (NopPublisher) PublishTransaction(context.Context, TransactionEvent) error { return nil }

// Recorder keeps published events in memory. Tests use it to assert on what a
// service emitted.
type Recorder struct {
	Events []TransactionEvent
}

// PublishTransaction implements Publisher.
func (r *Recorder) PublishTransaction(_ context.Context, e TransactionEvent) error {
	r.Events = append(r.Events, e)
	return nil
}
