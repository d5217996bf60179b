// Package outbox records contact lifecycle events inside the reconciliation
// transaction and relays them to Kafka afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"contactlink/internal/contact/models"
)

// EventType names a contact lifecycle fact.
type EventType string

const (
	EventContactCreated EventType = "contact_created"
	EventContactDemoted EventType = "contact_demoted"
	EventContactLinked  EventType = "contact_linked"
)

// Event is one outbox row. AggregateID is the contact id and doubles as the
// Kafka record key so a contact's events stay ordered within a partition.
type Event struct {
	ID          uuid.UUID
	Type        EventType
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
}

type contactPayload struct {
	ContactID      int64   `json:"contactId"`
	Email          *string `json:"email,omitempty"`
	PhoneNumber    *string `json:"phoneNumber,omitempty"`
	LinkPrecedence string  `json:"linkPrecedence"`
	LinkedID       *int64  `json:"linkedId,omitempty"`
	RequestID      string  `json:"requestId,omitempty"`
}

// NewContactEvent snapshots c into an event of the given type.
func NewContactEvent(eventType EventType, c *models.Contact, requestID string, now time.Time) (Event, error) {
	payload, err := json.Marshal(contactPayload{
		ContactID:      c.ID,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		LinkPrecedence: string(c.LinkPrecedence),
		LinkedID:       c.LinkedID,
		RequestID:      requestID,
	})
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: strconv.FormatInt(c.ID, 10),
		Payload:     payload,
		CreatedAt:   now,
	}, nil
}
