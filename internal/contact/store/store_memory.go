package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
	"contactlink/internal/outbox"
)

// InMemory keeps contacts in id order and assigns ids from a sequence. Reads
// return copies so callers only change stored rows through Save.
type InMemory struct {
	mu       sync.RWMutex
	contacts []*models.Contact // contacts[i].ID == i+1
	events   []outbox.Event
	now      func() time.Time
}

type Option func(*InMemory)

// WithClock sets the clock used for CreatedAt/UpdatedAt on insert.
func WithClock(now func() time.Time) Option {
	return func(s *InMemory) {
		s.now = now
	}
}

func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) FindByEmailOrPhone(_ context.Context, email, phone *string) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Contact
	for _, c := range s.contacts {
		if matches(c.Email, email) || matches(c.PhoneNumber, phone) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) FindClusterMembers(_ context.Context, contactID int64) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Contact
	for _, c := range s.contacts {
		if c.ID == contactID || (c.LinkedID != nil && *c.LinkedID == contactID) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// Save inserts contacts with a zero ID and replaces existing ones otherwise.
// A non-zero CreatedAt on insert is kept, which lets tests seed history.
func (s *InMemory) Save(_ context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	if !contact.LinkPrecedence.IsValid() {
		return fmt.Errorf("invalid link precedence %q", contact.LinkPrecedence)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if contact.ID == 0 {
		now := s.now()
		contact.ID = int64(len(s.contacts) + 1)
		if contact.CreatedAt.IsZero() {
			contact.CreatedAt = now
		}
		if contact.UpdatedAt.IsZero() {
			contact.UpdatedAt = contact.CreatedAt
		}
		s.contacts = append(s.contacts, contact.Clone())
		return nil
	}
	if contact.ID < 0 || contact.ID > int64(len(s.contacts)) {
		return fmt.Errorf("save contact %d: %w", contact.ID, ErrNotFound)
	}
	stored := contact.Clone()
	stored.CreatedAt = s.contacts[contact.ID-1].CreatedAt
	s.contacts[contact.ID-1] = stored
	return nil
}

func (s *InMemory) AppendEvent(_ context.Context, event outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// FindByID returns a copy of the contact with the given id.
func (s *InMemory) FindByID(_ context.Context, contactID int64) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if contactID <= 0 || contactID > int64(len(s.contacts)) {
		return nil, ErrNotFound
	}
	return s.contacts[contactID-1].Clone(), nil
}

// All returns copies of every contact in id order.
func (s *InMemory) All() []*models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c.Clone())
	}
	return out
}

// Events returns the recorded outbox events in append order.
func (s *InMemory) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.events...)
}

// Stage returns a private copy of the store and a commit func that publishes
// the copy's rows back. Dropping the copy without committing discards every
// write made to it.
func (s *InMemory) Stage() (ports.ContactStore, func()) {
	s.mu.RLock()
	staged := &InMemory{
		contacts: make([]*models.Contact, len(s.contacts)),
		events:   append([]outbox.Event(nil), s.events...),
		now:      s.now,
	}
	for i, c := range s.contacts {
		staged.contacts[i] = c.Clone()
	}
	s.mu.RUnlock()

	commit := func() {
		staged.mu.RLock()
		defer staged.mu.RUnlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.contacts = staged.contacts
		s.events = staged.events
	}
	return staged, commit
}

func matches(stored, wanted *string) bool {
	if stored == nil || wanted == nil {
		return false
	}
	w := strings.TrimSpace(*wanted)
	return w != "" && strings.EqualFold(strings.TrimSpace(*stored), w)
}
