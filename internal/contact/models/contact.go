package models

import (
	"strings"
	"time"
)

// LinkPrecedence marks whether a contact is the canonical record of its cluster.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

func (p LinkPrecedence) IsValid() bool {
	return p == LinkPrecedencePrimary || p == LinkPrecedenceSecondary
}

// Contact is a single partial-identity record. LinkedID is set iff the contact
// is secondary and always names the cluster primary directly.
type Contact struct {
	ID             int64
	Email          *string
	PhoneNumber    *string
	LinkPrecedence LinkPrecedence
	LinkedID       *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// EmailValue returns the email or "" when absent.
func (c *Contact) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// PhoneValue returns the phone number or "" when absent.
func (c *Contact) PhoneValue() string {
	if c.PhoneNumber == nil {
		return ""
	}
	return *c.PhoneNumber
}

// HasEmail reports whether the contact's email matches email case-insensitively.
func (c *Contact) HasEmail(email string) bool {
	return email != "" && strings.EqualFold(strings.TrimSpace(c.EmailValue()), email)
}

// HasPhone reports whether the contact's phone matches phone case-insensitively.
func (c *Contact) HasPhone(phone string) bool {
	return phone != "" && strings.EqualFold(strings.TrimSpace(c.PhoneValue()), phone)
}

// LinkTo demotes c to a secondary of primaryID.
func (c *Contact) LinkTo(primaryID int64, now time.Time) {
	id := primaryID
	c.LinkPrecedence = LinkPrecedenceSecondary
	c.LinkedID = &id
	c.UpdatedAt = now
}

// Clone returns a deep copy.
func (c *Contact) Clone() *Contact {
	out := *c
	if c.Email != nil {
		v := *c.Email
		out.Email = &v
	}
	if c.PhoneNumber != nil {
		v := *c.PhoneNumber
		out.PhoneNumber = &v
	}
	if c.LinkedID != nil {
		v := *c.LinkedID
		out.LinkedID = &v
	}
	return &out
}

// NewPrimary builds the first contact of a brand-new identity.
func NewPrimary(email, phone string) *Contact {
	return &Contact{
		Email:          optional(email),
		PhoneNumber:    optional(phone),
		LinkPrecedence: LinkPrecedencePrimary,
	}
}

// NewSecondary builds a contact recording a new fact about primaryID's identity.
func NewSecondary(email, phone string, primaryID int64) *Contact {
	id := primaryID
	return &Contact{
		Email:          optional(email),
		PhoneNumber:    optional(phone),
		LinkPrecedence: LinkPrecedenceSecondary,
		LinkedID:       &id,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// IdentityView is the consolidated view of one cluster.
type IdentityView struct {
	PrimaryID    int64
	Emails       []string
	PhoneNumbers []string
	SecondaryIDs []int64
}

// ReconcileResult is the outcome of one reconciliation, including the writes
// it performed.
type ReconcileResult struct {
	View     IdentityView
	Created  *Contact
	Demoted  []*Contact
	Relinked []*Contact
}
