package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contactlink/internal/contact/models"
	"contactlink/internal/outbox"
	"contactlink/pkg/platform/tx"
)

const contactColumns = `id, email, phone_number, link_precedence, linked_id, created_at, updated_at`

// Postgres persists contacts in PostgreSQL. This store is pure I/O: linkage
// decisions belong to the reconciler.
type Postgres struct {
	exec tx.Executor
}

// NewPostgres constructs a store running each statement on its own.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{exec: db}
}

// NewPostgresTx constructs a store bound to an open transaction.
func NewPostgresTx(t *sql.Tx) *Postgres {
	return &Postgres{exec: t}
}

func (s *Postgres) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE ($1::text IS NOT NULL AND lower(email) = lower($1::text))
		   OR ($2::text IS NOT NULL AND lower(phone_number) = lower($2::text))
		ORDER BY created_at, id
	`
	contacts, err := s.query(ctx, query, email, phone)
	if err != nil {
		return nil, fmt.Errorf("find contacts by email or phone: %w", err)
	}
	return contacts, nil
}

func (s *Postgres) FindClusterMembers(ctx context.Context, contactID int64) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id = $1 OR linked_id = $1
		ORDER BY created_at, id
	`
	contacts, err := s.query(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("find cluster members: %w", err)
	}
	return contacts, nil
}

// FindByID loads a single contact.
func (s *Postgres) FindByID(ctx context.Context, contactID int64) (*models.Contact, error) {
	row := s.exec.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, contactID)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find contact: %w", err)
	}
	return c, nil
}

// Save inserts contacts with a zero ID (the database assigns id and
// timestamps) and updates linkage and UpdatedAt otherwise. CreatedAt is never
// rewritten.
func (s *Postgres) Save(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	if contact.ID == 0 {
		return s.insert(ctx, contact)
	}
	if contact.UpdatedAt.IsZero() {
		contact.UpdatedAt = time.Now()
	}
	result, err := s.exec.ExecContext(ctx, `
		UPDATE contacts
		SET email = $2, phone_number = $3, link_precedence = $4, linked_id = $5, updated_at = $6
		WHERE id = $1
	`,
		contact.ID,
		contact.Email,
		contact.PhoneNumber,
		string(contact.LinkPrecedence),
		contact.LinkedID,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update contact %d: %w", contact.ID, ErrNotFound)
	}
	return nil
}

func (s *Postgres) insert(ctx context.Context, contact *models.Contact) error {
	var createdAt sql.NullTime
	if !contact.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: contact.CreatedAt, Valid: true}
	}
	err := s.exec.QueryRowContext(ctx, `
		INSERT INTO contacts (email, phone_number, link_precedence, linked_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, now()), COALESCE($5::timestamptz, now()))
		RETURNING id, created_at, updated_at
	`,
		contact.Email,
		contact.PhoneNumber,
		string(contact.LinkPrecedence),
		contact.LinkedID,
		createdAt,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *Postgres) AppendEvent(ctx context.Context, event outbox.Event) error {
	return outbox.Insert(ctx, s.exec, event)
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (*models.Contact, error) {
	var (
		c          models.Contact
		email      sql.NullString
		phone      sql.NullString
		precedence string
		linkedID   sql.NullInt64
	)
	if err := row.Scan(&c.ID, &email, &phone, &precedence, &linkedID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	c.LinkPrecedence = models.LinkPrecedence(precedence)
	return &c, nil
}
