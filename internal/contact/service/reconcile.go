package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
	"contactlink/internal/outbox"
	pkgstrings "contactlink/pkg/platform/strings"
	"contactlink/pkg/requestcontext"
)

// Reconcile resolves the identity carrying email and/or phone against store.
//
// It closes the cluster of contacts connected to the submitted identifiers,
// keeps the oldest primary, demotes rival primaries, re-points secondaries at
// the surviving primary and records at most one new secondary when the
// submission carries an unseen email or phone. Callers run it inside a unit of
// work: any returned error means the writes already issued must be discarded.
//
// At least one of email and phone must be non-blank.
func Reconcile(ctx context.Context, store ports.ContactStore, email, phone string) (*models.ReconcileResult, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	w := &writer{
		store:     store,
		now:       requestcontext.Now(ctx),
		requestID: requestcontext.RequestID(ctx),
	}

	seeds, err := store.FindByEmailOrPhone(ctx, optional(email), optional(phone))
	if err != nil {
		return nil, fmt.Errorf("find seed contacts: %w", err)
	}
	if len(seeds) == 0 {
		created := models.NewPrimary(email, phone)
		if err := w.write(ctx, created, outbox.EventContactCreated); err != nil {
			return nil, err
		}
		return &models.ReconcileResult{
			View:    assembleView(created, []*models.Contact{created}),
			Created: created,
		}, nil
	}

	cluster, err := closeCluster(ctx, store, seeds)
	if err != nil {
		return nil, err
	}
	primary := selectPrimary(cluster)
	result := &models.ReconcileResult{}

	if primary.IsPrimary() {
		for _, c := range cluster {
			if c.ID == primary.ID {
				continue
			}
			switch {
			case c.IsPrimary():
				c.LinkTo(primary.ID, w.now)
				if err := w.write(ctx, c, outbox.EventContactDemoted); err != nil {
					return nil, err
				}
				result.Demoted = append(result.Demoted, c)
			case c.LinkedID == nil || *c.LinkedID != primary.ID:
				c.LinkTo(primary.ID, w.now)
				if err := w.write(ctx, c, outbox.EventContactLinked); err != nil {
					return nil, err
				}
				result.Relinked = append(result.Relinked, c)
			}
		}
	}

	if carriesNewFact(cluster, email, phone) {
		created := models.NewSecondary(email, phone, primary.ID)
		if err := w.write(ctx, created, outbox.EventContactCreated); err != nil {
			return nil, err
		}
		cluster = append(cluster, created)
		result.Created = created
	}

	result.View = assembleView(primary, cluster)
	return result, nil
}

// closeCluster walks breadth-first from seeds until every contact reachable
// through a link (either direction) or a shared email/phone has been visited
// exactly once. The returned slice is in encounter order.
func closeCluster(ctx context.Context, store ports.ContactStore, seeds []*models.Contact) ([]*models.Contact, error) {
	visited := make(map[int64]struct{}, len(seeds))
	queue := append([]*models.Contact(nil), seeds...)
	var cluster []*models.Contact

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		if _, ok := visited[c.ID]; ok {
			continue
		}
		visited[c.ID] = struct{}{}
		cluster = append(cluster, c)

		linked, err := store.FindClusterMembers(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("find cluster members of %d: %w", c.ID, err)
		}
		if c.LinkedID != nil {
			siblings, err := store.FindClusterMembers(ctx, *c.LinkedID)
			if err != nil {
				return nil, fmt.Errorf("find cluster members of %d: %w", *c.LinkedID, err)
			}
			linked = append(linked, siblings...)
		}
		if c.Email != nil || c.PhoneNumber != nil {
			sharing, err := store.FindByEmailOrPhone(ctx, c.Email, c.PhoneNumber)
			if err != nil {
				return nil, fmt.Errorf("find contacts sharing fields with %d: %w", c.ID, err)
			}
			linked = append(linked, sharing...)
		}

		for _, next := range linked {
			if _, ok := visited[next.ID]; !ok {
				queue = append(queue, next)
			}
		}
	}
	return cluster, nil
}

// selectPrimary picks the earliest-created primary, smallest id on ties. A
// cluster without any primary falls back to its first member.
func selectPrimary(cluster []*models.Contact) *models.Contact {
	var primary *models.Contact
	for _, c := range cluster {
		if !c.IsPrimary() {
			continue
		}
		if primary == nil || olderThan(c, primary) {
			primary = c
		}
	}
	if primary == nil {
		return cluster[0]
	}
	return primary
}

func olderThan(a, b *models.Contact) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// carriesNewFact reports whether a supplied identifier is absent from the
// cluster. Omitted identifiers never count as new.
func carriesNewFact(cluster []*models.Contact, email, phone string) bool {
	emailKnown, phoneKnown := email == "", phone == ""
	for _, c := range cluster {
		emailKnown = emailKnown || c.HasEmail(email)
		phoneKnown = phoneKnown || c.HasPhone(phone)
		if emailKnown && phoneKnown {
			return false
		}
	}
	return true
}

// assembleView lists the primary's own values first, then the other members'
// distinct values in encounter order. Both lists dedupe case-insensitively,
// the same way contacts are matched.
func assembleView(primary *models.Contact, cluster []*models.Contact) models.IdentityView {
	emails := []string{primary.EmailValue()}
	phones := []string{primary.PhoneValue()}
	var secondaryIDs []int64
	for _, c := range cluster {
		if c.ID == primary.ID {
			continue
		}
		emails = append(emails, c.EmailValue())
		phones = append(phones, c.PhoneValue())
		if !c.IsPrimary() {
			secondaryIDs = append(secondaryIDs, c.ID)
		}
	}
	return models.IdentityView{
		PrimaryID:    primary.ID,
		Emails:       pkgstrings.DedupeFold(emails),
		PhoneNumbers: pkgstrings.DedupeFold(phones),
		SecondaryIDs: secondaryIDs,
	}
}

// writer saves contacts and records the matching outbox event in the same
// unit of work.
type writer struct {
	store     ports.ContactStore
	now       time.Time
	requestID string
}

func (w *writer) write(ctx context.Context, c *models.Contact, eventType outbox.EventType) error {
	if err := w.store.Save(ctx, c); err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	event, err := outbox.NewContactEvent(eventType, c, w.requestID, w.now)
	if err != nil {
		return err
	}
	if err := w.store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
