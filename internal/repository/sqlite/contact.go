package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/repository"
)

var _ repository.ContactRepository = (*ContactDB)(nil)

// ContactDB stores contacts in the contacts and contact_accounts tables.
type ContactDB struct {
	conn *sql.DB
}

// Create inserts a contact and its provider accounts.
func (c *ContactDB) Create(ctx context.Context, contact *model.Contact) error {
	now := time.Now().UTC()
	if contact.ID == "" {
		contact.ID = xid.New().String()
	}
	contact.CreatedAt = now
	contact.UpdatedAt = now

	return withTx(ctx, c.conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO contacts (id, user_id, name, email, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			contact.ID,
			contact.UserID,
			contact.Name,
			contact.Email,
			contact.CreatedAt,
			contact.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting contact for user %s: %w", contact.UserID, err)
		}
		return insertContactAccounts(ctx, tx, contact)
	})
}

// GetByID returns the contact only when userID owns it; anyone else's
// contact reads as not found.
func (c *ContactDB) GetByID(ctx context.Context, userID, id string) (*model.Contact, error) {
	var contact model.Contact
	err := c.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, created_at, updated_at
		 FROM contacts WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(
		&contact.ID,
		&contact.UserID,
		&contact.Name,
		&contact.Email,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("contact", id)
		}
		return nil, fmt.Errorf("sqlite: getting contact %s: %w", id, err)
	}

	byID := map[string]*model.Contact{contact.ID: &contact}
	if err := c.loadAccounts(ctx, `WHERE ca.contact_id = ?`, contact.ID, byID); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListByUser returns every contact owned by userID, oldest first.
func (c *ContactDB) ListByUser(ctx context.Context, userID string) ([]*model.Contact, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT id, user_id, name, email, created_at, updated_at
		 FROM contacts WHERE user_id = ?
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contacts of user %s: %w", userID, err)
	}

	contacts := []*model.Contact{}
	byID := make(map[string]*model.Contact)
	for rows.Next() {
		var contact model.Contact
		if err := rows.Scan(
			&contact.ID,
			&contact.UserID,
			&contact.Name,
			&contact.Email,
			&contact.CreatedAt,
			&contact.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning contact: %w", err)
		}
		contacts = append(contacts, &contact)
		byID[contact.ID] = &contact
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: listing contacts of user %s: %w", userID, err)
	}
	// Close before the next query: the pool holds a single connection.
	rows.Close()

	if len(contacts) == 0 {
		return contacts, nil
	}
	if err := c.loadAccounts(ctx,
		`JOIN contacts co ON co.id = ca.contact_id WHERE co.user_id = ?`, userID, byID,
	); err != nil {
		return nil, err
	}
	return contacts, nil
}

// Save overwrites the contact and replaces its provider accounts.
func (c *ContactDB) Save(ctx context.Context, contact *model.Contact) error {
	contact.UpdatedAt = time.Now().UTC()

	return withTx(ctx, c.conn, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE contacts SET name = ?, email = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			contact.Name,
			contact.Email,
			contact.UpdatedAt,
			contact.ID,
			contact.UserID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating contact %s: %w", contact.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("contact", contact.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM contact_accounts WHERE contact_id = ?`, contact.ID,
		); err != nil {
			return fmt.Errorf("sqlite: clearing accounts of contact %s: %w", contact.ID, err)
		}
		return insertContactAccounts(ctx, tx, contact)
	})
}

// loadAccounts attaches contact_accounts rows selected by filter to the
// contacts in byID.
func (c *ContactDB) loadAccounts(ctx context.Context, filter, arg string, byID map[string]*model.Contact) error {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT ca.contact_id, ca.provider, ca.external_id, ca.username, ca.valid
		 FROM contact_accounts ca `+filter,
		arg,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading contact accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			contactID, provider string
			a                   model.ContactAccount
		)
		if err := rows.Scan(&contactID, &provider, &a.ID, &a.Username, &a.Valid); err != nil {
			return fmt.Errorf("sqlite: scanning contact account: %w", err)
		}
		contact, ok := byID[contactID]
		if !ok {
			continue
		}
		if contact.Accounts == nil {
			contact.Accounts = make(map[model.Provider]*model.ContactAccount)
		}
		contact.Accounts[model.Provider(provider)] = &a
	}
	return rows.Err()
}

func insertContactAccounts(ctx context.Context, tx *sql.Tx, contact *model.Contact) error {
	for p, a := range contact.Accounts {
		if a == nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO contact_accounts (contact_id, provider, external_id, username, valid)
			 VALUES (?, ?, ?, ?, ?)`,
			contact.ID,
			string(p),
			a.ID,
			a.Username,
			a.Valid,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting %s account of contact %s: %w", p, contact.ID, err)
		}
	}
	return nil
}
