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

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores users in the users and user_accounts tables.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, name, email, password_hash, verified, valid_local_user,
	main_circle_id, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new user and their provider accounts in one transaction.
// It assigns ID, CreatedAt and UpdatedAt. A duplicate email yields
// repository.ErrEmailTaken.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	return u.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			user.Name,
			nullString(user.Email),
			user.PasswordHash,
			user.Verified,
			user.ValidLocalUser,
			user.MainCircleID,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("sqlite: inserting user: %w", repository.ErrEmailTaken)
			}
			return fmt.Errorf("sqlite: inserting user: %w", err)
		}
		return insertAccounts(ctx, tx, user)
	})
}

// Save overwrites the user row and replaces the full set of provider accounts.
//
// FULL-DOCUMENT WRITE:
// Accounts are deleted and re-inserted inside the transaction, so an account
// removed from user.Accounts (an unlink) disappears from the store. Two
// concurrent saves of the same user resolve as last write wins.
func (u *UserDB) Save(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	return u.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET name = ?, email = ?, password_hash = ?, verified = ?,
			 valid_local_user = ?, main_circle_id = ?, updated_at = ?
			 WHERE id = ?`,
			user.Name,
			nullString(user.Email),
			user.PasswordHash,
			user.Verified,
			user.ValidLocalUser,
			user.MainCircleID,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("sqlite: updating user %s: %w", user.ID, repository.ErrEmailTaken)
			}
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("user", user.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_accounts WHERE user_id = ?`, user.ID,
		); err != nil {
			return fmt.Errorf("sqlite: clearing accounts of user %s: %w", user.ID, err)
		}
		return insertAccounts(ctx, tx, user)
	})
}

// GetByID retrieves a user and their provider accounts.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return u.load(ctx, row, id)
}

// FindByEmail looks a user up by email. An empty email never matches.
func (u *UserDB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.NotFound("user", "with empty email")
	}
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return u.load(ctx, row, email)
}

// FindByProviderID returns the user holding (p, externalID).
func (u *UserDB) FindByProviderID(ctx context.Context, p model.Provider, externalID string) (*model.User, error) {
	var userID string
	err := u.conn.QueryRowContext(ctx,
		`SELECT user_id FROM user_accounts
		 WHERE provider = ? AND external_id = ?
		 ORDER BY user_id LIMIT 1`,
		string(p), externalID,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(string(p)+" account", externalID)
		}
		return nil, fmt.Errorf("sqlite: finding user by %s id %s: %w", p, externalID, err)
	}
	return u.GetByID(ctx, userID)
}

// Delete removes the user. Accounts, contacts and contact accounts go with it
// through ON DELETE CASCADE.
func (u *UserDB) Delete(ctx context.Context, id string) error {
	res, err := u.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (u *UserDB) load(ctx context.Context, row rowScanner, key string) (*model.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}
	if err := u.loadAccounts(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user  model.User
		email sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&email,
		&user.PasswordHash,
		&user.Verified,
		&user.ValidLocalUser,
		&user.MainCircleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	return &user, nil
}

func (u *UserDB) loadAccounts(ctx context.Context, user *model.User) error {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT provider, external_id, access_token, secret, refresh_token,
		        display_name, picture, email, valid
		 FROM user_accounts WHERE user_id = ?`,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading accounts of user %s: %w", user.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			provider string
			a        model.ProviderAccount
		)
		if err := rows.Scan(
			&provider,
			&a.ID,
			&a.Credential.AccessToken,
			&a.Credential.Secret,
			&a.Credential.RefreshToken,
			&a.DisplayName,
			&a.Picture,
			&a.Email,
			&a.Valid,
		); err != nil {
			return fmt.Errorf("sqlite: scanning account of user %s: %w", user.ID, err)
		}
		user.SetAccount(model.Provider(provider), &a)
	}
	return rows.Err()
}

func insertAccounts(ctx context.Context, tx *sql.Tx, user *model.User) error {
	for p, a := range user.Accounts {
		if a == nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_accounts (user_id, provider, external_id, access_token,
			 secret, refresh_token, display_name, picture, email, valid)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			string(p),
			a.ID,
			a.Credential.AccessToken,
			a.Credential.Secret,
			a.Credential.RefreshToken,
			a.DisplayName,
			a.Picture,
			a.Email,
			a.Valid,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting %s account of user %s: %w", p, user.ID, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (u *UserDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withTx(ctx, u.conn, fn)
}

func withTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
