// Package repository declares the storage interfaces the services depend on.
// Implementations live in sub-packages (sqlite).
package repository

import (
	"context"
	"errors"

	"github.com/sakif/unify/internal/model"
)

// UserRepository stores users together with their linked provider accounts.
//
// Save writes the whole document: profile fields and the full set of
// provider accounts. Accounts missing from user.Accounts are removed.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// FindByProviderID returns the user holding the given external identity.
	// Returns an apperror.ErrNotFound error when nobody does.
	FindByProviderID(ctx context.Context, p model.Provider, externalID string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Delete removes the user and, by cascade, their contacts.
	Delete(ctx context.Context, id string) error
}

// ContactRepository stores a user's contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact *model.Contact) error
	// GetByID only returns contacts owned by userID.
	GetByID(ctx context.Context, userID, id string) (*model.Contact, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Contact, error)
	Save(ctx context.Context, contact *model.Contact) error
}

// ErrEmailTaken is returned by UserRepository writes when another user
// already owns the email address.
var ErrEmailTaken = errors.New("repository: email already in use")
