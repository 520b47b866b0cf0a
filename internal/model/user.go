// Package model defines the data structures used throughout the application.
package model

import "time"

// ProviderAccount is a provider identity attached to a local User.
//
// The credential is never serialized to clients; it only travels between
// the store and the provider adapters.
type ProviderAccount struct {
	ID          string     `json:"id"`
	Credential  Credential `json:"-"`
	DisplayName string     `json:"displayName"`
	Picture     string     `json:"picture"`
	Email       string     `json:"email,omitempty"`
	Valid       bool       `json:"valid"`
}

// User is the local identity that provider accounts are linked to.
//
// WHY Email string (not *string)?
// Twitter and Instagram never expose an email, so provider-only users may
// have none. An empty string means "absent"; the store persists it as NULL
// so the UNIQUE constraint on email only applies to real addresses.
type User struct {
	ID             string                        `json:"id"`
	Name           string                        `json:"name"`
	Email          string                        `json:"email,omitempty"`
	PasswordHash   string                        `json:"-"`
	Verified       bool                          `json:"verified"`
	ValidLocalUser bool                          `json:"validLocalUser"`
	MainCircleID   string                        `json:"mainCircle,omitempty"`
	Accounts       map[Provider]*ProviderAccount `json:"accounts"`
	CreatedAt      time.Time                     `json:"createdAt"`
	UpdatedAt      time.Time                     `json:"updatedAt"`
}

// Account returns the user's account for p, or nil.
func (u *User) Account(p Provider) *ProviderAccount {
	if u.Accounts == nil {
		return nil
	}
	return u.Accounts[p]
}

// HasLinkedAccount reports whether p is linked: both an external id and a
// credential must be present.
func (u *User) HasLinkedAccount(p Provider) bool {
	a := u.Account(p)
	return a != nil && a.ID != "" && !a.Credential.Empty()
}

// SetAccount attaches or overwrites the account for p.
func (u *User) SetAccount(p Provider, a *ProviderAccount) {
	if u.Accounts == nil {
		u.Accounts = make(map[Provider]*ProviderAccount)
	}
	u.Accounts[p] = a
}

// ClearAccount removes the account for p.
func (u *User) ClearAccount(p Provider) {
	delete(u.Accounts, p)
}

// LinkedProviders returns the linked providers in Providers order.
func (u *User) LinkedProviders() []Provider {
	var out []Provider
	for _, p := range Providers {
		if u.HasLinkedAccount(p) {
			out = append(out, p)
		}
	}
	return out
}
