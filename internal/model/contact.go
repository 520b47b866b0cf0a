package model

import "time"

// ContactAccount ties a contact to one provider identity.
// Valid is cleared when the owner unlinks that provider so feed calls skip
// it without losing the stored identifiers.
type ContactAccount struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Valid    bool   `json:"valid"`
}

// Contact is an address-book entry owned by exactly one User.
type Contact struct {
	ID        string                       `json:"id"`
	UserID    string                       `json:"userId"`
	Name      string                       `json:"name"`
	Email     string                       `json:"email,omitempty"`
	Accounts  map[Provider]*ContactAccount `json:"accounts"`
	CreatedAt time.Time                    `json:"createdAt"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

// Account returns the contact's account for p, or nil.
func (c *Contact) Account(p Provider) *ContactAccount {
	if c.Accounts == nil {
		return nil
	}
	return c.Accounts[p]
}
