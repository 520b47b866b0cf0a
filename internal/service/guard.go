package service

import (
	"fmt"

	"github.com/sakif/unify/internal/apperror"
	"github.com/sakif/unify/internal/model"
)

// CanUnlink checks that removing p leaves user able to sign in again.
//
// Twitter and Instagram expose no email, so a user whose only ways in are
// those two must keep at least one of them:
//   - twitter requires an email or a linked instagram
//   - instagram requires an email or a linked twitter
//
// Facebook and Google can always be unlinked.
func CanUnlink(user *model.User, p model.Provider) error {
	if user.Email != "" {
		return nil
	}
	var other model.Provider
	switch p {
	case model.Twitter:
		other = model.Instagram
	case model.Instagram:
		other = model.Twitter
	default:
		return nil
	}
	if user.HasLinkedAccount(other) {
		return nil
	}
	return apperror.BadRequest(fmt.Sprintf(
		"Add an email address or link %s before unlinking %s", other.Title(), p.Title()))
}
