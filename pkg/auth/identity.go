package auth

import (
	"github.com/google/uuid"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// AuthenticatedUser is the caller resolved from a verified bearer token.
type AuthenticatedUser struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	SellerID *uuid.UUID
}

func (u AuthenticatedUser) IsAdmin() bool {
	return u.Role == enums.UserRoleAdmin
}

// OwnsSeller reports whether the caller is the seller identified by sellerID.
func (u AuthenticatedUser) OwnsSeller(sellerID uuid.UUID) bool {
	return u.Role == enums.UserRoleSeller && u.SellerID != nil && *u.SellerID == sellerID
}

func (u AuthenticatedUser) validate() error {
	switch {
	case u.UserID == uuid.Nil:
		return errMissingUser
	case !u.Role.IsValid():
		return errInvalidRole
	case u.Role == enums.UserRoleSeller && u.SellerID == nil:
		return errSellerWithoutID
	}
	return nil
}
