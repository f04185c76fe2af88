// Package enums holds the string enums persisted in text columns and carried
// in tokens and event payloads.
package enums

import "slices"

func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// UserRole is the role carried by an access token.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleSeller   UserRole = "seller"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleSeller, UserRoleAdmin}

func (u UserRole) IsValid() bool { return known(u, userRoles) }

// DiscountType selects how a product discount value is read: as a percentage
// of the unit price or as a flat amount per unit.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeAmount     DiscountType = "amount"
)
