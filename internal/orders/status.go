package orders

import (
	"github.com/bazaarhub/bazaar-backend/pkg/auth"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
)

var itemTransitions = map[enums.OrderItemStatus][]enums.OrderItemStatus{
	enums.OrderItemStatusPending: {
		enums.OrderItemStatusShipped,
		enums.OrderItemStatusCancelRequested,
		enums.OrderItemStatusCancelled,
	},
	enums.OrderItemStatusShipped:         {enums.OrderItemStatusDelivered},
	enums.OrderItemStatusCancelRequested: {enums.OrderItemStatusCancelled},
}

// CanTransition reports whether an item may move from one status to another.
// Delivered and cancelled are terminal.
func CanTransition(from, to enums.OrderItemStatus) bool {
	for _, candidate := range itemTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// authorizeTransition applies the actor rules on top of the state machine:
// customers may only request cancellation of their own items, sellers move
// their own items, admins may perform any legal transition.
func authorizeTransition(user auth.AuthenticatedUser, order *models.Order, item *models.OrderItem, to enums.OrderItemStatus) error {
	switch user.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleSeller:
		if !user.OwnsSeller(item.SellerID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order item does not belong to seller")
		}
		return nil
	case enums.UserRoleCustomer:
		if order.UserID != user.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if to != enums.OrderItemStatusCancelRequested {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only request cancellation")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted")
	}
}
