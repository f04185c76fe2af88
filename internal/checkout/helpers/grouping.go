package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/internal/pricing"
	"github.com/bazaarhub/bazaar-backend/pkg/money"
)

// AllocationMode selects how the combined shipping charge is split across sellers.
type AllocationMode int

const (
	// AllocationExact hands the rounding remainder to the last seller so shares
	// sum to the rounded total.
	AllocationExact AllocationMode = iota
	// AllocationIndependent rounds every share on its own.
	AllocationIndependent
)

// SellerGroup is one seller's slice of the cart plus its shipping share.
type SellerGroup struct {
	SellerID      uuid.UUID
	Items         []pricing.Item
	ItemValue     decimal.Decimal
	ShippingShare decimal.Decimal
	Total         decimal.Decimal
}

// ItemCount returns the number of order items for the seller.
func (g SellerGroup) ItemCount() int {
	return len(g.Items)
}

// GroupBySeller partitions items by seller in first-seen order, keeping item order.
func GroupBySeller(items []pricing.Item) []SellerGroup {
	index := make(map[uuid.UUID]int)
	groups := make([]SellerGroup, 0)
	for _, item := range items {
		pos, ok := index[item.Line.SellerID]
		if !ok {
			pos = len(groups)
			index[item.Line.SellerID] = pos
			groups = append(groups, SellerGroup{SellerID: item.Line.SellerID, ItemValue: decimal.Zero})
		}
		groups[pos].Items = append(groups[pos].Items, item)
		groups[pos].ItemValue = groups[pos].ItemValue.Add(item.FinalTotal)
	}
	return groups
}

// GroupAndAllocate groups items by seller and splits totalShipping in proportion
// to each seller's item value (final totals incl. GST).
func GroupAndAllocate(items []pricing.Item, totalShipping decimal.Decimal, mode AllocationMode) []SellerGroup {
	groups := GroupBySeller(items)
	shares := AllocateShipping(groups, totalShipping, mode)
	for i := range groups {
		groups[i].ShippingShare = shares[i]
		groups[i].Total = money.Round2(groups[i].ItemValue.Add(shares[i]))
	}
	return groups
}

// AllocateShipping returns one shipping share per group. A zero cart value yields
// zero shares.
func AllocateShipping(groups []SellerGroup, totalShipping decimal.Decimal, mode AllocationMode) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(groups))
	for i := range shares {
		shares[i] = decimal.Zero
	}

	totalValue := decimal.Zero
	for _, g := range groups {
		totalValue = totalValue.Add(g.ItemValue)
	}
	if len(groups) == 0 || !totalValue.IsPositive() || !totalShipping.IsPositive() {
		return shares
	}

	if mode == AllocationIndependent {
		for i, g := range groups {
			shares[i] = money.Round2(totalShipping.Mul(g.ItemValue).Div(totalValue))
		}
		return shares
	}

	target := money.Round2(totalShipping)
	remaining := target
	last := len(groups) - 1
	for i, g := range groups {
		if i == last {
			shares[i] = remaining
			break
		}
		share := money.Round2(target.Mul(g.ItemValue).Div(totalValue))
		if share.GreaterThan(remaining) {
			share = remaining
		}
		shares[i] = share
		remaining = remaining.Sub(share)
	}
	return shares
}

// GrandTotal sums the rounded seller totals; this is the amount charged once.
func GrandTotal(groups []SellerGroup) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Total)
	}
	return total
}
