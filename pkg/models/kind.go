package models

import (
	"fmt"
	"strings"
)

// Kind identifies a record kind. Each kind has its own canonical shape,
// CSV dialects, remote table and cache key.
type Kind string

const (
	KindRevenue   Kind = "revenue"
	KindPurchase  Kind = "purchase"
	KindInventory Kind = "inventory"
	KindSupplier  Kind = "supplier"
	KindQuote     Kind = "quote"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindRevenue, KindPurchase, KindInventory, KindSupplier, KindQuote}

// ParseKind resolves a kind name, accepting a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "revenue", "sales":
		return KindRevenue, nil
	case "purchase", "purchases":
		return KindPurchase, nil
	case "inventory", "stock":
		return KindInventory, nil
	case "supplier", "suppliers":
		return KindSupplier, nil
	case "quote", "quotes", "quote-request", "quote_request":
		return KindQuote, nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

func (k Kind) String() string {
	return string(k)
}

// MinCells is the fewest cells a row of this kind may have before it is
// considered ragged and dropped.
func (k Kind) MinCells() int {
	switch k {
	case KindRevenue:
		return 6
	case KindPurchase:
		return 11
	default:
		return 5
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Table is the remote table holding records of this kind.
func (k Kind) Table() string {
	switch k {
	case KindRevenue:
		return "revenue_lines"
	case KindPurchase:
		return "purchase_lines"
	case KindInventory:
		return "inventory_lines"
	case KindSupplier:
		return "supplier_profiles"
	case KindQuote:
		return "quote_requests"
	}
	return ""
}
