package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultVariant is the sentinel used when a product has no color/size
// options or the caller did not pick one.
const DefaultVariant = "Default"

// tempIDPrefix marks items created by an optimistic local add, before the
// server has assigned a real item ID.
const tempIDPrefix = "temp-"

// Product is a denormalized snapshot of product data carried inside a cart
// line item. The server owns the authoritative copy; optimistic items carry a
// placeholder populated only with the SKU.
type Product struct {
	ID            string   `json:"_id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand,omitempty"`
	SKU           string   `json:"sku"`
	OriginalPrice float64  `json:"originalPrice"`
	SalePrice     float64  `json:"salePrice"`
	Stock         int      `json:"stock"`
	MainImage     string   `json:"mainImage,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
}

// UnitPrice prefers the sale price over the original price when one is set.
func (p Product) UnitPrice() float64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.OriginalPrice
}

// CartItem is one line item: a product snapshot plus the chosen variant and
// quantity.
type CartItem struct {
	ID         string  `json:"_id"`
	Product    Product `json:"product"`
	Color      string  `json:"color"`
	Size       string  `json:"size"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

// Matches reports whether the item is the line for the given
// (SKU, color, size) triple.
func (i *CartItem) Matches(sku, color, size string) bool {
	return i.Product.SKU == sku && i.Color == color && i.Size == size
}

// Recompute refreshes TotalPrice from the current quantity and the product
// snapshot's unit price. Called after every optimistic quantity change; the
// server's response overwrites it authoritatively.
func (i *CartItem) Recompute() {
	i.TotalPrice = float64(i.Quantity) * i.Product.UnitPrice()
}

// IsOptimistic reports whether an item ID is a local placeholder that the
// server has not confirmed yet.
func IsOptimistic(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// NewOptimisticItem builds a placeholder line item for an optimistic add.
// Only the SKU is known; name, pricing and stock stay at safe defaults until
// the server's payload replaces the whole item.
func NewOptimisticItem(sku, color, size string, quantity int) CartItem {
	item := CartItem{
		ID:       tempIDPrefix + uuid.NewString(),
		Product:  Product{SKU: sku},
		Color:    color,
		Size:     size,
		Quantity: quantity,
	}
	item.Recompute()
	return item
}

// Cart is the authoritative local view of one shopping cart. Item order is
// display order only.
type Cart struct {
	ID        string     `json:"_id,omitempty"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
}

// FindBySKU returns a pointer to the line item matching the triple, or nil.
func (c *Cart) FindBySKU(sku, color, size string) *CartItem {
	if c == nil {
		return nil
	}
	for idx := range c.Items {
		if c.Items[idx].Matches(sku, color, size) {
			return &c.Items[idx]
		}
	}
	return nil
}

// FindByID returns a pointer to the line item with the given ID, or nil.
func (c *Cart) FindByID(id string) *CartItem {
	if c == nil {
		return nil
	}
	for idx := range c.Items {
		if c.Items[idx].ID == id {
			return &c.Items[idx]
		}
	}
	return nil
}

// Clone returns a deep copy so consumers can hold a snapshot without
// observing later store mutations.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	for idx := range cp.Items {
		if tags := cp.Items[idx].Product.Tags; tags != nil {
			cp.Items[idx].Product.Tags = append([]string(nil), tags...)
		}
	}
	return &cp
}

// Totals are derived from the item list on demand and never stored, so they
// cannot drift from the authoritative items array.
type Totals struct {
	Subtotal  float64
	ItemCount int // sum of quantities
	LineCount int // distinct line items
}

// ComputeTotals aggregates over the cart's current items. A nil cart yields
// zero totals.
func (c *Cart) ComputeTotals() Totals {
	var t Totals
	if c == nil {
		return t
	}
	for idx := range c.Items {
		t.Subtotal += c.Items[idx].TotalPrice
		t.ItemCount += c.Items[idx].Quantity
	}
	t.LineCount = len(c.Items)
	return t
}
