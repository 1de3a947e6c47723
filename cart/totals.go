package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-backend/models"
)

type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Totals struct {
	CartID    uuid.UUID       `json:"cart_id"`
	Lines     []Line          `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeTotals prices the cart at current product prices.
func (e *Engine) ComputeTotals(ctx context.Context, cartID uuid.UUID) (*Totals, error) {
	c, err := e.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	t := Summarize(c, e.shipping)
	return &t, nil
}

// Summarize totals a loaded cart. Lines keep the cart's item order; the
// flat shipping charge applies only when the cart is not empty.
func Summarize(c *models.Cart, shipping decimal.Decimal) Totals {
	t := Totals{
		CartID:   c.ID,
		Lines:    make([]Line, 0, len(c.Items)),
		Subtotal: decimal.Zero,
		Shipping: decimal.Zero,
	}
	for _, item := range c.Items {
		line := Line{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: decimal.Zero}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.UnitPrice = item.Product.Price
		}
		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		t.Lines = append(t.Lines, line)
		t.ItemCount += item.Quantity
		t.Subtotal = t.Subtotal.Add(line.LineTotal)
	}
	if len(t.Lines) > 0 {
		t.Shipping = shipping
	}
	t.Total = t.Subtotal.Add(t.Shipping)
	return t
}

// LockedTotals prices the cart after locking its row. On an Engine bound
// with WithTx the lock is held until the caller's transaction ends, so the
// cart cannot change between pricing and what the caller does next.
func (e *Engine) LockedTotals(ctx context.Context, cartID uuid.UUID) (*Totals, error) {
	var t Totals
	err := e.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockCart(tx, cartID); err != nil {
			return err
		}
		c, err := e.WithTx(tx).Get(ctx, cartID)
		if err != nil {
			return err
		}
		t = Summarize(c, e.shipping)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}
