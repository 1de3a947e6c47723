package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront-backend/models"
)

var (
	ErrOutOfStock      = errors.New("cart: requested quantity exceeds available stock")
	ErrItemNotInCart   = errors.New("cart: item not in cart")
	ErrConflict        = errors.New("cart: concurrent cart creation conflict")
	ErrNotFound        = errors.New("cart: not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	ErrInvalidMerge    = errors.New("cart: cannot merge a cart into itself")

	// ErrOwnerInvariant means a cart would carry both or neither owner. It
	// indicates a programming error, not a user mistake.
	ErrOwnerInvariant = models.ErrCartOwnerInvariant
)

// StockError reports how much of a product could still be added.
type StockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("cart: requested %d of product %s, only %d available", e.Requested, e.ProductID, e.Available)
}

func (e *StockError) Unwrap() error { return ErrOutOfStock }

// result maps an operation outcome to a metrics label.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrItemNotInCart):
		return "not_in_cart"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidMerge):
		return "invalid"
	case errors.Is(err, ErrOwnerInvariant):
		return "invariant"
	default:
		return "error"
	}
}
