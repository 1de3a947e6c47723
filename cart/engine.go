package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-backend/catalog"
	"storefront-backend/database"
	"storefront-backend/metrics"
	"storefront-backend/models"
)

const resolveAttempts = 3

// Engine owns carts and their lines. Every mutation is one transaction
// that locks the cart row first, so mutations of a single cart are
// linearized while different carts proceed in parallel.
type Engine struct {
	db       *gorm.DB
	catalog  *catalog.Store
	shipping decimal.Decimal
	retries  int
	inTx     bool
	metrics  *metrics.Metrics
	log      *zap.Logger
}

type Option func(*Engine)

// WithShipping sets the flat shipping charge for non-empty carts.
func WithShipping(amount decimal.Decimal) Option {
	return func(e *Engine) { e.shipping = amount }
}

// WithRetries sets how often a transaction aborted by a serialization
// failure or deadlock is replayed.
func WithRetries(n int) Option {
	return func(e *Engine) { e.retries = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func NewEngine(db *gorm.DB, store *catalog.Store, opts ...Option) *Engine {
	e := &Engine{db: db, catalog: store, retries: 3, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("cart")
	return e
}

// WithTx returns an Engine whose operations join tx instead of opening
// their own transactions.
func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	cp := *e
	cp.db = tx
	cp.inTx = true
	cp.catalog = e.catalog.WithTx(tx)
	return &cp
}

func (e *Engine) Shipping() decimal.Decimal { return e.shipping }

func (e *Engine) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if e.inTx {
		return fn(e.db.WithContext(ctx))
	}
	return database.Transaction(ctx, e.db, e.retries, fn)
}

func (e *Engine) observe(op string, err error) {
	e.metrics.CartOp(op, result(err))
	if errors.Is(err, ErrOwnerInvariant) {
		e.log.Error("cart owner invariant violated", zap.String("op", op), zap.Error(err))
	}
}

// ResolveOrCreate returns the owner's cart, creating it if absent. Two
// concurrent calls for the same owner converge on one row: the loser of the
// insert race hits the unique key and re-reads the winner's cart.
func (e *Engine) ResolveOrCreate(ctx context.Context, owner Owner) (c *models.Cart, err error) {
	defer func() { e.observe("resolve", err) }()
	if !owner.valid() {
		return nil, ErrOwnerInvariant
	}

	for attempt := 0; attempt < resolveAttempts; attempt++ {
		c, err = e.Find(ctx, owner)
		if !errors.Is(err, ErrNotFound) {
			return c, err
		}

		fresh := owner.newCart()
		// A nested transaction becomes a savepoint, so a duplicate key does
		// not poison an enclosing PostgreSQL transaction.
		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&fresh).Error
		})
		switch {
		case err == nil:
			return &fresh, nil
		case errors.Is(err, gorm.ErrDuplicatedKey):
			e.log.Debug("cart creation raced, re-reading", zap.String("owner", owner.String()))
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrConflict
}

// Find returns the owner's cart without creating one.
func (e *Engine) Find(ctx context.Context, owner Owner) (*models.Cart, error) {
	if !owner.valid() {
		return nil, ErrOwnerInvariant
	}
	var c models.Cart
	if err := owner.where(e.db.WithContext(ctx)).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Get loads a cart with its lines and their products.
func (e *Engine) Get(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	err := e.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC, id ASC") }).
		Preload("Items.Product").
		Take(&c, "id = ?", cartID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// AddItem adds delta units of a product, reserving the same amount of stock
// in the same transaction. An out of stock request changes nothing.
func (e *Engine) AddItem(ctx context.Context, cartID, productID uuid.UUID, delta int) (item *models.CartItem, err error) {
	defer func() { e.observe("add", err) }()
	if delta < 1 {
		return nil, ErrInvalidQuantity
	}

	var line models.CartItem
	err = e.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockCart(tx, cartID); err != nil {
			return err
		}

		store := e.catalog.WithTx(tx)
		if err := store.AdjustStock(ctx, productID, -delta); err != nil {
			return stockError(ctx, store, productID, delta, err)
		}

		add := models.CartItem{CartID: cartID, ProductID: productID, Quantity: delta}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity": gorm.Expr("cart_items.quantity + excluded.quantity"),
			}),
		}).Create(&add).Error
		if err != nil {
			return err
		}

		if err := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).Take(&line).Error; err != nil {
			return err
		}
		return touch(tx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// RemoveOrDecrement takes delta units off a line and returns them to stock.
// When the line would reach zero it is deleted and nil is returned.
func (e *Engine) RemoveOrDecrement(ctx context.Context, cartID, productID uuid.UUID, delta int) (*models.CartItem, error) {
	if delta < 1 {
		e.observe("remove", ErrInvalidQuantity)
		return nil, ErrInvalidQuantity
	}
	return e.remove(ctx, cartID, productID, delta)
}

// RemoveLine deletes a whole line and returns its quantity to stock.
func (e *Engine) RemoveLine(ctx context.Context, cartID, productID uuid.UUID) error {
	_, err := e.remove(ctx, cartID, productID, 0)
	return err
}

// remove decrements by delta, or deletes the line when delta is 0 or at
// least the current quantity.
func (e *Engine) remove(ctx context.Context, cartID, productID uuid.UUID, delta int) (item *models.CartItem, err error) {
	defer func() { e.observe("remove", err) }()

	var remaining *models.CartItem
	err = e.transaction(ctx, func(tx *gorm.DB) error {
		remaining = nil
		if _, err := lockCart(tx, cartID); err != nil {
			return err
		}

		var line models.CartItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Take(&line).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotInCart
			}
			return err
		}

		restore := delta
		if delta == 0 || delta >= line.Quantity {
			restore = line.Quantity
			if err := tx.Delete(&models.CartItem{}, "id = ?", line.ID).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&line).UpdateColumn("quantity", gorm.Expr("quantity - ?", delta)).Error; err != nil {
				return err
			}
			line.Quantity -= delta
			remaining = &line
		}

		if err := e.catalog.WithTx(tx).AdjustStock(ctx, productID, restore); err != nil {
			return err
		}
		return touch(tx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

// Clear deletes a cart after its contents became an order. Reserved stock
// stays consumed.
func (e *Engine) Clear(ctx context.Context, cartID uuid.UUID) (err error) {
	defer func() { e.observe("clear", err) }()
	return e.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockCart(tx, cartID); err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Cart{}, "id = ?", cartID).Error
	})
}

// Empty removes every line and returns the reserved units to stock. The
// cart itself stays.
func (e *Engine) Empty(ctx context.Context, cartID uuid.UUID) (err error) {
	defer func() { e.observe("empty", err) }()
	return e.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockCart(tx, cartID); err != nil {
			return err
		}
		if err := releaseItems(ctx, tx, e.catalog.WithTx(tx), cartID); err != nil {
			return err
		}
		return touch(tx, cartID)
	})
}

func releaseItems(ctx context.Context, tx *gorm.DB, store *catalog.Store, cartID uuid.UUID) error {
	var lines []models.CartItem
	if err := tx.Where("cart_id = ?", cartID).Order("product_id ASC").Find(&lines).Error; err != nil {
		return err
	}
	for _, line := range lines {
		if err := store.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

func lockCart(tx *gorm.DB, cartID uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&c, "id = ?", cartID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// touch bumps updated_at without running the save hooks.
func touch(tx *gorm.DB, cartID uuid.UUID) error {
	return tx.Model(&models.Cart{}).Where("id = ?", cartID).UpdateColumn("updated_at", time.Now()).Error
}

func stockError(ctx context.Context, store *catalog.Store, productID uuid.UUID, requested int, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, catalog.ErrInsufficientStock):
		available := 0
		if p, perr := store.GetProduct(ctx, productID); perr == nil {
			available = p.Stock
		}
		return &StockError{ProductID: productID, Requested: requested, Available: available}
	default:
		return err
	}
}
