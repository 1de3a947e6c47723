package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-backend/cart"
	"storefront-backend/database"
	"storefront-backend/events"
	"storefront-backend/metrics"
	"storefront-backend/models"
	"storefront-backend/session"
)

var (
	ErrAuthenticationRequired = errors.New("checkout: authentication required")
	ErrEmptyCart              = errors.New("checkout: cart is empty")
	ErrInvalidAddress         = errors.New("checkout: shipping address is required")
	ErrOrderNotFound          = errors.New("checkout: order not found")
)

// Service sequences checkout on top of the cart engine: make sure the
// anonymous cart has been merged, price the user's cart, and turn it into
// an order.
type Service struct {
	db      *gorm.DB
	engine  *cart.Engine
	bridge  *session.Bridge
	pub     events.Publisher
	metrics *metrics.Metrics
	retries int
	log     *zap.Logger
}

func NewService(db *gorm.DB, engine *cart.Engine, bridge *session.Bridge, pub events.Publisher, m *metrics.Metrics, retries int, log *zap.Logger) *Service {
	return &Service{
		db:      db,
		engine:  engine,
		bridge:  bridge,
		pub:     pub,
		metrics: m,
		retries: retries,
		log:     log.Named("checkout"),
	}
}

type Summary struct {
	Totals *cart.Totals `json:"totals"`
	Merged bool         `json:"merged"`
}

type ConfirmRequest struct {
	ShippingAddress string
}

// Prepare prices the user's cart for the checkout page.
func (s *Service) Prepare(ctx context.Context, sid string, userID *uuid.UUID) (*Summary, error) {
	if userID == nil {
		return nil, ErrAuthenticationRequired
	}
	merge, err := s.bridge.OnLogin(ctx, sid, *userID)
	if err != nil {
		return nil, err
	}

	c, err := s.userCart(ctx, *userID)
	if err != nil {
		return nil, err
	}
	totals, err := s.engine.ComputeTotals(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Summary{Totals: totals, Merged: merge.Merged}, nil
}

// Confirm snapshots the cart into an order and clears the cart in the same
// transaction. Reserved stock becomes sold stock.
func (s *Service) Confirm(ctx context.Context, sid string, userID *uuid.UUID, req ConfirmRequest) (*models.Order, error) {
	if userID == nil {
		return nil, ErrAuthenticationRequired
	}
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	if _, err := s.bridge.OnLogin(ctx, sid, *userID); err != nil {
		return nil, err
	}

	owner, err := cart.Authenticated(*userID)
	if err != nil {
		return nil, err
	}
	c, err := s.engine.Find(ctx, owner)
	if errors.Is(err, cart.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}

	var order models.Order
	err = database.Transaction(ctx, s.db, s.retries, func(tx *gorm.DB) error {
		engine := s.engine.WithTx(tx)
		totals, err := engine.LockedTotals(ctx, c.ID)
		if errors.Is(err, cart.ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(totals.Lines) == 0 {
			return ErrEmptyCart
		}

		order = models.Order{
			UserID:          *userID,
			Status:          models.OrderStatusConfirmed,
			Subtotal:        totals.Subtotal,
			Shipping:        totals.Shipping,
			Total:           totals.Total,
			ShippingAddress: address,
			Items:           make([]models.OrderItem, 0, len(totals.Lines)),
		}
		for _, line := range totals.Lines {
			order.Items = append(order.Items, models.OrderItem{
				ProductID:   line.ProductID,
				ProductName: line.Name,
				UnitPrice:   line.UnitPrice,
				Quantity:    line.Quantity,
				LineTotal:   line.LineTotal,
			})
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return engine.Clear(ctx, c.ID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderPlaced()
	events.Emit(ctx, s.pub, s.log, order.ID.String(), events.TypeOrderPlaced, events.OrderPlaced{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total.StringFixed(2),
		Items:       len(order.Items),
	})
	s.log.Info("order placed", zap.String("order_number", order.OrderNumber), zap.String("user_id", userID.String()))
	return &order, nil
}

// Orders returns the user's order history, newest first.
func (s *Service) Orders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// Order returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *Service) Order(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) userCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	owner, err := cart.Authenticated(userID)
	if err != nil {
		return nil, err
	}
	return s.engine.ResolveOrCreate(ctx, owner)
}
