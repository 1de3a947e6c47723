package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCartOwnerInvariant is returned when a cart would be written with both or
// neither of its owner columns set.
var ErrCartOwnerInvariant = errors.New("cart must have exactly one owner")

// Cart belongs to exactly one owner: an authenticated user or an anonymous
// session token. The database enforces the same rule with a CHECK constraint.
type Cart struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID       *uuid.UUID `gorm:"type:uuid;uniqueIndex;check:chk_carts_owner,(user_id IS NULL) <> (session_token IS NULL)" json:"user_id,omitempty"`
	User         *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	SessionToken *string    `gorm:"size:64;uniqueIndex" json:"-"`
	Items        []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`
}

func (c *Cart) BeforeSave(tx *gorm.DB) error {
	return c.ValidateOwner()
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ValidateOwner checks the one-owner rule without touching the database.
func (c *Cart) ValidateOwner() error {
	hasUser := c.UserID != nil && *c.UserID != uuid.Nil
	hasToken := c.SessionToken != nil && *c.SessionToken != ""
	if hasUser == hasToken {
		return ErrCartOwnerInvariant
	}
	return nil
}

// IsAnonymous reports whether the cart is keyed by a session token.
func (c *Cart) IsAnonymous() bool {
	return c.SessionToken != nil
}

// CartItem is one product line in a cart. Quantity is always at least one;
// a line that would drop to zero is deleted instead.
type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CartID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_cart_product,priority:1" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_cart_product,priority:2;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int       `gorm:"not null;check:quantity >= 1" json:"quantity"`
	AddedAt   time.Time `gorm:"not null" json:"added_at"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.AddedAt.IsZero() {
		i.AddedAt = time.Now()
	}
	return nil
}
