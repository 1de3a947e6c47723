package cart

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront-backend/models"
)

// Owner identifies whose cart a request operates on: either an
// authenticated user or an anonymous session token, never both.
type Owner struct {
	userID uuid.UUID
	token  string
}

func Authenticated(userID uuid.UUID) (Owner, error) {
	if userID == uuid.Nil {
		return Owner{}, ErrOwnerInvariant
	}
	return Owner{userID: userID}, nil
}

func Anonymous(token string) (Owner, error) {
	if token == "" {
		return Owner{}, ErrOwnerInvariant
	}
	return Owner{token: token}, nil
}

func (o Owner) IsAnonymous() bool { return o.token != "" }

func (o Owner) UserID() (uuid.UUID, bool) { return o.userID, o.userID != uuid.Nil }

func (o Owner) Token() (string, bool) { return o.token, o.token != "" }

// String never includes the anonymous token, which is a capability secret.
func (o Owner) String() string {
	switch {
	case o.valid() && o.IsAnonymous():
		return "anonymous"
	case o.valid():
		return "user:" + o.userID.String()
	default:
		return "invalid"
	}
}

func (o Owner) valid() bool {
	return (o.userID != uuid.Nil) != (o.token != "")
}

func (o Owner) newCart() models.Cart {
	if o.IsAnonymous() {
		token := o.token
		return models.Cart{SessionToken: &token}
	}
	id := o.userID
	return models.Cart{UserID: &id}
}

func (o Owner) where(db *gorm.DB) *gorm.DB {
	if o.IsAnonymous() {
		return db.Where("session_token = ?", o.token)
	}
	return db.Where("user_id = ?", o.userID)
}
