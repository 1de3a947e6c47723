package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-backend/cart"
	"storefront-backend/events"
)

const tokenKeyPrefix = "cart_token:"

func tokenKey(sid string) string { return tokenKeyPrefix + sid }

// Bridge maps a request's identity to a cart owner and performs the one
// time merge of the anonymous cart when the client logs in.
type Bridge struct {
	store  Store
	engine *cart.Engine
	pub    events.Publisher
	log    *zap.Logger
}

func NewBridge(store Store, engine *cart.Engine, pub events.Publisher, log *zap.Logger) *Bridge {
	return &Bridge{store: store, engine: engine, pub: pub, log: log.Named("session")}
}

// Owner resolves the cart owner for a request. Authenticated users own by
// user id. Anonymous clients own by a token kept in their session, minted
// on first use.
func (b *Bridge) Owner(ctx context.Context, sid string, userID *uuid.UUID) (cart.Owner, error) {
	if userID != nil {
		return cart.Authenticated(*userID)
	}
	if sid == "" {
		return cart.Owner{}, errors.New("session: missing session id")
	}

	key := tokenKey(sid)
	token, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return cart.Owner{}, err
	}
	if !ok {
		fresh, err := NewToken()
		if err != nil {
			return cart.Owner{}, fmt.Errorf("session: mint token: %w", err)
		}
		stored, err := b.store.SetIfAbsent(ctx, key, fresh)
		if err != nil {
			return cart.Owner{}, err
		}
		token = fresh
		if !stored {
			// A parallel request minted first; use its token.
			if token, ok, err = b.store.Get(ctx, key); err != nil {
				return cart.Owner{}, err
			} else if !ok {
				return cart.Owner{}, errors.New("session: token vanished")
			}
		}
	}
	return cart.Anonymous(token)
}

// LoginMerge reports the outcome of OnLogin.
type LoginMerge struct {
	Merged bool
	cart.MergeResult
}

// OnLogin merges the session's anonymous cart into the user's cart and then
// forgets the token, so later requests never merge again. If the merge
// fails the token is kept and the next login retries.
func (b *Bridge) OnLogin(ctx context.Context, sid string, userID uuid.UUID) (LoginMerge, error) {
	userOwner, err := cart.Authenticated(userID)
	if err != nil {
		return LoginMerge{}, err
	}
	if sid == "" {
		return LoginMerge{}, nil
	}

	key := tokenKey(sid)
	token, ok, err := b.store.Get(ctx, key)
	if err != nil || !ok {
		return LoginMerge{}, err
	}

	anonOwner, err := cart.Anonymous(token)
	if err != nil {
		return LoginMerge{}, b.store.Delete(ctx, key)
	}
	source, err := b.engine.Find(ctx, anonOwner)
	if errors.Is(err, cart.ErrNotFound) {
		return LoginMerge{}, b.store.Delete(ctx, key)
	}
	if err != nil {
		return LoginMerge{}, err
	}

	target, err := b.engine.ResolveOrCreate(ctx, userOwner)
	if err != nil {
		return LoginMerge{}, err
	}
	res, err := b.engine.MergeInto(ctx, target.ID, source.ID)
	switch {
	case errors.Is(err, cart.ErrNotFound):
		// Merged by a concurrent login for the same session.
		return LoginMerge{}, b.store.Delete(ctx, key)
	case err != nil:
		b.log.Error("anonymous cart merge failed", zap.String("user_id", userID.String()), zap.Error(err))
		return LoginMerge{}, err
	}

	if err := b.store.Delete(ctx, key); err != nil {
		b.log.Warn("failed to clear merged cart token", zap.Error(err))
	}

	events.Emit(ctx, b.pub, b.log, target.ID.String(), events.TypeCartMerged, events.CartMerged{
		UserID:       userID,
		TargetCartID: res.TargetID,
		SourceCartID: res.SourceID,
		Moved:        res.Moved,
		Combined:     res.Combined,
	})
	b.log.Info("anonymous cart merged",
		zap.String("user_id", userID.String()),
		zap.Int("moved", res.Moved),
		zap.Int("combined", res.Combined),
	)
	return LoginMerge{Merged: true, MergeResult: res}, nil
}
