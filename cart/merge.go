package cart

import (
	"bytes"
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront-backend/models"
)

// MergeResult describes what a merge did.
type MergeResult struct {
	TargetID uuid.UUID
	SourceID uuid.UUID
	Moved    int // lines re-parented to the target
	Combined int // lines summed into an existing target line
}

// MergeInto moves every line of source into target and deletes source.
// Lines for a product the target already holds are summed; other lines
// change owner. Stock is not touched because the units stay reserved. Both
// carts are locked in id order so concurrent merges cannot deadlock, and the
// whole merge commits or rolls back as one unit.
func (e *Engine) MergeInto(ctx context.Context, targetID, sourceID uuid.UUID) (res MergeResult, err error) {
	defer func() {
		e.observe("merge", err)
		if err == nil {
			e.metrics.MergedItems(res.Moved + res.Combined)
		}
	}()
	if targetID == sourceID {
		return MergeResult{}, ErrInvalidMerge
	}

	err = e.transaction(ctx, func(tx *gorm.DB) error {
		res = MergeResult{TargetID: targetID, SourceID: sourceID}

		first, second := targetID, sourceID
		if bytes.Compare(second[:], first[:]) < 0 {
			first, second = second, first
		}
		if _, err := lockCart(tx, first); err != nil {
			return err
		}
		if _, err := lockCart(tx, second); err != nil {
			return err
		}

		var lines []models.CartItem
		if err := tx.Where("cart_id = ?", sourceID).Order("product_id ASC").Find(&lines).Error; err != nil {
			return err
		}

		for _, line := range lines {
			var existing models.CartItem
			err := tx.Where("cart_id = ? AND product_id = ?", targetID, line.ProductID).Take(&existing).Error
			switch {
			case err == nil:
				if err := tx.Model(&existing).UpdateColumn("quantity", gorm.Expr("quantity + ?", line.Quantity)).Error; err != nil {
					return err
				}
				if err := tx.Delete(&models.CartItem{}, "id = ?", line.ID).Error; err != nil {
					return err
				}
				res.Combined++
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Model(&models.CartItem{}).Where("id = ?", line.ID).UpdateColumn("cart_id", targetID).Error; err != nil {
					return err
				}
				res.Moved++
			default:
				return err
			}
		}

		if err := tx.Delete(&models.Cart{}, "id = ?", sourceID).Error; err != nil {
			return err
		}
		return touch(tx, targetID)
	})
	if err != nil {
		return MergeResult{}, err
	}
	return res, nil
}
