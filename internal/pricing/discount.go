package pricing

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pricing/internal/erp"
)

// Adjuster scales a price-list amount by a customer's discount category.
type Adjuster interface {
	Apply(ctx context.Context, amount decimal.Decimal, discountCategory, partCodeID string) decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// DiscountAdjuster applies the ERP's discount-category multiplier to a
// price-list amount for a given part classification.
type DiscountAdjuster struct {
	ERP    *erp.Client
	Cache  *Cache
	Logger zerolog.Logger
}

// Apply returns amount × Discount1/100 when a positive discount percentage
// exists for (discountCategory, partCodeID), and the input unchanged
// otherwise. The stored percentage is a multiplier, not a deduction: a row
// with Discount1=75 prices a 200 list amount at 150. A lookup failure leaves
// the amount unchanged so the waterfall can still return the list price.
func (d *DiscountAdjuster) Apply(ctx context.Context, amount decimal.Decimal, discountCategory, partCodeID string) decimal.Decimal {
	if discountCategory == "" || partCodeID == "" {
		return amount
	}
	pct, ok := d.discountPercentage(ctx, discountCategory, partCodeID)
	if !ok || pct.Sign() <= 0 {
		return amount
	}
	return amount.Mul(pct).Div(oneHundred)
}

func (d *DiscountAdjuster) discountPercentage(ctx context.Context, discountCategory, partCodeID string) (decimal.Decimal, bool) {
	key := keyDiscountRow(discountCategory, partCodeID)
	var cached string
	if hit, err := d.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		pct, err := decimal.NewFromString(cached)
		if err == nil {
			return pct, true
		}
	}

	row, err := d.ERP.PartCodeDiscountFor(ctx, discountCategory, partCodeID)
	if err != nil {
		d.Logger.Warn().Err(err).
			Str("discount_category", discountCategory).
			Str("part_code_id", partCodeID).
			Msg("discount_lookup_failed")
		return decimal.Zero, false
	}
	if row == nil {
		return decimal.Zero, false
	}
	if err := d.Cache.SetJSON(ctx, key, row.Discount1.String()); err != nil {
		d.Logger.Warn().Err(err).Msg("pricing_cache_write_failed")
	}
	return row.Discount1, true
}
