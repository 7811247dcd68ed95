package pricing

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pricing/internal/obs"
)

// Waterfall orders the price sources into the authoritative per-(variant,
// customer) pricing decision. Resolution is deterministic and performs no
// retries of its own; the session layer already retries once on 401.
type Waterfall struct {
	Sources  PriceSources
	Discount Adjuster
	Logger   zerolog.Logger
}

// Resolve walks the waterfall for one pricing context. The returned error is
// non-nil only for authentication failures that single-item callers (checkout)
// must surface; every other failure is folded into the result's source tag.
// Amounts less than or equal to zero are treated as "not found" at every step.
func (wf *Waterfall) Resolve(ctx context.Context, req Request) (Result, error) {
	result, err := wf.resolve(ctx, req)
	if obs.PricingResolutionsTotal != nil {
		obs.PricingResolutionsTotal.WithLabelValues(string(result.Source)).Inc()
	}
	return result, err
}

func (wf *Waterfall) resolve(ctx context.Context, req Request) (Result, error) {
	if req.PartID == "" {
		return Result{Source: SourceNoMonitorID}, nil
	}

	if req.IsOutletProduct {
		return wf.resolveOutlet(ctx, req), nil
	}

	if req.CustomerMonitorID == "" {
		return Result{Source: SourceNoPrice}, nil
	}
	return wf.resolveCustomer(ctx, req)
}

// resolveOutlet never returns an error: outlet lookups degrade to an
// outlet-error tag so batch callers can continue to fallback pricing.
func (wf *Waterfall) resolveOutlet(ctx context.Context, req Request) Result {
	amount, found, err := wf.Sources.OutletPrice(ctx, req.PartID)
	if err != nil {
		wf.Logger.Warn().Err(err).Str("part_id", req.PartID).Msg("outlet_lookup_failed")
		return Result{Source: SourceOutletError}
	}
	if !found || amount.Sign() <= 0 {
		return Result{Source: SourceNoPrice}
	}
	return Result{Amount: &amount, Source: SourceOutlet}
}

func (wf *Waterfall) resolveCustomer(ctx context.Context, req Request) (Result, error) {
	amount, found, err := wf.Sources.CustomerPartOverride(ctx, req.CustomerMonitorID, req.PartID)
	if err != nil {
		return wf.customerError(req, "override_lookup_failed", err)
	}
	if found && amount.Sign() > 0 {
		return Result{Amount: &amount, Source: SourceCustomerSpecific}, nil
	}

	amount, found, err = wf.Sources.CustomerPriceListPrice(ctx, req.CustomerMonitorID, req.PartID, req.PriceListID)
	if err != nil {
		return wf.customerError(req, "price_list_lookup_failed", err)
	}
	if !found || amount.Sign() <= 0 {
		return Result{Source: SourceNoPrice}, nil
	}

	if req.DiscountCategory != "" && req.PartCodeID != "" {
		adjusted := wf.applyDiscount(ctx, amount, req)
		return Result{Amount: &adjusted, Source: SourceCustomerSpecific}, nil
	}
	return Result{Amount: &amount, Source: SourceCustomerPriceList}, nil
}

func (wf *Waterfall) applyDiscount(ctx context.Context, amount decimal.Decimal, req Request) decimal.Decimal {
	if wf.Discount == nil {
		return amount
	}
	return wf.Discount.Apply(ctx, amount, req.DiscountCategory, req.PartCodeID)
}

func (wf *Waterfall) customerError(req Request, msg string, err error) (Result, error) {
	wf.Logger.Warn().Err(err).
		Str("part_id", req.PartID).
		Str("customer_monitor_id", req.CustomerMonitorID).
		Msg(msg)
	return Result{Source: SourceCustomerError}, err
}
