package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/commerce"
	"github.com/noah-isme/backend-pricing/internal/obs"
)

// Resolver is the single-item pricing contract the orchestrator fans out over.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Result, error)
}

// Orchestrator runs the waterfall across a list of items under a global
// deadline with per-item deadlines, degrading to fallback pricing on partial
// failure. Items are processed sequentially, so ERP call order is
// deterministic and matches input order.
type Orchestrator struct {
	Resolver Resolver
	Commerce commerce.Client
	Logger   zerolog.Logger

	// ItemTimeout bounds one waterfall evaluation; default 30s.
	ItemTimeout time.Duration
	// BatchTimeout bounds the whole batch; default 120s.
	BatchTimeout time.Duration
}

// PriceBatch prices every item for the given customer. The result always has
// exactly one line per input item, in input order, and every line carries a
// source tag. When the global deadline fires the whole batch degrades to
// fallback pricing: each line keeps its original list price tagged
// pricing-error.
func (o *Orchestrator) PriceBatch(ctx context.Context, items []BatchItem, customer BatchCustomer) []BatchLine {
	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, o.batchTimeout())
	defer cancel()

	customer = o.resolveCustomer(batchCtx, customer)

	lines := make([]BatchLine, len(items))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range items {
			lines[i] = o.priceItem(batchCtx, items[i], customer)
		}
	}()

	select {
	case <-done:
		o.observeBatch(start, "ok")
		return lines
	case <-batchCtx.Done():
		o.Logger.Error().
			Int("items", len(items)).
			Dur("elapsed", time.Since(start)).
			Msg("batch_deadline_exceeded")
		if obs.PricingBatchFallbackTotal != nil {
			obs.PricingBatchFallbackTotal.Inc()
		}
		o.observeBatch(start, "fallback")
		return fallbackLines(items)
	}
}

// resolveCustomer fills in the shared monitor id and discount category once
// per batch so per-item resolution never repeats the commerce lookup.
func (o *Orchestrator) resolveCustomer(ctx context.Context, customer BatchCustomer) BatchCustomer {
	if customer.MonitorID != "" || customer.ID == "" || o.Commerce == nil {
		return customer
	}
	profile, err := o.Commerce.CustomerProfile(ctx, customer.ID)
	if err != nil {
		o.Logger.Warn().Err(err).Str("customer_id", customer.ID).Msg("customer_profile_lookup_failed")
		return customer
	}
	customer.MonitorID = profile.MonitorID
	if customer.DiscountCategory == "" {
		customer.DiscountCategory = profile.DiscountCategory
	}
	return customer
}

// priceItem wraps one waterfall call in the per-item deadline. A timeout, a
// resolver error or a panic downgrades this single line to an error-tagged
// fallback entry; sibling items are unaffected.
func (o *Orchestrator) priceItem(ctx context.Context, item BatchItem, customer BatchCustomer) (line BatchLine) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error().Any("panic", r).Str("sku", item.SKU).Msg("pricing_panic_recovered")
			line = fallbackLine(item, errorSource(item))
		}
	}()

	itemCtx, cancel := context.WithTimeout(ctx, o.itemTimeout())
	defer cancel()

	result, err := o.Resolver.Resolve(itemCtx, Request{
		PartID:            item.PartID,
		CustomerMonitorID: customer.MonitorID,
		IsOutletProduct:   item.IsOutletProduct,
		DiscountCategory:  customer.DiscountCategory,
		PartCodeID:        item.PartCodeID,
	})
	if err != nil || itemCtx.Err() != nil {
		if err != nil {
			o.Logger.Warn().Err(err).Str("sku", item.SKU).Msg("item_pricing_failed")
		}
		return fallbackLine(item, errorSource(item))
	}
	if result.Source.IsError() {
		return fallbackLine(item, result.Source)
	}
	return BatchLine{Item: item, Amount: result.Amount, Source: result.Source}
}

func (o *Orchestrator) itemTimeout() time.Duration {
	if o.ItemTimeout > 0 {
		return o.ItemTimeout
	}
	return 30 * time.Second
}

func (o *Orchestrator) batchTimeout() time.Duration {
	if o.BatchTimeout > 0 {
		return o.BatchTimeout
	}
	return 120 * time.Second
}

func (o *Orchestrator) observeBatch(start time.Time, result string) {
	if obs.PricingBatchDuration == nil {
		return
	}
	obs.PricingBatchDuration.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
}

func errorSource(item BatchItem) Source {
	if item.IsOutletProduct {
		return SourceOutletError
	}
	return SourceCustomerError
}

// fallbackLine keeps the item's original list price so the caller always
// receives a usable price line.
func fallbackLine(item BatchItem, source Source) BatchLine {
	amount := item.ListPrice
	return BatchLine{Item: item, Amount: &amount, Source: source}
}

func fallbackLines(items []BatchItem) []BatchLine {
	lines := make([]BatchLine, len(items))
	for i := range items {
		lines[i] = fallbackLine(items[i], SourcePricingError)
	}
	return lines
}
