package pricing

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pricing/internal/erp"
)

// PriceSources abstracts the three independent ERP price lookups consumed by
// the waterfall. Each returns (amount, found, err); a lookup that completes
// but matches nothing reports found=false with a nil error.
type PriceSources interface {
	OutletPrice(ctx context.Context, partID string) (decimal.Decimal, bool, error)
	CustomerPartOverride(ctx context.Context, customerMonitorID, partID string) (decimal.Decimal, bool, error)
	CustomerPriceListPrice(ctx context.Context, customerMonitorID, partID, priceListID string) (decimal.Decimal, bool, error)
}

// ERPSources resolves prices against the ERP read API.
type ERPSources struct {
	ERP               *erp.Client
	OutletPriceListID string
	Cache             *Cache
	Logger            zerolog.Logger
}

// OutletPrice looks up the clearance price list for the part. The first
// matching row wins.
func (s *ERPSources) OutletPrice(ctx context.Context, partID string) (decimal.Decimal, bool, error) {
	rows, err := s.ERP.SalesPrices(ctx, partID, s.OutletPriceListID)
	if err != nil {
		return decimal.Zero, false, err
	}
	return firstPrice(rows)
}

// CustomerPartOverride looks up a direct (customer, part) price association.
func (s *ERPSources) CustomerPartOverride(ctx context.Context, customerMonitorID, partID string) (decimal.Decimal, bool, error) {
	rows, err := s.ERP.CustomerPartLinks(ctx, customerMonitorID, partID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if len(rows) == 0 {
		return decimal.Zero, false, nil
	}
	return rows[0].Price, true, nil
}

// CustomerPriceListPrice resolves the customer's assigned price list and looks
// the part up on it. Any missing link in the chain (customer not found, no
// price list assigned, no matching row) reports not-found without an error.
func (s *ERPSources) CustomerPriceListPrice(ctx context.Context, customerMonitorID, partID, priceListID string) (decimal.Decimal, bool, error) {
	if priceListID == "" {
		var err error
		priceListID, err = s.customerPriceListID(ctx, customerMonitorID)
		if err != nil {
			return decimal.Zero, false, err
		}
		if priceListID == "" {
			return decimal.Zero, false, nil
		}
	}
	rows, err := s.ERP.SalesPrices(ctx, partID, priceListID)
	if err != nil {
		return decimal.Zero, false, err
	}
	return firstPrice(rows)
}

// customerPriceListID fetches the customer's price list assignment, memoized
// through the short-TTL cache to avoid one extra ERP round trip per item.
func (s *ERPSources) customerPriceListID(ctx context.Context, customerMonitorID string) (string, error) {
	key := keyCustomerPriceList(customerMonitorID)
	var cached string
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err != nil {
		s.Logger.Warn().Err(err).Msg("pricing_cache_read_failed")
	} else if hit {
		return cached, nil
	}

	customer, err := s.ERP.CustomerByID(ctx, customerMonitorID)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", nil
	}
	if err := s.Cache.SetJSON(ctx, key, customer.PriceListID); err != nil {
		s.Logger.Warn().Err(err).Msg("pricing_cache_write_failed")
	}
	return customer.PriceListID, nil
}

func firstPrice(rows []erp.SalesPrice) (decimal.Decimal, bool, error) {
	if len(rows) == 0 {
		return decimal.Zero, false, nil
	}
	return rows[0].Price, true, nil
}
