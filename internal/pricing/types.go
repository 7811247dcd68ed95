package pricing

import "github.com/shopspring/decimal"

// Source records which waterfall step produced a price. It is a closed set so
// downstream consumers can switch exhaustively instead of matching strings.
type Source string

const (
	// SourceOutlet means the outlet price list supplied the amount.
	SourceOutlet Source = "outlet"
	// SourceCustomerSpecific covers direct customer-part overrides and
	// discount-adjusted price-list amounts.
	SourceCustomerSpecific Source = "customer-specific"
	// SourceCustomerPriceList means the customer's assigned price list
	// supplied the amount without adjustment.
	SourceCustomerPriceList Source = "customer-price-list"
	// SourceNoMonitorID means the variant carries no ERP part id.
	SourceNoMonitorID Source = "no-monitor-id"
	// SourceNoPrice means every applicable lookup came back empty.
	SourceNoPrice Source = "no-price"
	// SourceOutletError tags an outlet lookup that failed upstream.
	SourceOutletError Source = "outlet-error"
	// SourceCustomerError tags a customer-path lookup that failed upstream.
	SourceCustomerError Source = "customer-error"
	// SourcePricingError tags lines synthesized after the global batch
	// deadline fired.
	SourcePricingError Source = "pricing-error"
	// SourceNone is the zero value for an unresolved result.
	SourceNone Source = "none"
)

// IsError reports whether the tag marks a failed lookup rather than a
// legitimate "no price exists" outcome.
func (s Source) IsError() bool {
	switch s {
	case SourceOutletError, SourceCustomerError, SourcePricingError:
		return true
	}
	return false
}

// Request is the per-(variant, customer) pricing context fed to the waterfall.
// It is immutable once constructed; all fields are ERP-side identifiers.
type Request struct {
	PartID            string
	CustomerMonitorID string
	IsOutletProduct   bool
	// PriceListID short-circuits the customer lookup when the caller already
	// knows the customer's assigned price list.
	PriceListID      string
	DiscountCategory string
	PartCodeID       string
}

// Result is the outcome of one waterfall evaluation. Amount is nil whenever no
// authoritative price exists; Source always carries a tag.
type Result struct {
	Amount       *decimal.Decimal
	Source       Source
	CurrencyCode string
	ValidTo      string
}

// HasPrice reports whether the result carries a positive, usable amount.
func (r Result) HasPrice() bool {
	return r.Amount != nil && r.Amount.Sign() > 0
}

// BatchItem is one line to be priced. Display metadata is carried through
// untouched for downstream rendering; ListPrice is the storefront price used
// as the safe fallback when resolution fails.
type BatchItem struct {
	VariantID  string
	SKU        string
	Title      string
	Unit       string
	Dimensions string
	ListPrice  decimal.Decimal

	PartID          string
	PartCodeID      string
	IsOutletProduct bool
}

// BatchLine pairs an input item with its resolved price and provenance.
type BatchLine struct {
	Item   BatchItem
	Amount *decimal.Decimal
	Source Source
}

// BatchCustomer identifies the customer a batch is priced for. MonitorID is
// resolved once per batch from the commerce platform when absent.
type BatchCustomer struct {
	ID               string
	MonitorID        string
	DiscountCategory string
}
