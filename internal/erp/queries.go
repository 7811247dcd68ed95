package erp

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Entity collection paths on the ERP read API.
const (
	EntitySalesPrices       = "Sales/SalesPrices"
	EntityCustomerPartLinks = "Sales/CustomerPartLinks"
	EntityCustomers         = "Sales/Customers"
	EntityPartCodeDiscounts = "Sales/PartCodeDiscounts"
)

// SalesPrice is one row of the ERP sales-price collection. The ERP owns the
// validity window; this service only reads it through.
type SalesPrice struct {
	PartID       string          `json:"PartId"`
	PriceListID  string          `json:"PriceListId"`
	Price        decimal.Decimal `json:"Price"`
	CurrencyCode string          `json:"CurrencyCode"`
	ValidFrom    string          `json:"ValidFrom"`
	ValidTo      string          `json:"ValidTo"`
}

// CustomerPartLink is a direct (customer, part) price association. It takes
// precedence over any price list.
type CustomerPartLink struct {
	CustomerID string          `json:"CustomerId"`
	PartID     string          `json:"PartId"`
	Price      decimal.Decimal `json:"Price"`
}

// Customer is the subset of the ERP customer record the waterfall needs.
type Customer struct {
	ID               string `json:"Id"`
	PriceListID      string `json:"PriceListId"`
	DiscountCategory string `json:"DiscountCategory"`
}

// PartCodeDiscount is a discount row keyed by (discount category, part code).
type PartCodeDiscount struct {
	DiscountCategory string          `json:"DiscountCategory"`
	PartCodeID       string          `json:"PartCodeId"`
	Discount1        decimal.Decimal `json:"Discount1"`
}

// SalesPrices returns the sales-price rows for a part on a given price list.
func (c *Client) SalesPrices(ctx context.Context, partID, priceListID string) ([]SalesPrice, error) {
	filter := fmt.Sprintf("PartId eq '%s' and PriceListId eq '%s'",
		EscapeFilterValue(partID), EscapeFilterValue(priceListID))
	var rows []SalesPrice
	if err := c.QueryRows(ctx, EntitySalesPrices, filter, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CustomerPartLinks returns direct price links between a customer and a part.
func (c *Client) CustomerPartLinks(ctx context.Context, customerID, partID string) ([]CustomerPartLink, error) {
	filter := fmt.Sprintf("CustomerId eq '%s' and PartId eq '%s'",
		EscapeFilterValue(customerID), EscapeFilterValue(partID))
	var rows []CustomerPartLink
	if err := c.QueryRows(ctx, EntityCustomerPartLinks, filter, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CustomerByID fetches a single customer record, or nil when not found.
func (c *Client) CustomerByID(ctx context.Context, customerID string) (*Customer, error) {
	filter := fmt.Sprintf("Id eq '%s'", EscapeFilterValue(customerID))
	var rows []Customer
	if err := c.QueryRows(ctx, EntityCustomers, filter, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// PartCodeDiscountFor fetches the discount row for a (category, part code)
// pair, or nil when no row exists.
func (c *Client) PartCodeDiscountFor(ctx context.Context, discountCategory, partCodeID string) (*PartCodeDiscount, error) {
	filter := fmt.Sprintf("DiscountCategory eq '%s' and PartCodeId eq '%s'",
		EscapeFilterValue(discountCategory), EscapeFilterValue(partCodeID))
	var rows []PartCodeDiscount
	if err := c.QueryRows(ctx, EntityPartCodeDiscounts, filter, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
