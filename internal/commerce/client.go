package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pricing/internal/resilience"
)

// CustomerProfile carries the ERP-facing identifiers stored on a commerce
// platform customer via custom fields.
type CustomerProfile struct {
	MonitorID        string
	DiscountCategory string
}

// VariantInfo carries the ERP part linkage and outlet flag for one variant.
// Outlet status is derived from collection membership on the platform side.
type VariantInfo struct {
	PartID     string
	PartCodeID string
	IsOutlet   bool
}

// Client abstracts the read-only commerce platform lookups the pricing core
// depends on.
type Client interface {
	CustomerProfile(ctx context.Context, customerID string) (CustomerProfile, error)
	VariantInfo(ctx context.Context, variantID string) (VariantInfo, error)
}

const customerProfileQuery = `query customerPricing($id: ID!) {
  customer(id: $id) {
    monitorId: metafield(namespace: "erp", key: "monitor_id") { value }
    discountCategory: metafield(namespace: "erp", key: "discount_category") { value }
  }
}`

const variantInfoQuery = `query variantPricing($id: ID!) {
  productVariant(id: $id) {
    partId: metafield(namespace: "erp", key: "part_id") { value }
    partCodeId: metafield(namespace: "erp", key: "part_code_id") { value }
    product {
      inOutlet: inCollection(handle: "outlet")
    }
  }
}`

// GraphQLClient talks to the commerce platform Admin GraphQL API.
type GraphQLClient struct {
	Endpoint string
	Token    string
	HTTP     resilience.HTTPClient
	Logger   zerolog.Logger
}

type metafield struct {
	Value string `json:"value"`
}

// CustomerProfile resolves the customer's ERP monitor id and discount category.
func (c *GraphQLClient) CustomerProfile(ctx context.Context, customerID string) (CustomerProfile, error) {
	var out struct {
		Customer *struct {
			MonitorID        *metafield `json:"monitorId"`
			DiscountCategory *metafield `json:"discountCategory"`
		} `json:"customer"`
	}
	if err := c.query(ctx, customerProfileQuery, map[string]any{"id": customerID}, &out); err != nil {
		return CustomerProfile{}, err
	}
	if out.Customer == nil {
		return CustomerProfile{}, nil
	}
	profile := CustomerProfile{}
	if out.Customer.MonitorID != nil {
		profile.MonitorID = out.Customer.MonitorID.Value
	}
	if out.Customer.DiscountCategory != nil {
		profile.DiscountCategory = out.Customer.DiscountCategory.Value
	}
	return profile, nil
}

// VariantInfo resolves the variant's ERP part linkage and outlet membership.
func (c *GraphQLClient) VariantInfo(ctx context.Context, variantID string) (VariantInfo, error) {
	var out struct {
		ProductVariant *struct {
			PartID     *metafield `json:"partId"`
			PartCodeID *metafield `json:"partCodeId"`
			Product    *struct {
				InOutlet bool `json:"inOutlet"`
			} `json:"product"`
		} `json:"productVariant"`
	}
	if err := c.query(ctx, variantInfoQuery, map[string]any{"id": variantID}, &out); err != nil {
		return VariantInfo{}, err
	}
	if out.ProductVariant == nil {
		return VariantInfo{}, nil
	}
	info := VariantInfo{}
	if out.ProductVariant.PartID != nil {
		info.PartID = out.ProductVariant.PartID.Value
	}
	if out.ProductVariant.PartCodeID != nil {
		info.PartCodeID = out.ProductVariant.PartCodeID.Value
	}
	if out.ProductVariant.Product != nil {
		info.IsOutlet = out.ProductVariant.Product.InOutlet
	}
	return info, nil
}

func (c *GraphQLClient) query(ctx context.Context, query string, variables map[string]any, dst any) error {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("commerce: marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("commerce: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("X-Access-Token", c.Token)
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commerce: query returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("commerce: read response: %w", err)
	}
	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("commerce: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("commerce: query failed: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return fmt.Errorf("commerce: decode data: %w", err)
	}
	return nil
}

// MockClient returns static lookups and is useful for testing and development.
type MockClient struct {
	Profiles map[string]CustomerProfile
	Variants map[string]VariantInfo
}

// CustomerProfile returns the canned profile for the customer id, if any.
func (m MockClient) CustomerProfile(_ context.Context, customerID string) (CustomerProfile, error) {
	return m.Profiles[customerID], nil
}

// VariantInfo returns the canned variant info for the variant id, if any.
func (m MockClient) VariantInfo(_ context.Context, variantID string) (VariantInfo, error) {
	return m.Variants[variantID], nil
}
