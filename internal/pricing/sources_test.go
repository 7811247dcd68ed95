package pricing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/erp"
)

func TestERPSourcesOutletPrice(t *testing.T) {
	client, _ := newTestERP(t, func(entity string) (string, int) {
		assert.Equal(t, erp.EntitySalesPrices, entity)
		return `[{"PartId":"P1","PriceListId":"OUTLET","Price":49.5,"CurrencyCode":"SEK"}]`, 0
	})
	sources := &ERPSources{ERP: client, OutletPriceListID: "OUTLET", Logger: zerolog.Nop()}

	amount, found, err := sources.OutletPrice(context.Background(), "P1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "49.5", amount.String())
}

func TestERPSourcesOverrideNotFound(t *testing.T) {
	client, _ := newTestERP(t, func(string) (string, int) { return "[]", 0 })
	sources := &ERPSources{ERP: client, Logger: zerolog.Nop()}

	_, found, err := sources.CustomerPartOverride(context.Background(), "C1", "P1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestERPSourcesPriceListChain(t *testing.T) {
	client, queries := newTestERP(t, func(entity string) (string, int) {
		switch entity {
		case erp.EntityCustomers:
			return `[{"Id":"C1","PriceListId":"PL3"}]`, 0
		case erp.EntitySalesPrices:
			return `[{"PartId":"P1","PriceListId":"PL3","Price":129}]`, 0
		}
		return "[]", 0
	})
	sources := &ERPSources{ERP: client, Cache: newTestCache(t), Logger: zerolog.Nop()}

	amount, found, err := sources.CustomerPriceListPrice(context.Background(), "C1", "P1", "")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "129", amount.String())
	require.EqualValues(t, 2, queries.Load())

	// the customer's price-list id is memoized: the second resolution only
	// queries the price rows
	_, _, err = sources.CustomerPriceListPrice(context.Background(), "C1", "P2", "")
	require.NoError(t, err)
	require.EqualValues(t, 3, queries.Load())
}

func TestERPSourcesPriceListSkipsCustomerLookupWhenKnown(t *testing.T) {
	client, queries := newTestERP(t, func(entity string) (string, int) {
		assert.Equal(t, erp.EntitySalesPrices, entity)
		return `[{"PartId":"P1","PriceListId":"PL9","Price":80}]`, 0
	})
	sources := &ERPSources{ERP: client, Logger: zerolog.Nop()}

	amount, found, err := sources.CustomerPriceListPrice(context.Background(), "C1", "P1", "PL9")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "80", amount.String())
	require.EqualValues(t, 1, queries.Load())
}

func TestERPSourcesUnknownCustomerIsNotFound(t *testing.T) {
	client, _ := newTestERP(t, func(string) (string, int) { return "[]", 0 })
	sources := &ERPSources{ERP: client, Logger: zerolog.Nop()}

	_, found, err := sources.CustomerPriceListPrice(context.Background(), "ghost", "P1", "")
	require.NoError(t, err)
	require.False(t, found)
}
