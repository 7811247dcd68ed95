package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/resilience"
)

func newGraphQLServer(t *testing.T, respond func(query string, variables map[string]any) string) (*httptest.Server, *GraphQLClient) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-123", r.Header.Get("X-Access-Token"))
		var payload struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(payload.Query, payload.Variables)))
	}))
	t.Cleanup(srv.Close)

	client := &GraphQLClient{
		Endpoint: srv.URL,
		Token:    "token-123",
		HTTP:     resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		Logger:   zerolog.Nop(),
	}
	return srv, client
}

func TestGraphQLCustomerProfile(t *testing.T) {
	_, client := newGraphQLServer(t, func(query string, variables map[string]any) string {
		assert.Contains(t, query, "customer(id: $id)")
		assert.Equal(t, "cust-1", variables["id"])
		return `{"data":{"customer":{
			"monitorId":{"value":"M55"},
			"discountCategory":{"value":"DC2"}
		}}}`
	})

	profile, err := client.CustomerProfile(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Equal(t, "M55", profile.MonitorID)
	require.Equal(t, "DC2", profile.DiscountCategory)
}

func TestGraphQLCustomerWithoutMetafields(t *testing.T) {
	_, client := newGraphQLServer(t, func(string, map[string]any) string {
		return `{"data":{"customer":{"monitorId":null,"discountCategory":null}}}`
	})

	profile, err := client.CustomerProfile(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Empty(t, profile.MonitorID)
	require.Empty(t, profile.DiscountCategory)
}

func TestGraphQLUnknownCustomer(t *testing.T) {
	_, client := newGraphQLServer(t, func(string, map[string]any) string {
		return `{"data":{"customer":null}}`
	})

	profile, err := client.CustomerProfile(context.Background(), "ghost")
	require.NoError(t, err)
	require.Equal(t, CustomerProfile{}, profile)
}

func TestGraphQLVariantInfo(t *testing.T) {
	_, client := newGraphQLServer(t, func(query string, variables map[string]any) string {
		assert.Contains(t, query, "productVariant(id: $id)")
		assert.Equal(t, "var-9", variables["id"])
		return `{"data":{"productVariant":{
			"partId":{"value":"P9"},
			"partCodeId":{"value":"PC4"},
			"product":{"inOutlet":true}
		}}}`
	})

	info, err := client.VariantInfo(context.Background(), "var-9")
	require.NoError(t, err)
	require.Equal(t, "P9", info.PartID)
	require.Equal(t, "PC4", info.PartCodeID)
	require.True(t, info.IsOutlet)
}

func TestGraphQLErrorsSurface(t *testing.T) {
	_, client := newGraphQLServer(t, func(string, map[string]any) string {
		return `{"errors":[{"message":"throttled"}]}`
	})

	_, err := client.CustomerProfile(context.Background(), "cust-1")
	require.ErrorContains(t, err, "throttled")
}

func TestGraphQLNon200Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := &GraphQLClient{
		Endpoint: srv.URL,
		HTTP:     resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		Logger:   zerolog.Nop(),
	}
	_, err := client.VariantInfo(context.Background(), "var-1")
	require.Error(t, err)
}
