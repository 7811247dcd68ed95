package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pricing/internal/commerce"
	"github.com/noah-isme/backend-pricing/internal/erp"
)

func doResolve(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/prices/resolve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var out struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error.Code, out.Error.Message
}

func TestResolveHandlerReturnsPrice(t *testing.T) {
	h := &Handler{
		Resolver: resolverFunc(func(_ context.Context, req Request) (Result, error) {
			require.Equal(t, "P1", req.PartID)
			require.Equal(t, "M1", req.CustomerMonitorID)
			amount := decimal.RequireFromString("149.50")
			return Result{Amount: &amount, Source: SourceCustomerSpecific, CurrencyCode: "SEK"}, nil
		}),
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}

	rec := doResolve(t, h, `{"partId":"P1","customerMonitorId":"M1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data struct {
			Amount   *string `json:"amount"`
			Source   string  `json:"source"`
			Currency string  `json:"currency"`
			Note     string  `json:"note"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.Data.Amount)
	require.Equal(t, "149.50", *out.Data.Amount)
	require.Equal(t, string(SourceCustomerSpecific), out.Data.Source)
	require.Equal(t, "SEK", out.Data.Currency)
	require.Empty(t, out.Data.Note)
}

func TestResolveHandlerNoPriceCarriesNote(t *testing.T) {
	h := &Handler{
		Resolver: resolverFunc(func(_ context.Context, _ Request) (Result, error) {
			return Result{Source: SourceNoPrice}, nil
		}),
		Logger: zerolog.Nop(),
	}

	rec := doResolve(t, h, `{"partId":"P1","customerMonitorId":"M1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data struct {
			Amount *string `json:"amount"`
			Source string  `json:"source"`
			Note   string  `json:"note"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Nil(t, out.Data.Amount)
	require.Equal(t, string(SourceNoPrice), out.Data.Source)
	require.Equal(t, PricingUnavailableNote, out.Data.Note)
}

func TestResolveHandlerFillsIdentifiersFromCommerce(t *testing.T) {
	var got Request
	h := &Handler{
		Resolver: resolverFunc(func(_ context.Context, req Request) (Result, error) {
			got = req
			amount := decimal.NewFromInt(10)
			return Result{Amount: &amount, Source: SourceCustomerPriceList}, nil
		}),
		Commerce: commerce.MockClient{
			Profiles: map[string]commerce.CustomerProfile{
				"cust-1": {MonitorID: "M9", DiscountCategory: "DC3"},
			},
			Variants: map[string]commerce.VariantInfo{
				"var-1": {PartID: "P77", PartCodeID: "PC5", IsOutlet: true},
			},
		},
		Logger: zerolog.Nop(),
	}

	rec := doResolve(t, h, `{"variantId":"var-1","customerId":"cust-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "P77", got.PartID)
	require.Equal(t, "PC5", got.PartCodeID)
	require.True(t, got.IsOutletProduct)
	require.Equal(t, "M9", got.CustomerMonitorID)
	require.Equal(t, "DC3", got.DiscountCategory)
}

func TestResolveHandlerCheckoutRequiresCustomer(t *testing.T) {
	h := &Handler{
		Resolver: resolverFunc(func(_ context.Context, _ Request) (Result, error) {
			t.Error("resolver must not run")
			return Result{}, nil
		}),
		Logger: zerolog.Nop(),
	}

	rec := doResolve(t, h, `{"partId":"P1","checkout":true}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, _ := decodeError(t, rec)
	require.Equal(t, "VALIDATION_ERROR", code)
}

func TestResolveHandlerCheckoutOutletNeedsNoCustomer(t *testing.T) {
	h := &Handler{
		Resolver: resolverFunc(func(_ context.Context, _ Request) (Result, error) {
			amount := decimal.NewFromInt(25)
			return Result{Amount: &amount, Source: SourceOutlet}, nil
		}),
		Logger: zerolog.Nop(),
	}

	rec := doResolve(t, h, `{"partId":"P1","isOutletProduct":true,"checkout":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveHandlerCheckoutRejectsMissingPrice(t *testing.T) {
	h := &Handler{
		Resolver: resolverFunc(func(_ context.Context, _ Request) (Result, error) {
			return Result{Source: SourceNoPrice}, nil
		}),
		Logger: zerolog.Nop(),
	}

	rec := doResolve(t, h, `{"partId":"P1","customerMonitorId":"M1","checkout":true}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, message := decodeError(t, rec)
	require.Equal(t, "VALIDATION_ERROR", code)
	require.Contains(t, message, "checkout")
}

func TestResolveHandlerAuthFailure(t *testing.T) {
	h := &Handler{
		Resolver: resolverFunc(func(_ context.Context, _ Request) (Result, error) {
			return Result{Source: SourceCustomerError}, erp.ErrAuthFailed
		}),
		Logger: zerolog.Nop(),
	}

	rec := doResolve(t, h, `{"partId":"P1","customerMonitorId":"M1"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	code, _ := decodeError(t, rec)
	require.Equal(t, "AUTH_ERROR", code)
}

func TestResolveHandlerBadBody(t *testing.T) {
	h := &Handler{Resolver: resolverFunc(func(_ context.Context, _ Request) (Result, error) {
		return Result{}, nil
	}), Logger: zerolog.Nop()}

	rec := doResolve(t, h, `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchHandler(t *testing.T) {
	h := &Handler{
		Orchestrator: &Orchestrator{
			Resolver: resolverFunc(func(_ context.Context, req Request) (Result, error) {
				if req.PartID == "P2" {
					return Result{Source: SourceCustomerError}, nil
				}
				amount := decimal.NewFromInt(90)
				return Result{Amount: &amount, Source: SourceCustomerPriceList}, nil
			}),
			Logger: zerolog.Nop(),
		},
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}

	body := `{"customerMonitorId":"M1","items":[
		{"sku":"SKU-1","partId":"P1","listPrice":100,"title":"Widget"},
		{"sku":"SKU-2","partId":"P2","listPrice":200}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/prices/batch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Batch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "batch pricing always answers 200")

	var out struct {
		Data struct {
			Lines []struct {
				SKU    string  `json:"sku"`
				Title  string  `json:"title"`
				Amount *string `json:"amount"`
				Source string  `json:"source"`
				Note   string  `json:"note"`
			} `json:"lines"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data.Lines, 2)

	first := out.Data.Lines[0]
	require.Equal(t, "SKU-1", first.SKU)
	require.Equal(t, "Widget", first.Title)
	require.Equal(t, "90", *first.Amount)
	require.Empty(t, first.Note)

	second := out.Data.Lines[1]
	require.Equal(t, "SKU-2", second.SKU)
	require.Equal(t, string(SourceCustomerError), second.Source)
	require.Equal(t, "200", *second.Amount, "failed line keeps the list price")
	require.Equal(t, PricingUnavailableNote, second.Note)
}

func TestBatchHandlerRejectsEmptyItems(t *testing.T) {
	h := &Handler{
		Orchestrator: &Orchestrator{Logger: zerolog.Nop()},
		Validator:    validator.New(),
		Logger:       zerolog.Nop(),
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/prices/batch", strings.NewReader(`{"items":[]}`))
	rec := httptest.NewRecorder()
	h.Batch(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
