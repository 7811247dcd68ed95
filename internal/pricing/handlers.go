package pricing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pricing/internal/commerce"
	"github.com/noah-isme/backend-pricing/internal/common"
	"github.com/noah-isme/backend-pricing/internal/erp"
)

// PricingUnavailableNote is the human-readable marker attached to lines that
// could not be priced authoritatively.
const PricingUnavailableNote = "pricing unavailable, contact us"

// Handler wires the pricing core to HTTP.
type Handler struct {
	Resolver     Resolver
	Orchestrator *Orchestrator
	Commerce     commerce.Client
	Validator    *validator.Validate
	Logger       zerolog.Logger
}

type resolveRequest struct {
	PartID            string `json:"partId"`
	VariantID         string `json:"variantId"`
	CustomerID        string `json:"customerId"`
	CustomerMonitorID string `json:"customerMonitorId"`
	IsOutletProduct   bool   `json:"isOutletProduct"`
	PriceListID       string `json:"customerPriceListId"`
	DiscountCategory  string `json:"discountCategory"`
	PartCodeID        string `json:"partCodeId"`
	// Checkout marks requests that must not silently fall back: a missing
	// customer identifier or an unresolvable price is a hard error.
	Checkout bool `json:"checkout"`
}

type priceBody struct {
	Amount   *string `json:"amount"`
	Source   Source  `json:"source"`
	Currency string  `json:"currency,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// Resolve handles single-item price resolution for line-item pricing, cart
// pricing and checkout assembly.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing resolver not configured", nil)
		return
	}
	var payload resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if h.Validator != nil {
		if err := h.Validator.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidationError, "invalid pricing request", err.Error())
			return
		}
	}

	req, appErr := h.buildRequest(r, payload)
	if appErr != nil {
		common.JSONAppError(w, appErr)
		return
	}

	result, err := h.Resolver.Resolve(r.Context(), req)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}
	if payload.Checkout && !result.HasPrice() {
		common.JSONAppError(w, common.NewValidationError(
			"no authoritative price could be established for checkout",
			map[string]any{"source": result.Source},
		))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": priceBodyFor(result.Amount, result.Source, result.CurrencyCode)})
}

// buildRequest fills in ERP identifiers the caller did not supply: the
// customer's monitor id and discount category from the customer record, and
// the part linkage from the variant record.
func (h *Handler) buildRequest(r *http.Request, payload resolveRequest) (Request, *common.AppError) {
	req := Request{
		PartID:            strings.TrimSpace(payload.PartID),
		CustomerMonitorID: strings.TrimSpace(payload.CustomerMonitorID),
		IsOutletProduct:   payload.IsOutletProduct,
		PriceListID:       strings.TrimSpace(payload.PriceListID),
		DiscountCategory:  strings.TrimSpace(payload.DiscountCategory),
		PartCodeID:        strings.TrimSpace(payload.PartCodeID),
	}

	if req.PartID == "" && payload.VariantID != "" && h.Commerce != nil {
		info, err := h.Commerce.VariantInfo(r.Context(), payload.VariantID)
		if err != nil {
			return req, common.NewUpstreamError("variant lookup failed", err)
		}
		req.PartID = info.PartID
		if req.PartCodeID == "" {
			req.PartCodeID = info.PartCodeID
		}
		if info.IsOutlet {
			req.IsOutletProduct = true
		}
	}

	if req.CustomerMonitorID == "" && payload.CustomerID != "" && h.Commerce != nil {
		profile, err := h.Commerce.CustomerProfile(r.Context(), payload.CustomerID)
		if err != nil {
			return req, common.NewUpstreamError("customer lookup failed", err)
		}
		req.CustomerMonitorID = profile.MonitorID
		if req.DiscountCategory == "" {
			req.DiscountCategory = profile.DiscountCategory
		}
	}

	if payload.Checkout && !req.IsOutletProduct && req.CustomerMonitorID == "" {
		return req, common.NewValidationError("customer identifier is required for checkout pricing", nil)
	}
	return req, nil
}

func (h *Handler) writeResolveError(w http.ResponseWriter, err error) {
	if appErr, ok := common.AsAppError(err); ok {
		common.JSONAppError(w, appErr)
		return
	}
	if errors.Is(err, erp.ErrAuthFailed) {
		common.JSONError(w, http.StatusBadGateway, common.CodeAuthError, "pricing system authentication failed", nil)
		return
	}
	h.Logger.Error().Err(err).Msg("price_resolution_failed")
	common.JSONError(w, http.StatusBadGateway, common.CodeUpstreamError, "pricing system unavailable", nil)
}

type batchItemPayload struct {
	VariantID       string          `json:"variantId"`
	SKU             string          `json:"sku"`
	Title           string          `json:"title"`
	Unit            string          `json:"unit"`
	Dimensions      string          `json:"dimensions"`
	ListPrice       decimal.Decimal `json:"listPrice"`
	PartID          string          `json:"partId"`
	PartCodeID      string          `json:"partCodeId"`
	IsOutletProduct bool            `json:"isOutletProduct"`
}

type batchRequest struct {
	CustomerID        string             `json:"customerId"`
	CustomerMonitorID string             `json:"customerMonitorId"`
	DiscountCategory  string             `json:"discountCategory"`
	Items             []batchItemPayload `json:"items" validate:"required,min=1"`
}

type batchLineBody struct {
	VariantID  string `json:"variantId,omitempty"`
	SKU        string `json:"sku,omitempty"`
	Title      string `json:"title,omitempty"`
	Unit       string `json:"unit,omitempty"`
	Dimensions string `json:"dimensions,omitempty"`
	priceBody
}

// Batch handles bulk pricing for price-list export. It always answers 200:
// failed lines are tagged and carry their original list price.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	if h.Orchestrator == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing orchestrator not configured", nil)
		return
	}
	var payload batchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if h.Validator != nil {
		if err := h.Validator.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidationError, "invalid batch request", err.Error())
			return
		}
	}

	items := make([]BatchItem, len(payload.Items))
	for i, it := range payload.Items {
		items[i] = BatchItem{
			VariantID:       it.VariantID,
			SKU:             it.SKU,
			Title:           it.Title,
			Unit:            it.Unit,
			Dimensions:      it.Dimensions,
			ListPrice:       it.ListPrice,
			PartID:          strings.TrimSpace(it.PartID),
			PartCodeID:      strings.TrimSpace(it.PartCodeID),
			IsOutletProduct: it.IsOutletProduct,
		}
	}

	lines := h.Orchestrator.PriceBatch(r.Context(), items, BatchCustomer{
		ID:               payload.CustomerID,
		MonitorID:        payload.CustomerMonitorID,
		DiscountCategory: payload.DiscountCategory,
	})

	out := make([]batchLineBody, len(lines))
	for i, line := range lines {
		out[i] = batchLineBody{
			VariantID:  line.Item.VariantID,
			SKU:        line.Item.SKU,
			Title:      line.Item.Title,
			Unit:       line.Item.Unit,
			Dimensions: line.Item.Dimensions,
			priceBody:  priceBodyFor(line.Amount, line.Source, ""),
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"lines": out}})
}

func priceBodyFor(amount *decimal.Decimal, source Source, currency string) priceBody {
	body := priceBody{Source: source, Currency: currency}
	if amount != nil {
		s := amount.String()
		body.Amount = &s
	}
	if source.IsError() || amount == nil {
		body.Note = PricingUnavailableNote
	}
	return body
}
