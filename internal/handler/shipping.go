package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

type quoteShippingRequest struct {
	AddressID        string          `json:"address_id"`
	DeliveryType     string          `json:"delivery_type"`
	DeliveryMethodID string          `json:"delivery_method_id"`
	ZoneID           string          `json:"zone_id"`
	OrderTotal       decimal.Decimal `json:"order_total"`
}

type quoteShippingResponse struct {
	Fee              decimal.Decimal `json:"fee"`
	BasePrice        decimal.Decimal `json:"base_price"`
	FreeOver         decimal.Decimal `json:"free_over,omitempty"`
	ZoneID           string          `json:"zone_id,omitempty"`
	ZoneName         string          `json:"zone_name,omitempty"`
	DeliveryMethodID string          `json:"delivery_method_id,omitempty"`
}

func (h *Handler) quoteShipping(w http.ResponseWriter, r *http.Request) {
	var req quoteShippingRequest
	if err := decodeStrict(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := identityFrom(r.Context())

	var addr *shipping.Address
	if req.AddressID != "" {
		found, err := h.addresses.AddressForUser(r.Context(), req.AddressID, id.UserID)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		if found == nil {
			respondDomainError(w, r, order.ErrAddressNotFound)
			return
		}
		addr = found
	}

	quote, err := h.shipping.Quote(r.Context(), shipping.QuoteRequest{
		Address:          addr,
		DeliveryType:     req.DeliveryType,
		DeliveryMethodID: req.DeliveryMethodID,
		ZoneID:           req.ZoneID,
		OrderTotal:       req.OrderTotal,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respond(w, http.StatusOK, quoteShippingResponse{
		Fee:              quote.Fee,
		BasePrice:        quote.BasePrice,
		FreeOver:         quote.FreeOver,
		ZoneID:           quote.ZoneID,
		ZoneName:         quote.ZoneName,
		DeliveryMethodID: quote.DeliveryMethodID,
	})
}
