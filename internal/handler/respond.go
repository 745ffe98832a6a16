package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/gadget-cartel/internal/domain/auth"
	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/coupon"
	"github.com/xenking/gadget-cartel/internal/domain/notification"
	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/payment"
	"github.com/xenking/gadget-cartel/internal/domain/product"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

// errorResponse is the uniform error payload.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, errorResponse{Code: status, Message: message})
}

// decodeStrict decodes the JSON body into v, rejecting unknown fields.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode request")
	}
	return nil
}

// respondDomainError maps domain sentinels onto HTTP statuses. Anything
// unmapped is a 500 with the detail kept out of the response.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")

	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrAddressNotFound),
		errors.Is(err, order.ErrStoreLocationNotFound),
		errors.Is(err, shipping.ErrZoneNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, cart.ErrUserNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, payment.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrCartEmpty),
		errors.Is(err, order.ErrStoreLocationRequired),
		errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrNotYetActive),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrPerUserLimitReached),
		errors.Is(err, coupon.ErrMinimumOrderNotMet):
		respondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, payment.ErrGateway):
		zctx.From(r.Context()).Error("Gateway request failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "payment gateway unavailable")

	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
