package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	Code               string          `json:"code"`
	DiscountType       string          `json:"discount_type"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	MaximumDiscount    decimal.Decimal `json:"maximum_discount,omitempty"`
	MinimumOrderAmount decimal.Decimal `json:"minimum_order_amount,omitempty"`
	ValidUntil         *time.Time      `json:"valid_until,omitempty"`
}

type validateCouponResponse struct {
	Valid   bool            `json:"valid"`
	Message string          `json:"message,omitempty"`
	Coupon  *couponResponse `json:"coupon,omitempty"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeStrict(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	res, err := h.coupons.Check(r.Context(), req.Code)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := validateCouponResponse{Valid: res.Valid, Message: res.Message}
	if res.Valid && res.Coupon != nil {
		resp.Coupon = toCouponResponse(res.Coupon)
	}
	respond(w, http.StatusOK, resp)
}

func toCouponResponse(c *coupon.Coupon) *couponResponse {
	return &couponResponse{
		Code:               c.Code,
		DiscountType:       string(c.DiscountType),
		DiscountValue:      c.DiscountValue,
		MaximumDiscount:    c.MaximumDiscount,
		MinimumOrderAmount: c.MinimumOrderAmount,
		ValidUntil:         c.ValidUntil,
	}
}
