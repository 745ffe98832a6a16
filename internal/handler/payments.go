package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/payment"
)

type paymentResponse struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Channel     string          `json:"channel,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		OrderID:     p.OrderID,
		OrderNumber: order.NumberFromID(p.OrderID),
		Reference:   p.Reference,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      p.Status,
		Channel:     p.Channel,
		PaidAt:      p.PaidAt,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	payments, err := h.payments.ListForUser(r.Context(), id.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	results := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		results = append(results, toPaymentResponse(&payments[i]))
	}
	respond(w, http.StatusOK, map[string]any{"results": results})
}

type initiatePaymentRequest struct {
	OrderID string `json:"order_id"`
}

type initiatePaymentResponse struct {
	Payment          paymentResponse `json:"payment"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if err := decodeStrict(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	id := identityFrom(r.Context())
	res, err := h.payments.Initiate(r.Context(), req.OrderID, id.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, initiatePaymentResponse{
		Payment:          toPaymentResponse(res.Payment),
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
	})
}

type verifyPaymentRequest struct {
	Reference string `json:"reference"`
}

// verifyPayment accepts the reference either as a query parameter (gateway
// redirect) or in the request body (explicit client call).
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" && r.Method == http.MethodPost {
		var req verifyPaymentRequest
		if err := decodeStrict(r, &req); err == nil {
			reference = req.Reference
		}
	}
	if reference == "" {
		respondError(w, http.StatusBadRequest, "reference is required")
		return
	}

	p, err := h.payments.Verify(r.Context(), reference)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toPaymentResponse(p))
}
