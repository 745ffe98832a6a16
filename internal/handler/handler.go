// Package handler is the HTTP boundary: chi routes, request decoding, domain
// error mapping, and the bearer-token auth guard.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/gadget-cartel/internal/domain/auth"
	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/coupon"
	"github.com/xenking/gadget-cartel/internal/domain/notification"
	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/payment"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

// AddressReader resolves a user-owned address, (nil, nil) when absent.
type AddressReader interface {
	AddressForUser(ctx context.Context, addressID, userID string) (*shipping.Address, error)
}

// Handler carries the domain services the HTTP layer delegates to.
type Handler struct {
	auth          *auth.Authenticator
	carts         *cart.Service
	checkout      *order.CheckoutService
	fulfillment   *order.FulfillmentService
	orders        order.Queries
	coupons       *coupon.Ledger
	payments      *payment.Reconciler
	notifications *notification.Service
	shipping      *shipping.Resolver
	addresses     AddressReader
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	authn *auth.Authenticator,
	carts *cart.Service,
	checkout *order.CheckoutService,
	fulfillment *order.FulfillmentService,
	orders order.Queries,
	coupons *coupon.Ledger,
	payments *payment.Reconciler,
	notifications *notification.Service,
	resolver *shipping.Resolver,
	addresses AddressReader,
) *Handler {
	return &Handler{
		auth:          authn,
		carts:         carts,
		checkout:      checkout,
		fulfillment:   fulfillment,
		orders:        orders,
		coupons:       coupons,
		payments:      payments,
		notifications: notifications,
		shipping:      resolver,
		addresses:     addresses,
	}
}

// Routes builds the API router. Everything under /api requires a bearer
// token; /api/admin additionally requires admin rights.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Patch("/items/{id}", h.updateCartItem)
			r.Delete("/items/{id}", h.removeCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Post("/", h.placeOrder)
			r.Get("/{id}", h.getOrder)
		})

		r.Post("/coupons/validate", h.validateCoupon)
		r.Post("/shipping/quote", h.quoteShipping)

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.listPayments)
			r.Post("/initiate", h.initiatePayment)
			r.Get("/verify", h.verifyPayment)
			r.Post("/verify", h.verifyPayment)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.listNotifications)
			r.Post("/read-all", h.readAllNotifications)
			r.Post("/{id}/read", h.readNotification)
			r.Delete("/{id}", h.deleteNotification)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/orders", h.adminListOrders)
			r.Get("/orders/{id}", h.adminGetOrder)
			r.Patch("/orders/{id}", h.adminPatchOrder)
		})
	})

	return r
}
