package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/money"
)

type cartItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

type cartResponse struct {
	ID       string             `json:"id"`
	Items    []cartItemResponse `json:"items"`
	Subtotal decimal.Decimal    `json:"subtotal"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		ID:       c.ID,
		Items:    make([]cartItemResponse, 0, len(c.Items)),
		Subtotal: decimal.Zero,
	}
	for _, it := range c.Items {
		item := cartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Metadata:  it.Metadata,
		}
		if it.Product != nil {
			item.Name = it.Product.Name
			item.Price = it.Product.Price
			item.LineTotal = money.LineTotal(it.Product.Price, it.Quantity)
			resp.Subtotal = resp.Subtotal.Add(item.LineTotal)
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	c, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(c))
}

type addCartItemRequest struct {
	ProductID string         `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Metadata  map[string]any `json:"metadata"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeStrict(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	id := identityFrom(r.Context())
	c, err := h.carts.AddItem(r.Context(), id.UserID, req.ProductID, req.Quantity, req.Metadata)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(c))
}

type updateCartItemRequest struct {
	Quantity *int           `json:"quantity"`
	Metadata map[string]any `json:"metadata"`
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeStrict(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := identityFrom(r.Context())
	c, err := h.carts.UpdateItem(r.Context(), id.UserID, chi.URLParam(r, "id"), req.Quantity, req.Metadata)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	c, err := h.carts.RemoveItem(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	c, err := h.carts.Clear(r.Context(), id.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(c))
}
