package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/order"
)

type orderItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

type orderResponse struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	AddressID       string          `json:"address_id,omitempty"`
	StoreLocationID string          `json:"store_location_id,omitempty"`
	DeliveryType    string          `json:"delivery_type"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	DeliveryStatus  string          `json:"delivery_status,omitempty"`
	TrackingCode    string          `json:"tracking_code,omitempty"`
	DeliveryDate    *time.Time      `json:"delivery_date,omitempty"`
	ShippingDate    *time.Time      `json:"shipping_date,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`

	Items     []orderItemResponse `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	summary := o.Summary()

	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Metadata:    it.Metadata,
		})
	}

	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.Number(),
		UserID:          o.UserID,
		AddressID:       o.AddressID,
		StoreLocationID: o.StoreLocationID,
		DeliveryType:    o.DeliveryType,
		CouponCode:      o.CouponCode,
		Subtotal:        summary.Subtotal,
		TaxAmount:       summary.TaxAmount,
		DeliveryFee:     summary.DeliveryFee,
		DiscountAmount:  summary.DiscountAmount,
		Total:           summary.Total,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		DeliveryStatus:  o.DeliveryStatus,
		TrackingCode:    o.TrackingCode,
		DeliveryDate:    o.DeliveryDate,
		ShippingDate:    o.ShippingDate,
		DeliveredAt:     o.DeliveredAt,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

type orderPageResponse struct {
	Results  []orderResponse `json:"results"`
	Count    int             `json:"count"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func toOrderPageResponse(p *order.Page) orderPageResponse {
	results := make([]orderResponse, 0, len(p.Results))
	for i := range p.Results {
		results = append(results, toOrderResponse(&p.Results[i]))
	}
	return orderPageResponse{
		Results:  results,
		Count:    p.Count,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	page, pageSize := pageParams(r)

	p, err := h.orders.ListForUser(r.Context(), id.UserID, page, pageSize)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderPageResponse(p))
}

type placeOrderRequest struct {
	BillingAddressID string `json:"billing_address_id"`
	StoreLocationID  string `json:"store_location_id"`
	DeliveryType     string `json:"delivery_type"`
	DeliveryMethodID string `json:"delivery_method_id"`
	ZoneID           string `json:"zone_id"`
	CouponCode       string `json:"coupon_code"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeStrict(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := identityFrom(r.Context())
	o, err := h.checkout.Checkout(r.Context(), order.CheckoutRequest{
		UserID:           id.UserID,
		BillingAddressID: req.BillingAddressID,
		StoreLocationID:  req.StoreLocationID,
		DeliveryType:     req.DeliveryType,
		DeliveryMethodID: req.DeliveryMethodID,
		ZoneID:           req.ZoneID,
		CouponCode:       req.CouponCode,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	o, err := h.orders.GetForUser(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	p, err := h.orders.ListAll(r.Context(), page, pageSize)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderPageResponse(p))
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(o))
}

// orderPatchRequest is the closed set of patchable fulfillment fields.
// decodeStrict rejects anything outside of it, so immutable snapshot fields
// cannot be touched through this endpoint.
type orderPatchRequest struct {
	Status         *string    `json:"status"`
	PaymentStatus  *string    `json:"payment_status"`
	DeliveryStatus *string    `json:"delivery_status"`
	TrackingCode   *string    `json:"tracking_code"`
	DeliveryType   *string    `json:"delivery_type"`
	DeliveryDate   *time.Time `json:"delivery_date"`
	ShippingDate   *time.Time `json:"shipping_date"`
	DeliveredAt    *time.Time `json:"delivered_at"`
}

func (h *Handler) adminPatchOrder(w http.ResponseWriter, r *http.Request) {
	var req orderPatchRequest
	if err := decodeStrict(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := order.OrderPatch{
		Status:         req.Status,
		PaymentStatus:  req.PaymentStatus,
		DeliveryStatus: req.DeliveryStatus,
		TrackingCode:   req.TrackingCode,
		DeliveryType:   req.DeliveryType,
		DeliveryDate:   req.DeliveryDate,
		ShippingDate:   req.ShippingDate,
		DeliveredAt:    req.DeliveredAt,
	}
	if patch.IsZero() {
		respondError(w, http.StatusBadRequest, "patch contains no fields")
		return
	}

	o, err := h.fulfillment.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(o))
}
