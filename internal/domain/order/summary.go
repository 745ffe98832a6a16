package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/money"
)

// Summary is the single authoritative totals object for an order.
type Summary struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DeliveryFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	ItemCount      int
	QuantityCount  int
}

// SummaryLine is a priced line fed into summary computation.
type SummaryLine struct {
	Price    decimal.Decimal
	Quantity int
}

// Explicit carries values the caller already knows. A nil field means
// "derive it"; a non-nil field is trusted over the builder's own arithmetic.
type Explicit struct {
	Subtotal    *decimal.Decimal
	TaxAmount   *decimal.Decimal
	DeliveryFee *decimal.Decimal
	Total       *decimal.Decimal
}

// BuildSummary combines line amounts with explicitly supplied values.
//
// When an explicit positive total is given it wins over the computed
// subtotal + tax + delivery, and the gap is surfaced as the discount:
// discount = max(base - total, 0). This asymmetric trust lets the checkout
// path hand over a pre-discounted total without the summary subtracting the
// discount a second time.
func BuildSummary(lines []SummaryLine, ex Explicit) Summary {
	computed := decimal.Zero
	quantity := 0
	for _, l := range lines {
		computed = computed.Add(money.LineTotal(l.Price, l.Quantity))
		quantity += l.Quantity
	}

	subtotal := computed
	if ex.Subtotal != nil {
		subtotal = *ex.Subtotal
	}

	taxAmount := decimal.Zero
	if ex.TaxAmount != nil {
		taxAmount = *ex.TaxAmount
	}
	deliveryFee := decimal.Zero
	if ex.DeliveryFee != nil {
		deliveryFee = *ex.DeliveryFee
	}

	base := subtotal.Add(taxAmount).Add(deliveryFee)

	provided := decimal.Zero
	if ex.Total != nil {
		provided = *ex.Total
	}

	discount := decimal.Zero
	total := base
	if provided.IsPositive() {
		discount = money.FloorAtZero(base.Sub(provided))
		total = provided
	}

	return Summary{
		Subtotal:       subtotal,
		TaxAmount:      taxAmount,
		DeliveryFee:    deliveryFee,
		DiscountAmount: discount,
		Total:          money.FloorAtZero(total),
		ItemCount:      len(lines),
		QuantityCount:  quantity,
	}
}

// Summary derives the totals object for a persisted order from its snapshot
// fields and items.
func (o *Order) Summary() Summary {
	lines := make([]SummaryLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = SummaryLine{Price: it.Price, Quantity: it.Quantity}
	}
	return BuildSummary(lines, Explicit{
		Subtotal:    &o.Subtotal,
		TaxAmount:   &o.TaxAmount,
		DeliveryFee: &o.DeliveryFee,
		Total:       &o.Total,
	})
}
