package shipping

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Pickup delivery types always quote a zero fee, without any zone lookup.
func isPickup(deliveryType string) bool {
	switch strings.ToLower(deliveryType) {
	case "pickup", "pick_up_from_store":
		return true
	}
	return false
}

// QuoteRequest is the input to shipping resolution.
type QuoteRequest struct {
	Address          *Address
	DeliveryType     string
	DeliveryMethodID string
	ZoneID           string
	OrderTotal       decimal.Decimal
}

// Quote is the resolved shipping fee together with the context it was
// derived from. ZoneID stays empty when resolution fell back to the method's
// flat price without a zone.
type Quote struct {
	Fee              decimal.Decimal
	BasePrice        decimal.Decimal
	FreeOver         decimal.Decimal
	ZoneID           string
	ZoneName         string
	DeliveryMethodID string
}

// Resolver finds the applicable shipping zone and fee for an address and
// delivery method.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Quote resolves the shipping fee:
//
//  1. Pickup variants short-circuit to a zero-fee quote.
//  2. The delivery method is the explicit one (if given and active), else the
//     first active method of type DELIVERY.
//  3. Without an address or method, the quote is the method's flat price.
//  4. An explicit zone ID must resolve to an active zone (ErrZoneNotFound
//     otherwise). Auto-match tries (city, state) first, then a state-wide
//     zone; the state is mandatory for auto-matching.
//  5. A zone without a price row quotes the flat price, keeping the zone for
//     observability.
//  6. With a price row: free when free_over > 0 and the order total reaches
//     it, base price otherwise.
//
// Home delivery with no resolvable zone is not rejected here; callers that
// require a zone pass one explicitly and rely on the step-4 error path.
func (r *Resolver) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if isPickup(req.DeliveryType) {
		return Quote{DeliveryMethodID: req.DeliveryMethodID}, nil
	}

	method, err := r.resolveMethod(ctx, req.DeliveryMethodID)
	if err != nil {
		return Quote{}, err
	}

	if req.Address == nil || method == nil {
		q := Quote{}
		if method != nil {
			q.Fee = method.Price
			q.BasePrice = method.Price
			q.DeliveryMethodID = method.ID
		}
		return q, nil
	}

	zone, err := r.resolveZone(ctx, req.ZoneID, req.Address)
	if err != nil {
		return Quote{}, err
	}

	if zone == nil {
		return Quote{
			Fee:              method.Price,
			BasePrice:        method.Price,
			DeliveryMethodID: method.ID,
		}, nil
	}

	price, err := r.store.PriceFor(ctx, zone.ID, method.ID)
	if err != nil {
		return Quote{}, errors.Wrap(err, "lookup shipping price")
	}
	if price == nil {
		return Quote{
			Fee:              method.Price,
			BasePrice:        method.Price,
			ZoneID:           zone.ID,
			ZoneName:         zone.Name,
			DeliveryMethodID: method.ID,
		}, nil
	}

	fee := price.Price
	if price.FreeOver.IsPositive() && req.OrderTotal.GreaterThanOrEqual(price.FreeOver) {
		fee = decimal.Zero
	}

	return Quote{
		Fee:              fee,
		BasePrice:        price.Price,
		FreeOver:         price.FreeOver,
		ZoneID:           zone.ID,
		ZoneName:         zone.Name,
		DeliveryMethodID: method.ID,
	}, nil
}

func (r *Resolver) resolveMethod(ctx context.Context, methodID string) (*DeliveryMethod, error) {
	if methodID != "" {
		m, err := r.store.MethodByID(ctx, methodID)
		if err != nil {
			return nil, errors.Wrap(err, "lookup delivery method")
		}
		if m != nil {
			return m, nil
		}
	}
	m, err := r.store.FirstMethodOfType(ctx, MethodDelivery)
	if err != nil {
		return nil, errors.Wrap(err, "lookup default delivery method")
	}
	return m, nil
}

func (r *Resolver) resolveZone(ctx context.Context, zoneID string, addr *Address) (*Zone, error) {
	if zoneID != "" {
		z, err := r.store.ZoneByID(ctx, zoneID)
		if err != nil {
			return nil, errors.Wrap(err, "lookup shipping zone")
		}
		if z == nil {
			return nil, ErrZoneNotFound
		}
		return z, nil
	}

	state := strings.TrimSpace(strings.ToLower(addr.State))
	if state == "" {
		return nil, nil
	}

	if city := strings.TrimSpace(strings.ToLower(addr.City)); city != "" {
		z, err := r.store.ZoneByCityState(ctx, city, state)
		if err != nil {
			return nil, errors.Wrap(err, "match city zone")
		}
		if z != nil {
			return z, nil
		}
	}

	z, err := r.store.ZoneByState(ctx, state)
	if err != nil {
		return nil, errors.Wrap(err, "match state zone")
	}
	return z, nil
}
