package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

const (
	getMethodByIDSQL = `SELECT id, name, type, price, is_active
		FROM delivery_methods WHERE id = $1 AND is_active`

	firstMethodOfTypeSQL = `SELECT id, name, type, price, is_active
		FROM delivery_methods WHERE type = $1 AND is_active
		ORDER BY price, id LIMIT 1`

	getZoneByIDSQL = `SELECT id, name, state, COALESCE(city, ''), is_active
		FROM shipping_zones WHERE id = $1 AND is_active`

	getZoneByCityStateSQL = `SELECT id, name, state, COALESCE(city, ''), is_active
		FROM shipping_zones
		WHERE LOWER(city) = $1 AND LOWER(state) = $2 AND is_active
		LIMIT 1`

	getZoneByStateSQL = `SELECT id, name, state, COALESCE(city, ''), is_active
		FROM shipping_zones
		WHERE (city IS NULL OR city = '') AND LOWER(state) = $1 AND is_active
		LIMIT 1`

	getPriceForSQL = `SELECT id, zone_id, delivery_method_id, price, COALESCE(free_over, 0)
		FROM shipping_prices
		WHERE zone_id = $1 AND delivery_method_id = $2 AND is_active`
)

var _ shipping.Store = (*ShippingRepository)(nil)

// ShippingRepository implements shipping.Store backed by PostgreSQL. Only
// active rows are visible; a miss returns (nil, nil) per the Store contract.
type ShippingRepository struct {
	db *DB
}

// NewShippingRepository returns a ShippingRepository on the given DB.
func NewShippingRepository(db *DB) *ShippingRepository {
	return &ShippingRepository{db: db}
}

// MethodByID returns an active delivery method, or (nil, nil).
func (r *ShippingRepository) MethodByID(ctx context.Context, id string) (*shipping.DeliveryMethod, error) {
	return r.oneMethod(ctx, getMethodByIDSQL, id)
}

// FirstMethodOfType returns the cheapest active method of the type, or (nil, nil).
func (r *ShippingRepository) FirstMethodOfType(ctx context.Context, methodType string) (*shipping.DeliveryMethod, error) {
	return r.oneMethod(ctx, firstMethodOfTypeSQL, methodType)
}

func (r *ShippingRepository) oneMethod(ctx context.Context, sql string, arg any) (*shipping.DeliveryMethod, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "querying delivery method")
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanDeliveryMethod)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "scanning delivery method")
	}
	return &m, nil
}

// ZoneByID returns an active zone, or (nil, nil).
func (r *ShippingRepository) ZoneByID(ctx context.Context, id string) (*shipping.Zone, error) {
	return r.oneZone(ctx, getZoneByIDSQL, id)
}

// ZoneByCityState matches a zone on (city, state), case-insensitive.
func (r *ShippingRepository) ZoneByCityState(ctx context.Context, city, state string) (*shipping.Zone, error) {
	return r.oneZone(ctx, getZoneByCityStateSQL, city, state)
}

// ZoneByState matches a state-wide zone, case-insensitive.
func (r *ShippingRepository) ZoneByState(ctx context.Context, state string) (*shipping.Zone, error) {
	return r.oneZone(ctx, getZoneByStateSQL, state)
}

func (r *ShippingRepository) oneZone(ctx context.Context, sql string, args ...any) (*shipping.Zone, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying shipping zone")
	}
	z, err := pgx.CollectExactlyOneRow(rows, scanZone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "scanning shipping zone")
	}
	return &z, nil
}

// PriceFor returns the active zone x method price row, or (nil, nil).
func (r *ShippingRepository) PriceFor(ctx context.Context, zoneID, methodID string) (*shipping.Price, error) {
	rows, err := r.db.q(ctx).Query(ctx, getPriceForSQL, zoneID, methodID)
	if err != nil {
		return nil, errors.Wrap(err, "querying shipping price")
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanShippingPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "scanning shipping price")
	}
	return &p, nil
}

func scanDeliveryMethod(row pgx.CollectableRow) (shipping.DeliveryMethod, error) {
	var m shipping.DeliveryMethod
	err := row.Scan(&m.ID, &m.Name, &m.Type, &m.Price, &m.IsActive)
	return m, err
}

func scanZone(row pgx.CollectableRow) (shipping.Zone, error) {
	var z shipping.Zone
	err := row.Scan(&z.ID, &z.Name, &z.State, &z.City, &z.IsActive)
	return z, err
}

func scanShippingPrice(row pgx.CollectableRow) (shipping.Price, error) {
	var p shipping.Price
	err := row.Scan(&p.ID, &p.ZoneID, &p.DeliveryMethodID, &p.Price, &p.FreeOver)
	return p, err
}
