package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrFlowerNotFound = errors.New("flower type not found")
	ErrLotNotFound    = errors.New("flower lot not found")
)

// Store covers catalog and stock-intake reads/writes. Lot quantities are
// mutated only by the Allocator; the store creates and inspects them.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) CreateFlower(ctx context.Context, f FlowerType) (FlowerType, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO flower_types(name, color, seasonality, price_per_unit, description)
		VALUES ($1, $2, $3, $4::numeric, $5)
		RETURNING id, created_at, updated_at`,
		f.Name, f.Color, f.Seasonality, f.PricePerUnit.String(), f.Description,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return FlowerType{}, err
	}
	return f, nil
}

func (s *Store) GetFlower(ctx context.Context, id int64) (FlowerType, error) {
	var f FlowerType
	var price string
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, COALESCE(color,''), COALESCE(seasonality,'all'),
		       price_per_unit::text, COALESCE(description,''), created_at, updated_at
		FROM flower_types WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.Color, &f.Seasonality, &price, &f.Description, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FlowerType{}, ErrFlowerNotFound
	}
	if err != nil {
		return FlowerType{}, err
	}
	f.PricePerUnit, err = decimal.NewFromString(price)
	return f, err
}

func (s *Store) ListFlowers(ctx context.Context) ([]FlowerType, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, COALESCE(color,''), COALESCE(seasonality,'all'),
		       price_per_unit::text, COALESCE(description,''), created_at, updated_at
		FROM flower_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FlowerType
	for rows.Next() {
		var f FlowerType
		var price string
		if err := rows.Scan(&f.ID, &f.Name, &f.Color, &f.Seasonality, &price,
			&f.Description, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if f.PricePerUnit, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateLot is the stock-intake entry point.
func (s *Store) CreateLot(ctx context.Context, l Lot) (Lot, error) {
	if _, err := s.GetFlower(ctx, l.FlowerTypeID); err != nil {
		return Lot{}, err
	}
	if l.Status == "" {
		l.Status = LotAvailable
	}
	err := s.DB.QueryRow(ctx, `
		INSERT INTO flower_lots(flower_type_id, quantity, expiry_date, received_date, status)
		VALUES ($1, $2, $3, COALESCE($4, CURRENT_DATE), $5)
		RETURNING id, received_date, created_at, updated_at`,
		l.FlowerTypeID, l.Quantity, l.ExpiryDate, nullTime(l.ReceivedDate), l.Status,
	).Scan(&l.ID, &l.ReceivedDate, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Lot{}, err
	}
	return l, nil
}

func (s *Store) GetLot(ctx context.Context, id int64) (Lot, error) {
	var l Lot
	err := s.DB.QueryRow(ctx, `
		SELECT id, flower_type_id, quantity, expiry_date, received_date, status, created_at, updated_at
		FROM flower_lots WHERE id = $1`, id,
	).Scan(&l.ID, &l.FlowerTypeID, &l.Quantity, &l.ExpiryDate, &l.ReceivedDate,
		&l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lot{}, ErrLotNotFound
	}
	return l, err
}

// ListLots filters by status and/or flower type; zero values mean no filter.
func (s *Store) ListLots(ctx context.Context, status LotStatus, flowerTypeID int64) ([]Lot, error) {
	q := `SELECT id, flower_type_id, quantity, expiry_date, received_date, status, created_at, updated_at
	      FROM flower_lots WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if flowerTypeID != 0 {
		args = append(args, flowerTypeID)
		q += fmt.Sprintf(" AND flower_type_id = $%d", len(args))
	}
	q += " ORDER BY expiry_date ASC, received_date ASC, id ASC"
	return s.queryLots(ctx, q, args...)
}

// ExpiringWithin lists available lots whose expiry falls inside the window.
func (s *Store) ExpiringWithin(ctx context.Context, days int) ([]Lot, error) {
	return s.queryLots(ctx, `
		SELECT id, flower_type_id, quantity, expiry_date, received_date, status, created_at, updated_at
		FROM flower_lots
		WHERE status = 'available' AND expiry_date <= CURRENT_DATE + $1::int
		ORDER BY expiry_date ASC, received_date ASC, id ASC`, days)
}

func (s *Store) queryLots(ctx context.Context, q string, args ...any) ([]Lot, error) {
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.FlowerTypeID, &l.Quantity, &l.ExpiryDate, &l.ReceivedDate,
			&l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type TypeSummary struct {
	FlowerTypeID  int64           `json:"flower_type_id"`
	Name          string          `json:"name"`
	TotalQuantity int             `json:"total_quantity"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
}

// Summary reports eligible stock per flower type.
func (s *Store) Summary(ctx context.Context) ([]TypeSummary, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT ft.id, ft.name, ft.price_per_unit::text,
		       COALESCE(SUM(fl.quantity) FILTER (
		           WHERE fl.status = 'available' AND fl.expiry_date >= CURRENT_DATE AND fl.quantity > 0
		       ), 0)
		FROM flower_types ft
		LEFT JOIN flower_lots fl ON fl.flower_type_id = ft.id
		GROUP BY ft.id, ft.name, ft.price_per_unit
		ORDER BY ft.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeSummary
	for rows.Next() {
		var ts TypeSummary
		var price string
		if err := rows.Scan(&ts.FlowerTypeID, &ts.Name, &price, &ts.TotalQuantity); err != nil {
			return nil, err
		}
		if ts.PricePerUnit, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
