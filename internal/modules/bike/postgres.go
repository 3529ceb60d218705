package bike

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) CreateBike(ctx context.Context, b *Bike) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO bikes (id,customer_id,brand,model,serial_number,color,year)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at,updated_at`,
		b.ID, b.CustomerID, b.Brand, b.Model, b.SerialNumber, b.Color, b.Year).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	return apperror.Classify(err, "bike")
}

func (r *postgresRepo) GetBikeByID(ctx context.Context, id uuid.UUID) (*Bike, error) {
	b := &Bike{}
	var year sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id,customer_id,brand,model,serial_number,color,year,created_at,updated_at
		FROM bikes WHERE id=$1`, id).
		Scan(&b.ID, &b.CustomerID, &b.Brand, &b.Model, &b.SerialNumber, &b.Color, &year, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, apperror.Classify(err, "bike")
	}
	b.Year = yearPtr(year)
	return b, nil
}

func (r *postgresRepo) ListBikesByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Bike, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id,customer_id,brand,model,serial_number,color,year,created_at,updated_at
		FROM bikes WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, apperror.Classify(err, "bike")
	}
	defer rows.Close()
	bikes := []*Bike{}
	for rows.Next() {
		b := &Bike{}
		var year sql.NullInt64
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.Brand, &b.Model, &b.SerialNumber,
			&b.Color, &year, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, apperror.Classify(err, "bike")
		}
		b.Year = yearPtr(year)
		bikes = append(bikes, b)
	}
	return bikes, apperror.Classify(rows.Err(), "bike")
}

func yearPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	y := int(v.Int64)
	return &y
}
