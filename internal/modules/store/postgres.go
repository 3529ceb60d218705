package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/database"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a PostgreSQL-backed store repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const storeColumns = `id,owner_id,name,address,city,phone,email,is_active,created_at,updated_at`

const grantColumns = `id,store_id,user_id,permissions,is_active,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// ── Membership ────────────────────────────────────────────────────────────────

func (r *postgresRepo) StoreState(ctx context.Context, storeID uuid.UUID) (*access.StoreState, error) {
	st := &access.StoreState{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id,owner_id,is_active FROM stores WHERE id=$1`, storeID).
		Scan(&st.ID, &st.OwnerID, &st.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Classify(err, "store")
	}
	return st, nil
}

func (r *postgresRepo) FindActiveGrant(ctx context.Context, userID, storeID uuid.UUID) (*access.Grant, error) {
	g, err := scanGrant(r.db.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM staff_grants WHERE user_id=$1 AND store_id=$2 AND is_active`,
		userID, storeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Classify(err, "staff grant")
	}
	return &access.Grant{StoreID: g.StoreID, UserID: g.UserID, Permissions: g.Permissions, IsActive: g.IsActive}, nil
}

// ── Store ─────────────────────────────────────────────────────────────────────

func (r *postgresRepo) CreateStore(ctx context.Context, s *Store) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO stores (id,owner_id,name,address,city,phone,email,is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at,updated_at`,
		s.ID, s.OwnerID, s.Name, s.Address, s.City, s.Phone, s.Email, s.IsActive).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	return apperror.Classify(err, "store")
}

func (r *postgresRepo) GetStoreByID(ctx context.Context, id uuid.UUID) (*Store, error) {
	s, err := scanStore(r.db.QueryRowContext(ctx, `SELECT `+storeColumns+` FROM stores WHERE id=$1`, id))
	if err != nil {
		return nil, apperror.Classify(err, "store")
	}
	return s, nil
}

func (r *postgresRepo) ListStoresByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Store, error) {
	return r.listStores(ctx, `SELECT `+storeColumns+` FROM stores WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
}

func (r *postgresRepo) ListStoresByStaff(ctx context.Context, userID uuid.UUID) ([]*Store, error) {
	return r.listStores(ctx, `
		SELECT s.id,s.owner_id,s.name,s.address,s.city,s.phone,s.email,s.is_active,s.created_at,s.updated_at
		FROM stores s
		JOIN staff_grants g ON g.store_id = s.id
		WHERE g.user_id=$1 AND g.is_active AND s.is_active
		ORDER BY s.name`, userID)
}

func (r *postgresRepo) ListAllStores(ctx context.Context) ([]*Store, error) {
	return r.listStores(ctx, `SELECT `+storeColumns+` FROM stores ORDER BY created_at DESC`)
}

func (r *postgresRepo) listStores(ctx context.Context, query string, args ...any) ([]*Store, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Classify(err, "store")
	}
	defer rows.Close()
	stores := []*Store{}
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, apperror.Classify(err, "store")
		}
		stores = append(stores, s)
	}
	return stores, apperror.Classify(rows.Err(), "store")
}

func (r *postgresRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stores SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return apperror.Classify(err, "store")
	}
	ok, err := database.ExpectOne(res)
	if err != nil {
		return apperror.Classify(err, "store")
	}
	if !ok {
		return apperror.NotFound("store")
	}
	return nil
}

// ── StaffGrant ────────────────────────────────────────────────────────────────

func (r *postgresRepo) UpsertGrant(ctx context.Context, g *StaffGrant) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO staff_grants (id,store_id,user_id,permissions,is_active)
		VALUES ($1,$2,$3,$4,TRUE)
		ON CONFLICT (store_id,user_id) DO UPDATE
		SET permissions = EXCLUDED.permissions, is_active = TRUE, updated_at = NOW()
		RETURNING id,is_active,created_at,updated_at`,
		g.ID, g.StoreID, g.UserID, pq.Array(permission.Strings(g.Permissions))).
		Scan(&g.ID, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	return apperror.Classify(err, "staff grant")
}

func (r *postgresRepo) UpdateGrantPermissions(ctx context.Context, storeID, userID uuid.UUID, perms []permission.Permission) (*StaffGrant, error) {
	g, err := scanGrant(r.db.QueryRowContext(ctx, `
		UPDATE staff_grants SET permissions=$3, updated_at=NOW()
		WHERE store_id=$1 AND user_id=$2 AND is_active
		RETURNING `+grantColumns,
		storeID, userID, pq.Array(permission.Strings(perms))))
	if err != nil {
		return nil, apperror.Classify(err, "staff grant")
	}
	return g, nil
}

func (r *postgresRepo) DeactivateGrant(ctx context.Context, storeID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE staff_grants SET is_active=FALSE, updated_at=NOW()
		WHERE store_id=$1 AND user_id=$2 AND is_active`, storeID, userID)
	if err != nil {
		return apperror.Classify(err, "staff grant")
	}
	ok, err := database.ExpectOne(res)
	if err != nil {
		return apperror.Classify(err, "staff grant")
	}
	if !ok {
		return apperror.NotFound("staff grant")
	}
	return nil
}

func (r *postgresRepo) ListGrants(ctx context.Context, storeID uuid.UUID) ([]*StaffGrant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM staff_grants WHERE store_id=$1 ORDER BY created_at`, storeID)
	if err != nil {
		return nil, apperror.Classify(err, "staff grant")
	}
	defer rows.Close()
	grants := []*StaffGrant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, apperror.Classify(err, "staff grant")
		}
		grants = append(grants, g)
	}
	return grants, apperror.Classify(rows.Err(), "staff grant")
}

func scanStore(row scanner) (*Store, error) {
	s := &Store{}
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Address, &s.City,
		&s.Phone, &s.Email, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanGrant(row scanner) (*StaffGrant, error) {
	g := &StaffGrant{}
	var perms []string
	err := row.Scan(&g.ID, &g.StoreID, &g.UserID, pq.Array(&perms), &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Permissions = make([]permission.Permission, len(perms))
	for i, p := range perms {
		g.Permissions[i] = permission.Permission(p)
	}
	return g, nil
}
