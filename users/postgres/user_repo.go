package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/servicedesk/users"
	"github.com/rs/zerolog"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectUserColumns = `SELECT id, name, email, role, created_at FROM users`

var _ users.Repo = (*UserRepo)(nil)

// UserRepo is the Postgres profile store
type UserRepo struct {
	db     DB
	logger zerolog.Logger
}

func NewUserRepo(db DB, logger zerolog.Logger) *UserRepo {
	return &UserRepo{
		db:     db,
		logger: logger.With().Str("component", "user_repo").Logger(),
	}
}

// Migrate creates the users table when it does not exist
func (r *UserRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createUsersTable); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *UserRepo) Close() {
	r.db.Close()
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.db.QueryRow(ctx, selectUserColumns+` WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", id).Msg("profile lookup failed")
		return nil, storeError(err)
	}
	return u, nil
}

func (r *UserRepo) Insert(ctx context.Context, user *users.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, name, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.Name, string(user.Role), user.CreatedAt)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", user.ID).Msg("profile insert failed")
		return storeError(err)
	}
	return nil
}

// List returns every profile, newest first
func (r *UserRepo) List(ctx context.Context) ([]*users.User, error) {
	rows, err := r.db.Query(ctx, selectUserColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	list := make([]*users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storeError(err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}
	return list, nil
}

func (r *UserRepo) Update(ctx context.Context, user *users.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $2, email = $3, role = $4 WHERE id = $1`,
		user.ID, user.Name, user.Email, string(user.Role))
	if err != nil {
		return storeError(err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return storeError(err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		u    users.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = users.RoleType(role)
	return &u, nil
}

// storeError keeps the Postgres SQLSTATE so callers can spot unique violations
func storeError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &users.StoreError{Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}
	return &users.StoreError{Message: err.Error(), Err: err}
}
