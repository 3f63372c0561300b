package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-auth/internal/domain"
)

// UserRepository defines the read side of the account store the session flows need.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, id string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, email, display_name, role, store_name, store_type, avatar_ref,
               email_verified, is_active, token_version, created_at, updated_at
        FROM users WHERE id=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.StoreName,
		&user.StoreType,
		&user.AvatarRef,
		&user.EmailVerified,
		&user.IsActive,
		&user.TokenVersion,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, id string) error {
	const query = `
        UPDATE users SET email_verified=TRUE, updated_at=NOW()
        WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
