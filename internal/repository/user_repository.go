package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/ruz-auth/internal/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	// Create inserts user and fills its ID and timestamps. ErrDuplicatedEntry on a taken phone.
	Create(ctx context.Context, user *domain.User) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	GetStatus(ctx context.Context, id int64) (domain.UserStatus, error)
	CompareAndSetStatus(ctx context.Context, id int64, from, to domain.UserStatus) (bool, error)
}

type userRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sqlx.DB, log *slog.Logger) UserRepository {
	if log == nil {
		log = slog.Default()
	}

	return &userRepository{
		db:  db,
		log: log,
	}
}

const userColumns = `id, phone, password_hash, first_name, last_name, status, is_verified, created_at, updated_at`

// FindByPhone retrieves a user by phone number.
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch user by phone", slog.String("phone", phone), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user by phone: %w", err)
	}

	return &user, nil
}

// FindByID retrieves a user by primary key.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user by id: %w", err)
	}

	return &user, nil
}

// Create persists a new user record in the database.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (phone, password_hash, first_name, last_name, status, is_verified)
		VALUES (:phone, :password_hash, :first_name, :last_name, :status, :is_verified)
		RETURNING id, created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, user)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatedEntry
		}

		if r.log != nil {
			r.log.Error("failed to create user", slog.String("phone", user.Phone), slog.Any("error", err))
		}
		return fmt.Errorf("insert user: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return fmt.Errorf("scan inserted user: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatedEntry
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// UpdatePasswordHash replaces the stored hash without touching verification state.
func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update password hash", slog.Int64("user_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("update password hash: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetStatus returns the status column only.
func (r *userRepository) GetStatus(ctx context.Context, id int64) (domain.UserStatus, error) {
	var status domain.UserStatus
	if err := r.db.GetContext(ctx, &status, `SELECT status FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select user status: %w", err)
	}

	return status, nil
}

// CompareAndSetStatus updates the status only when it still equals from. Moving to active
// also marks the user verified, in the same statement.
func (r *userRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.UserStatus) (bool, error) {
	const query = `
		UPDATE users
		SET status = $3, is_verified = ($3 = 'active'), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update user status", slog.Int64("user_id", id), slog.Any("error", err))
		}
		return false, fmt.Errorf("update user status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update user status: %w", err)
	}

	return affected == 1, nil
}
