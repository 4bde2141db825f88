package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/genmode/internal/persistence"
)

// UserRepository implements persistence.UserRepository
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// CreateUser inserts a new user. Emails are stored lower-cased and must be unique.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	email := normalizeEmail(user.Email)
	if email == "" {
		return persistence.ErrConstraintViolation
	}

	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode user metadata: %w", err)
	}
	if user.Metadata == nil {
		metadata = []byte("{}")
	}

	now := r.now().UTC()
	query := `
		INSERT INTO users (id, email, password_hash, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.helper.Exec(ctx, query,
		user.ID,
		email,
		user.PasswordHash,
		string(metadata),
		formatTime(now),
		formatTime(now),
	); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.getOne(ctx, "id = ?", strings.TrimSpace(id))
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.getOne(ctx, "email = ?", normalizeEmail(email))
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg string) (persistence.User, error) {
	if arg == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, email, password_hash, metadata, created_at, updated_at
		FROM users
		WHERE ` + where

	var (
		user                   persistence.User
		metadata               string
		createdAtStr, updateAt string
	)
	err := r.helper.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&metadata,
		&createdAtStr,
		&updateAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(err)
	}

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &user.Metadata); err != nil {
			return persistence.User{}, fmt.Errorf("failed to decode user metadata: %w", err)
		}
	}
	if user.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updateAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
