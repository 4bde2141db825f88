package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/genmode/internal/persistence"
)

// ProfileRepository implements persistence.ProfileRepository
type ProfileRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(pool *ConnectionPool) *ProfileRepository {
	return &ProfileRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// CreateProfile inserts a profile for an existing user. A second profile for the same
// user is reported as persistence.ErrConflict.
func (r *ProfileRepository) CreateProfile(ctx context.Context, profile persistence.Profile) (persistence.Profile, error) {
	if strings.TrimSpace(profile.ID) == "" {
		return persistence.Profile{}, persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	profile.Name = strings.TrimSpace(profile.Name)
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query := `
		INSERT INTO profiles (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.helper.Exec(ctx, query, profile.ID, profile.Name, formatTime(now), formatTime(now)); err != nil {
		return persistence.Profile{}, r.mapper.MapError(err)
	}
	return profile, nil
}

// GetProfile retrieves the profile of user id.
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (persistence.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return persistence.Profile{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, name, created_at, updated_at
		FROM profiles
		WHERE id = ?
	`
	var (
		profile                  persistence.Profile
		createdAtStr, updatedStr string
	)
	err := r.helper.QueryRow(ctx, query, id).Scan(&profile.ID, &profile.Name, &createdAtStr, &updatedStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Profile{}, persistence.ErrNotFound
		}
		return persistence.Profile{}, r.mapper.MapError(err)
	}

	if profile.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Profile{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if profile.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Profile{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return profile, nil
}
