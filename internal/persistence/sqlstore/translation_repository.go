package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/genmode/internal/persistence"
)

// TranslationRepository implements persistence.TranslationRepository
type TranslationRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
	newID  func() string
}

// NewTranslationRepository creates a new translation repository
func NewTranslationRepository(pool *ConnectionPool) *TranslationRepository {
	return &TranslationRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateTranslation inserts a record, assigning its id and creation time.
func (r *TranslationRepository) CreateTranslation(ctx context.Context, t persistence.Translation) (persistence.Translation, error) {
	if strings.TrimSpace(t.UserID) == "" || strings.TrimSpace(t.Persona) == "" {
		return persistence.Translation{}, persistence.ErrConstraintViolation
	}

	t.ID = r.newID()
	t.CreatedAt = r.now().UTC()

	query := `
		INSERT INTO translations (id, user_id, input_text, output_text, persona, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.helper.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.InputText,
		t.OutputText,
		t.Persona,
		formatTime(t.CreatedAt),
	); err != nil {
		return persistence.Translation{}, r.mapper.MapError(err)
	}
	return t, nil
}

// ListTranslationsByUser returns the user's records, newest first. A created_at value that
// cannot be parsed is returned as the zero time.
func (r *TranslationRepository) ListTranslationsByUser(ctx context.Context, userID string) ([]persistence.Translation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []persistence.Translation{}, nil
	}

	rows, err := r.helper.Query(ctx, `
		SELECT id, user_id, input_text, output_text, persona, created_at
		FROM translations
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	translations := make([]persistence.Translation, 0)
	for rows.Next() {
		var (
			t            persistence.Translation
			createdAtStr string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.InputText, &t.OutputText, &t.Persona, &createdAtStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if createdAt, err := parseTime(createdAtStr); err == nil {
			t.CreatedAt = createdAt
		}
		translations = append(translations, t)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return translations, nil
}
