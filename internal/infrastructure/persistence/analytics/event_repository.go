// Package analytics provides the SQL-based implementation of the
// project-level event definition repository.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/infrastructure/persistence/database"
)

// SQLEventRepository is the SQL-based implementation of the EventRepository.
type SQLEventRepository struct {
	db *database.DB
}

// NewSQLEventRepository creates a new instance of the repository.
func NewSQLEventRepository(db *database.DB) *SQLEventRepository {
	return &SQLEventRepository{db: db}
}

// GetByCodeName retrieves an event definition by its code name.
func (r *SQLEventRepository) GetByCodeName(ctx context.Context, codeName string) (*session.Event, error) {
	const query = `
		SELECT id, code_name, project_id, attribute_codes
		FROM events
		WHERE code_name = ?`

	ev := &session.Event{}
	var attributeCodes sql.NullString

	err := r.db.QueryRowContext(ctx, query, codeName).Scan(
		&ev.ID, &ev.CodeName, &ev.ProjectID, &attributeCodes,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if attributeCodes.Valid && attributeCodes.String != "" {
		if err := json.Unmarshal([]byte(attributeCodes.String), &ev.AttributeCodes); err != nil {
			return nil, err
		}
	}
	return ev, nil
}
