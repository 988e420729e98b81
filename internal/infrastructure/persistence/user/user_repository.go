// Package user provides the concrete SQL-based implementations of the user
// domain repositories (BizUser, BizCompany, segments, attributes).
package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/user"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/persistence/database"
)

// SQLUserRepository is the SQL-based implementation of the UserRepository.
type SQLUserRepository struct {
	db            *database.DB
	environmentID string
	logger        *logging.ChanneledLogger
}

// NewSQLUserRepository creates a new instance of the repository.
func NewSQLUserRepository(db *database.DB, environmentID string, logger *logging.ChanneledLogger) *SQLUserRepository {
	return &SQLUserRepository{db: db, environmentID: environmentID, logger: logger}
}

// GetByExternalID retrieves a BizUser by the external id the SDK supplies.
func (r *SQLUserRepository) GetByExternalID(ctx context.Context, externalID string) (*user.BizUser, error) {
	start := time.Now()
	const query = `
		SELECT id, external_id, biz_company_id, data, created_at
		FROM biz_users
		WHERE external_id = ?`

	u := &user.BizUser{}
	var companyID, data sql.NullString
	var createdAtStr string

	err := r.db.QueryRowContext(ctx, query, externalID).Scan(
		&u.ID, &u.ExternalID, &companyID, &data, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if companyID.Valid {
		u.BizCompanyID = companyID.String
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &u.Data); err != nil {
			return nil, err
		}
	}
	u.CreatedAt = parseTimestamp(createdAtStr)

	database.CheckAndLogSlowQuery(r.logger, "GetBizUserByExternalID", time.Since(start), r.environmentID)
	return u, nil
}

// GetCompany retrieves a BizCompany by id.
func (r *SQLUserRepository) GetCompany(ctx context.Context, bizCompanyID string) (*user.BizCompany, error) {
	const query = `
		SELECT id, external_id, data, created_at
		FROM biz_companies
		WHERE id = ?`

	c := &user.BizCompany{}
	var data sql.NullString
	var createdAtStr string

	err := r.db.QueryRowContext(ctx, query, bizCompanyID).Scan(
		&c.ID, &c.ExternalID, &data, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &c.Data); err != nil {
			return nil, err
		}
	}
	c.CreatedAt = parseTimestamp(createdAtStr)
	return c, nil
}

// Upsert saves a BizUser, replacing the attribute blob on conflict.
func (r *SQLUserRepository) Upsert(ctx context.Context, u *user.BizUser) error {
	const query = `
		INSERT INTO biz_users (id, external_id, biz_company_id, data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			biz_company_id = excluded.biz_company_id,
			data = excluded.data`

	data, err := json.Marshal(u.Data)
	if err != nil {
		return err
	}

	var companyID any
	if u.BizCompanyID != "" {
		companyID = u.BizCompanyID
	}

	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, query,
		u.ID, u.ExternalID, companyID, string(data), createdAt.Format(time.RFC3339),
	)
	return err
}

// ListSegmentIDs returns the ids of every segment the user is a member of.
func (r *SQLUserRepository) ListSegmentIDs(ctx context.Context, bizUserID string) ([]string, error) {
	const query = `
		SELECT segment_id
		FROM segment_memberships
		WHERE biz_user_id = ?`

	rows, err := r.db.QueryContext(ctx, query, bizUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAttributes returns the project's attribute definitions.
func (r *SQLUserRepository) ListAttributes(ctx context.Context) ([]*user.Attribute, error) {
	const query = `
		SELECT id, code_name, data_type, project_id
		FROM attributes`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attrs []*user.Attribute
	for rows.Next() {
		a := &user.Attribute{}
		if err := rows.Scan(&a.ID, &a.CodeName, &a.DataType, &a.ProjectID); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

// parseTimestamp parses stored timestamps, tolerating the legacy space-
// separated format.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
