// Package content provides the concrete SQL-based implementation of the
// content domain repository.
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/persistence/database"
)

// SQLContentRepository is the SQL-based implementation of the ContentRepository.
type SQLContentRepository struct {
	db            *database.DB
	environmentID string
	logger        *logging.ChanneledLogger
}

// NewSQLContentRepository creates a new instance of the repository.
func NewSQLContentRepository(db *database.DB, environmentID string, logger *logging.ChanneledLogger) *SQLContentRepository {
	return &SQLContentRepository{db: db, environmentID: environmentID, logger: logger}
}

// ListPublishedVersions returns every version published on this environment,
// joined with its parent content.
func (r *SQLContentRepository) ListPublishedVersions(ctx context.Context) ([]*content.CustomContentVersion, error) {
	start := time.Now()
	const query = `
		SELECT v.id, v.content_id, v.sequence, v.config, v.auto_start_rules, v.hide_rules, v.steps, v.created_at,
		       c.id, c.name, c.type, c.project_id
		FROM content_on_environments coe
		JOIN content_versions v ON v.id = coe.published_version_id
		JOIN contents c ON c.id = coe.content_id
		WHERE coe.environment_id = ? AND coe.published = 1
		ORDER BY c.id`

	rows, err := r.db.QueryContext(ctx, query, r.environmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*content.CustomContentVersion
	for rows.Next() {
		v := &content.ContentVersion{}
		c := &content.Content{}
		var config, autoStartRules, hideRules, steps sql.NullString
		var createdAtStr string

		err := rows.Scan(
			&v.ID, &v.ContentID, &v.Sequence, &config, &autoStartRules, &hideRules, &steps, &createdAtStr,
			&c.ID, &c.Name, &c.Type, &c.ProjectID,
		)
		if err != nil {
			return nil, err
		}
		if err := hydrateVersion(v, config, autoStartRules, hideRules, steps, createdAtStr); err != nil {
			return nil, err
		}
		versions = append(versions, &content.CustomContentVersion{Version: v, Content: c})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	database.CheckAndLogSlowQuery(r.logger, "ListPublishedVersions", time.Since(start), r.environmentID)
	return versions, nil
}

// GetContent retrieves a single piece of content by id.
func (r *SQLContentRepository) GetContent(ctx context.Context, contentID string) (*content.Content, error) {
	const query = `
		SELECT id, name, type, project_id
		FROM contents
		WHERE id = ?`

	c := &content.Content{}
	err := r.db.QueryRowContext(ctx, query, contentID).Scan(&c.ID, &c.Name, &c.Type, &c.ProjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return c, nil
}

// GetVersion retrieves a single content version by id.
func (r *SQLContentRepository) GetVersion(ctx context.Context, versionID string) (*content.ContentVersion, error) {
	const query = `
		SELECT id, content_id, sequence, config, auto_start_rules, hide_rules, steps, created_at
		FROM content_versions
		WHERE id = ?`

	v := &content.ContentVersion{}
	var config, autoStartRules, hideRules, steps sql.NullString
	var createdAtStr string

	err := r.db.QueryRowContext(ctx, query, versionID).Scan(
		&v.ID, &v.ContentID, &v.Sequence, &config, &autoStartRules, &hideRules, &steps, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	if err := hydrateVersion(v, config, autoStartRules, hideRules, steps, createdAtStr); err != nil {
		return nil, err
	}
	return v, nil
}

// GetContentOnEnvironment retrieves the publication record for a piece of
// content on this environment.
func (r *SQLContentRepository) GetContentOnEnvironment(ctx context.Context, contentID string) (*content.ContentOnEnvironment, error) {
	const query = `
		SELECT content_id, environment_id, published_version_id, published, published_at
		FROM content_on_environments
		WHERE content_id = ? AND environment_id = ?`

	coe := &content.ContentOnEnvironment{}
	var published int
	var publishedAt sql.NullString

	err := r.db.QueryRowContext(ctx, query, contentID, r.environmentID).Scan(
		&coe.ContentID, &coe.EnvironmentID, &coe.PublishedVersionID, &published, &publishedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	coe.Published = published == 1
	if publishedAt.Valid {
		coe.PublishedAt = parseTimestamp(publishedAt.String)
	}
	return coe, nil
}

// hydrateVersion decodes the JSON columns of a content version row.
func hydrateVersion(v *content.ContentVersion, config, autoStartRules, hideRules, steps sql.NullString, createdAtStr string) error {
	if config.Valid && config.String != "" {
		if err := json.Unmarshal([]byte(config.String), &v.Config); err != nil {
			return err
		}
	}
	if autoStartRules.Valid && autoStartRules.String != "" {
		if err := json.Unmarshal([]byte(autoStartRules.String), &v.AutoStartRules); err != nil {
			return err
		}
	}
	if hideRules.Valid && hideRules.String != "" {
		if err := json.Unmarshal([]byte(hideRules.String), &v.HideRules); err != nil {
			return err
		}
	}
	if steps.Valid && steps.String != "" {
		v.Steps = json.RawMessage(steps.String)
	}
	v.CreatedAt = parseTimestamp(createdAtStr)
	return nil
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
