package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourloop/tourloop-go/internal/domain/repositories"
	domain "github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/infrastructure/persistence/database"
)

func newTestRepo(t *testing.T) *SQLSessionRepository {
	t.Helper()
	db, err := database.NewConnection("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.EnsureSchema(context.Background()))
	return NewSQLSessionRepository(db, "env-test", nil)
}

func TestCreateAndGetSession(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := &domain.BizSession{
		ID:        "sess-1",
		ContentID: "content-1",
		VersionID: "version-1",
		BizUserID: "user-1",
		State:     domain.StateActive,
	}
	start := &domain.BizEvent{
		ID:           "event-1",
		BizUserID:    "user-1",
		EventID:      "evdef-flow-started",
		BizSessionID: "sess-1",
		Data:         map[string]any{"reason": domain.StartReasonAutoStart},
	}
	require.NoError(t, repo.Create(ctx, s, start))

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "content-1", got.ContentID)
	assert.Equal(t, domain.StateActive, got.State)
	assert.False(t, got.CreatedAt.IsZero())

	events, err := repo.ListEvents(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.StartReasonAutoStart, events[0].Data["reason"])
}

func TestGetSessionNotFoundIsNilNil(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestByUserKeepsMostRecentPerContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	sessions := []*domain.BizSession{
		{ID: "s1", ContentID: "c1", VersionID: "v1", BizUserID: "u1", State: domain.StateEnded, CreatedAt: base},
		{ID: "s2", ContentID: "c1", VersionID: "v1", BizUserID: "u1", State: domain.StateActive, CreatedAt: base.Add(time.Hour)},
		{ID: "s3", ContentID: "c2", VersionID: "v2", BizUserID: "u1", State: domain.StateActive, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "s4", ContentID: "c1", VersionID: "v1", BizUserID: "other", State: domain.StateActive, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, s := range sessions {
		require.NoError(t, repo.Create(ctx, s, nil))
	}

	latest, err := repo.LatestByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "s2", latest["c1"].ID)
	assert.Equal(t, "s3", latest["c2"].ID)
}

func TestWithTxSeesEndedStateAtRecheck(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := &domain.BizSession{
		ID:        "sess-1",
		ContentID: "content-1",
		VersionID: "version-1",
		BizUserID: "user-1",
		State:     domain.StateActive,
	}
	require.NoError(t, repo.Create(ctx, s, nil))

	// End the session, then verify a transactional re-fetch observes the
	// terminal state and the caller can abort without side effects.
	err := repo.WithTx(ctx, func(tx repositories.SessionTx) error {
		return tx.UpdateSessionProgressState(ctx, "sess-1", nil, domain.StateEnded)
	})
	require.NoError(t, err)

	inserted := false
	err = repo.WithTx(ctx, func(tx repositories.SessionTx) error {
		current, err := tx.GetSession(ctx, "sess-1")
		require.NoError(t, err)
		require.NotNil(t, current)
		if current.Ended() {
			return nil
		}
		inserted = true
		return tx.InsertEvent(ctx, &domain.BizEvent{ID: "e1", BizUserID: "user-1", EventID: "x", BizSessionID: "sess-1"})
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	events, err := repo.ListEvents(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := &domain.BizSession{ID: "sess-1", ContentID: "c1", VersionID: "v1", BizUserID: "u1"}
	require.NoError(t, repo.Create(ctx, s, nil))

	err := repo.WithTx(ctx, func(tx repositories.SessionTx) error {
		if err := tx.InsertEvent(ctx, &domain.BizEvent{ID: "e1", BizUserID: "u1", EventID: "x", BizSessionID: "sess-1"}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	events, err := repo.ListEvents(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUpdateVersion(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := &domain.BizSession{ID: "sess-1", ContentID: "c1", VersionID: "v1", BizUserID: "u1"}
	require.NoError(t, repo.Create(ctx, s, nil))

	require.NoError(t, repo.UpdateVersion(ctx, "sess-1", "v2"))

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.VersionID)
}
