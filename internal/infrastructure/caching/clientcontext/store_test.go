package clientcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourloop/tourloop-go/internal/domain/rules"
)

func TestStoreSetGetRoundTrip(t *testing.T) {
	store := NewStore(NewMemoryBackend(), time.Minute, nil)
	ctx := context.Background()

	cc := &rules.ClientContext{PageURL: "https://app.example.com/home"}
	store.Set(ctx, "env-1", "user-1", cc)

	entry := store.Get(ctx, "env-1", "user-1")
	require.NotNil(t, entry)
	assert.Equal(t, "https://app.example.com/home", entry.ClientContext.PageURL)
	assert.True(t, store.Has(ctx, "env-1", "user-1"))

	// Keys are scoped per environment and user.
	assert.Nil(t, store.Get(ctx, "env-2", "user-1"))
	assert.Nil(t, store.Get(ctx, "env-1", "user-2"))
}

func TestStoreGetMissIsNil(t *testing.T) {
	store := NewStore(NewMemoryBackend(), time.Minute, nil)
	assert.Nil(t, store.Get(context.Background(), "env-1", "user-1"))
	assert.False(t, store.Has(context.Background(), "env-1", "user-1"))
}

func TestStoreEntryExpires(t *testing.T) {
	store := NewStore(NewMemoryBackend(), 10*time.Millisecond, nil)
	ctx := context.Background()

	store.Set(ctx, "env-1", "user-1", &rules.ClientContext{PageURL: "/a"})
	require.NotNil(t, store.Get(ctx, "env-1", "user-1"))

	time.Sleep(25 * time.Millisecond)
	assert.Nil(t, store.Get(ctx, "env-1", "user-1"))
}

func TestStoreUpdateRequiresExistingEntry(t *testing.T) {
	store := NewStore(NewMemoryBackend(), time.Minute, nil)
	ctx := context.Background()

	assert.False(t, store.Update(ctx, "env-1", "user-1", &rules.ClientContext{PageURL: "/b"}))

	store.Set(ctx, "env-1", "user-1", &rules.ClientContext{PageURL: "/a"})
	createdAt := store.Get(ctx, "env-1", "user-1").CreatedAt

	assert.True(t, store.Update(ctx, "env-1", "user-1", &rules.ClientContext{PageURL: "/b"}))

	entry := store.Get(ctx, "env-1", "user-1")
	require.NotNil(t, entry)
	assert.Equal(t, "/b", entry.ClientContext.PageURL)
	assert.Equal(t, createdAt, entry.CreatedAt)
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(NewMemoryBackend(), time.Minute, nil)
	ctx := context.Background()

	store.Set(ctx, "env-1", "user-1", &rules.ClientContext{PageURL: "/a"})
	store.Remove(ctx, "env-1", "user-1")
	assert.Nil(t, store.Get(ctx, "env-1", "user-1"))
}

type failingBackend struct{}

func (failingBackend) Set(context.Context, string, string, time.Duration) error {
	return assert.AnError
}
func (failingBackend) Get(context.Context, string) (string, error) { return "", assert.AnError }
func (failingBackend) Delete(context.Context, string) error        { return assert.AnError }

func TestStoreAbsorbsBackendFailures(t *testing.T) {
	store := NewStore(failingBackend{}, time.Minute, nil)
	ctx := context.Background()

	store.Set(ctx, "env-1", "user-1", &rules.ClientContext{PageURL: "/a"})
	assert.Nil(t, store.Get(ctx, "env-1", "user-1"))
	assert.False(t, store.Update(ctx, "env-1", "user-1", &rules.ClientContext{}))
	assert.False(t, store.Has(ctx, "env-1", "user-1"))
	store.Remove(ctx, "env-1", "user-1")
}
