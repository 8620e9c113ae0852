package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/crm/backend/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenantCtx(uid uuid.UUID) context.Context {
	return tenant.WithTenancy(context.Background(), tenant.Tenancy{
		ID:       uuid.New(),
		UID:      uid,
		Slug:     "acme",
		Database: "tenant_acme",
	})
}

func TestInMemoryProgressStore_AppendAndGet(t *testing.T) {
	store := NewInMemoryProgressStore()
	ctx := context.Background()
	batchUID := uuid.New()

	require.NoError(t, store.Append(ctx, batchUID, imports.Entry{
		Outcome: imports.OutcomeSuccess, Filename: "a.pdf", Name: "Jane Doe",
	}))
	require.NoError(t, store.Append(ctx, batchUID, imports.Entry{
		Outcome: imports.OutcomeSkipped, Filename: "b.pdf", Reason: "duplicate contact",
	}))
	require.NoError(t, store.Append(ctx, batchUID, imports.Entry{
		Outcome: imports.OutcomeFailed, Filename: "c.pdf", Reason: "parse error",
	}))

	p, err := store.Get(ctx, batchUID)
	require.NoError(t, err)
	assert.Len(t, p.Success, 1)
	assert.Len(t, p.Failed, 1)
	assert.Len(t, p.Skipped, 1)
	assert.Equal(t, "duplicate contact", p.Skipped[0].Reason)

	// unknown batch yields empty progress, not an error
	empty, err := store.Get(ctx, uuid.New())
	require.NoError(t, err)
	s, f, k := empty.Counts()
	assert.Zero(t, s+f+k)
}

func TestInMemoryProgressStore_ConcurrentAppends(t *testing.T) {
	store := NewInMemoryProgressStore()
	ctx := context.Background()
	batchUID := uuid.New()

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = store.Append(ctx, batchUID, imports.Entry{
					Outcome:  imports.OutcomeSuccess,
					Filename: fmt.Sprintf("cv-%d-%d.pdf", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	p, err := store.Get(ctx, batchUID)
	require.NoError(t, err)
	// no append may be lost to a concurrent writer
	assert.Len(t, p.Success, workers*perWorker)
}

func TestInMemoryTenantCache_Isolation(t *testing.T) {
	c := NewInMemoryTenantCache()

	acme := tenantCtx(uuid.New())
	globex := tenantCtx(uuid.New())

	require.NoError(t, c.Set(acme, "greeting", "hello", 0))

	_, found, err := c.Get(globex, "greeting")
	require.NoError(t, err)
	assert.False(t, found, "tenants must not see each other's cache entries")

	v, found, err := c.Get(acme, "greeting")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", v)
}

func TestInMemoryTenantCache_RequiresTenancy(t *testing.T) {
	c := NewInMemoryTenantCache()

	_, _, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrTenantRequired)

	assert.ErrorIs(t, c.Set(context.Background(), "k", "v", 0), ErrTenantRequired)
}

func TestInMemoryTenantCache_TTLAndFlush(t *testing.T) {
	c := NewInMemoryTenantCache()
	ctx := tenantCtx(uuid.New())

	require.NoError(t, c.Set(ctx, "short", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, found, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Flush(ctx))

	_, found, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryTenantCache_Delete(t *testing.T) {
	c := NewInMemoryTenantCache()
	ctx := tenantCtx(uuid.New())

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
