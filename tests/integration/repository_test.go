package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifier/internal/notification"
	pkgerrors "notifier/pkg/errors"
)

func testNotification(eventID string) *notification.Notification {
	return &notification.Notification{
		EventID:   eventID,
		EventType: "user.created",
		Title:     "Novo Usuário Criado",
		Message:   "Usuário Ana criado com sucesso",
		Data:      `{"userName":"Ana"}`,
		EventTime: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestRepositoryCreateAndFind(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	n := testNotification("evt-create-1")
	created, err := repo.Create(ctx, n)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	found, err := repo.FindByEventID(ctx, "evt-create-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, n.ID, found.ID)
	assert.Equal(t, "Novo Usuário Criado", found.Title)
	assert.Equal(t, `{"userName":"Ana"}`, found.Data)
	assert.False(t, found.Read)
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	first := testNotification("evt-dup-1")
	created, err := repo.Create(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	second := testNotification("evt-dup-1")
	second.Title = "Different Title"
	created, err = repo.Create(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID, "duplicate create returns the stored row")
	assert.Equal(t, "Novo Usuário Criado", second.Title, "stored row wins over the duplicate payload")
}

func TestRepositoryConcurrentCreateSameEvent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	createdCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.Create(ctx, testNotification("evt-race-1"))
			results <- err
			createdCount <- created
		}()
	}
	wg.Wait()
	close(results)
	close(createdCount)

	for err := range results {
		require.NoError(t, err)
	}

	total := 0
	for created := range createdCount {
		if created {
			total++
		}
	}
	assert.Equal(t, 1, total, "exactly one concurrent create wins")

	var rows int
	require.NoError(t, infra.PostgresDB.QueryRowContext(ctx,
		"SELECT count(*) FROM notifications WHERE event_id = $1", "evt-race-1",
	).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestRepositoryListOrdering(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		n := testNotification(fmt.Sprintf("evt-list-%d", i))
		n.EventTime = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Create(ctx, n)
		require.NoError(t, err)
	}

	items, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "evt-list-2", items[0].EventID, "newest first")
	assert.Equal(t, "evt-list-0", items[2].EventID)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "evt-list-1", page[0].EventID)
}

func TestRepositoryListUnread(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	read := testNotification("evt-unread-1")
	_, err := repo.Create(ctx, read)
	require.NoError(t, err)
	_, err = repo.MarkRead(ctx, read.ID)
	require.NoError(t, err)

	unread := testNotification("evt-unread-2")
	_, err = repo.Create(ctx, unread)
	require.NoError(t, err)

	items, err := repo.ListUnread(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "evt-unread-2", items[0].EventID)
}

func TestRepositoryMarkRead(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	n := testNotification("evt-read-1")
	_, err := repo.Create(ctx, n)
	require.NoError(t, err)

	updated, err := repo.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, updated.Read)
	assert.True(t, updated.UpdatedAt.After(n.UpdatedAt) || updated.UpdatedAt.Equal(n.UpdatedAt))

	// Idempotent
	again, err := repo.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, again.Read)
}

func TestRepositoryMarkReadMissing(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())

	_, err := repo.MarkRead(context.Background(), 999999)
	require.Error(t, err)
	assert.Equal(t, 404, pkgerrors.ToHTTPStatus(err))
}

func TestRepositoryGetByIDMissing(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := notification.NewPostgresRepository(infra.PostgresDB, createTestLogger())

	_, err := repo.GetByID(context.Background(), 999999)
	require.Error(t, err)
	assert.Equal(t, 404, pkgerrors.ToHTTPStatus(err))
}
