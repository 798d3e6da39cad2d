package notifications

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	"github.com/motorhub/marketplace-backend/pkg/pagination"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  event_id TEXT,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX notifications_event_user_idx ON notifications (event_id, user_id) WHERE event_id IS NOT NULL`).Error)
	return db
}

func seedNotification(t *testing.T, repo Repository, userID uuid.UUID, createdAt time.Time) models.Notification {
	t.Helper()
	n := models.Notification{
		UserID:    userID,
		Type:      enums.NotificationTypeSubscriptionUpdate,
		Title:     "Subscription started",
		Message:   "Your basic plan is active.",
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), &n))
	return n
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	var seeded []models.Notification
	for i := 0; i < 3; i++ {
		seeded = append(seeded, seedNotification(t, repo, userID, base.Add(time.Duration(i)*time.Hour)))
	}
	seedNotification(t, repo, uuid.New(), base)

	page, next, err := repo.List(ctx, listNotificationsParams{UserID: userID, Limit: pagination.LimitWithBuffer(2)})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, seeded[2].ID, page[0].ID)
	assert.Equal(t, seeded[1].ID, page[1].ID)
	require.NotNil(t, next)

	page, next, err = repo.List(ctx, listNotificationsParams{UserID: userID, Limit: pagination.LimitWithBuffer(2), Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, seeded[0].ID, page[0].ID)
	assert.Nil(t, next)
}

func TestRepositoryMarkRead(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	n := seedNotification(t, repo, userID, time.Now().UTC())
	now := time.Now().UTC()

	result, err := repo.MarkRead(ctx, uuid.New(), n.ID, now)
	require.NoError(t, err)
	assert.False(t, result.Found, "other users cannot read it")

	result, err = repo.MarkRead(ctx, userID, n.ID, now)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, result.Updated)

	result, err = repo.MarkRead(ctx, userID, n.ID, now)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.False(t, result.Updated)

	unread, _, err := repo.List(ctx, listNotificationsParams{UserID: userID, Limit: pagination.LimitWithBuffer(10), UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestRepositoryMarkAllRead(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	seedNotification(t, repo, userID, time.Now().UTC())
	seedNotification(t, repo, userID, time.Now().UTC())

	count, err := repo.MarkAllRead(ctx, userID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepositoryRejectsDuplicateEvent(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	eventID := uuid.New()

	first := models.Notification{UserID: userID, EventID: &eventID, Type: enums.NotificationTypePaymentDue, Title: "t", Message: "m"}
	require.NoError(t, repo.Create(ctx, &first))
	second := models.Notification{UserID: userID, EventID: &eventID, Type: enums.NotificationTypePaymentDue, Title: "t", Message: "m"}
	require.Error(t, repo.Create(ctx, &second))
}

func TestRepositoryDeleteReadBeforeKeepsUnread(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	old := seedNotification(t, repo, userID, now.AddDate(0, -6, 0))
	recent := seedNotification(t, repo, userID, now.AddDate(0, -6, 0))
	unread := seedNotification(t, repo, userID, now.AddDate(0, -6, 0))

	_, err := repo.MarkRead(ctx, userID, old.ID, now.AddDate(0, -4, 0))
	require.NoError(t, err)
	_, err = repo.MarkRead(ctx, userID, recent.ID, now.AddDate(0, 0, -1))
	require.NoError(t, err)

	deleted, err := repo.DeleteReadBefore(ctx, nil, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, _, err := repo.List(ctx, listNotificationsParams{UserID: userID, Limit: pagination.LimitWithBuffer(10)})
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, n := range remaining {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{recent.ID, unread.ID}, ids)
}
