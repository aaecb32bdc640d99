package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"clearlot/internal/database"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/internal/stream"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// testEnv bundles the repositories and services most tests need.
type testEnv struct {
	db            *gorm.DB
	users         *repository.UserRepository
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	notifications *repository.NotificationRepository
	offers        *repository.OfferRepository
	watchlist     *repository.WatchlistRepository
	purchases     *repository.PurchaseRepository
	alerts        *repository.AdminAlertRepository
	dedup         *repository.GormDedupStore
	broker        *stream.Broker
	notifier      *Notifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		notifications: repository.NewNotificationRepository(db),
		offers:        repository.NewOfferRepository(db),
		watchlist:     repository.NewWatchlistRepository(db),
		purchases:     repository.NewPurchaseRepository(db),
		alerts:        repository.NewAdminAlertRepository(db),
		dedup:         repository.NewGormDedupStore(db, 100),
	}
	env.broker = stream.NewBroker(env.conversations, env.messages, env.notifications, env.users)
	env.notifier = NewNotifier(env.notifications, env.users, env.purchases, env.offers, env.watchlist, env.dedup, env.broker, 0.05)
	return env
}

func (e *testEnv) createUser(t *testing.T, username, role string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@test.local",
		Role:     role,
	}
	require.NoError(t, e.users.Create(u))
	return u
}

func (e *testEnv) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	list, err := e.notifications.ListByUserID(userID, 100, 0)
	require.NoError(t, err)
	return list
}
