package stream

import (
	"fmt"
	"sync/atomic"
	"testing"

	"clearlot/internal/database"
	"clearlot/internal/models"
	"clearlot/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

type brokerFixture struct {
	db            *gorm.DB
	users         *repository.UserRepository
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	notifications *repository.NotificationRepository
	broker        *Broker
}

func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:broker_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	f := &brokerFixture{
		db:            db,
		users:         repository.NewUserRepository(db),
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}
	f.broker = NewBroker(f.conversations, f.messages, f.notifications, f.users)
	return f
}

func (f *brokerFixture) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@test.local", Role: "BUYER"}
	require.NoError(t, f.users.Create(u))
	return u
}

func (f *brokerFixture) createConversation(t *testing.T, a, b uint) *models.Conversation {
	t.Helper()
	low, hi := models.SortPair(a, b)
	conv := &models.Conversation{
		ParticipantLow: low,
		ParticipantHi:  hi,
		IsActive:       true,
		UnreadCount:    datatypes.NewJSONType(map[string]int{}),
	}
	require.NoError(t, f.conversations.Create(conv))
	return conv
}

func TestConversationListInitialEmission(t *testing.T) {
	f := newBrokerFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	f.createConversation(t, alice.ID, bob.ID)

	var got [][]ConversationEntry
	unsub := f.broker.SubscribeToConversationList(alice.ID, alice.ID, func(list []ConversationEntry) {
		got = append(got, list)
	})
	defer unsub()

	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	require.Equal(t, bob.ID, got[0][0].Partner.ID)
	require.Equal(t, "bob", got[0][0].Partner.DisplayName)
}

func TestConversationListIdentityGating(t *testing.T) {
	f := newBrokerFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv := f.createConversation(t, alice.ID, bob.ID)

	called := 0
	unsub := f.broker.SubscribeToConversationList(alice.ID, bob.ID, func([]ConversationEntry) {
		called++
	})
	require.Zero(t, called)

	// the rejected subscriber never hears about later changes either
	f.broker.ConversationChanged(conv)
	require.Zero(t, called)

	// the no-op unsubscribe is safe to call, repeatedly
	unsub()
	unsub()
}

func TestMessageStreamRequiresParticipant(t *testing.T) {
	f := newBrokerFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	eve := f.createUser(t, "eve")
	conv := f.createConversation(t, alice.ID, bob.ID)

	require.NoError(t, f.db.Create(&models.Message{
		ConversationID: conv.ID, SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi", Type: "text",
	}).Error)

	var got [][]models.Message
	unsub := f.broker.SubscribeToConversationMessages(bob.ID, conv.ID, func(list []models.Message) {
		got = append(got, list)
	})
	defer unsub()
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	require.Equal(t, "hi", got[0][0].Content)

	eveCalled := 0
	f.broker.SubscribeToConversationMessages(eve.ID, conv.ID, func([]models.Message) {
		eveCalled++
	})
	f.broker.ConversationChanged(conv)
	require.Zero(t, eveCalled)
	require.Len(t, got, 2)
}

func TestSnapshotErrorDeliversEmptyList(t *testing.T) {
	f := newBrokerFixture(t)
	alice := f.createUser(t, "alice")
	require.NoError(t, f.db.Migrator().DropTable(&models.Conversation{}))

	var got [][]ConversationEntry
	unsub := f.broker.SubscribeToConversationList(alice.ID, alice.ID, func(list []ConversationEntry) {
		got = append(got, list)
	})
	defer unsub()

	// a store failure degrades to an empty emission, never a missing one
	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	require.Empty(t, got[0])
}

func TestNotificationSubscribersAreIndependent(t *testing.T) {
	f := newBrokerFixture(t)
	alice := f.createUser(t, "alice")

	var first, second int
	unsubFirst := f.broker.SubscribeToNotifications(alice.ID, alice.ID, func([]models.Notification) {
		first++
	})
	unsubSecond := f.broker.SubscribeToNotifications(alice.ID, alice.ID, func([]models.Notification) {
		second++
	})
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)

	unsubFirst()
	unsubFirst() // idempotent

	n := &models.Notification{UserID: alice.ID, Type: "system", Title: "t", Message: "m", Priority: "low"}
	require.NoError(t, f.notifications.Create(n))
	f.broker.NotificationCreated(n)

	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
	unsubSecond()
}

func TestNotificationCreatedFallsBackToEventOnly(t *testing.T) {
	f := newBrokerFixture(t)
	alice := f.createUser(t, "alice")

	var got [][]models.Notification
	unsub := f.broker.SubscribeToNotifications(alice.ID, alice.ID, func(list []models.Notification) {
		got = append(got, list)
	})
	defer unsub()
	require.Len(t, got, 1)

	// once the snapshot query fails, the live event is still delivered
	require.NoError(t, f.db.Migrator().DropTable(&models.Notification{}))
	n := &models.Notification{ID: 42, UserID: alice.ID, Type: "system", Title: "t", Message: "m", Priority: "low"}
	f.broker.NotificationCreated(n)

	require.Len(t, got, 2)
	require.Len(t, got[1], 1)
	require.EqualValues(t, 42, got[1][0].ID)
}

func TestConversationChangedReachesBothParticipants(t *testing.T) {
	f := newBrokerFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv := f.createConversation(t, alice.ID, bob.ID)

	var aliceSeen, bobSeen int
	unsubA := f.broker.SubscribeToConversationList(alice.ID, alice.ID, func([]ConversationEntry) { aliceSeen++ })
	defer unsubA()
	unsubB := f.broker.SubscribeToConversationList(bob.ID, bob.ID, func([]ConversationEntry) { bobSeen++ })
	defer unsubB()

	f.broker.ConversationChanged(conv)
	require.Equal(t, 2, aliceSeen)
	require.Equal(t, 2, bobSeen)
}
