package service

import (
	"context"
	"testing"
	"time"

	"clearlot/internal/domain"
	"clearlot/internal/models"
	"clearlot/internal/stream"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newChatService(env *testEnv) *ChatService {
	return NewChatService(env.db, env.conversations, env.messages, env.broker, env.notifier, nil)
}

func TestCreateOrGetConversationIdempotent(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)

	first, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	// same pair in reversed order resolves to the same conversation
	second, err := svc.CreateOrGetConversation(bob.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, env.db.Model(&models.Conversation{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Zero(t, first.UnreadFor(alice.ID))
	require.Zero(t, first.UnreadFor(bob.ID))
}

func TestCreateOrGetConversationReopensClosedThread(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)

	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, env.conversations.Deactivate(conv.ID))

	reopened, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, conv.ID, reopened.ID)
	require.True(t, reopened.IsActive)
}

func TestCreateOrGetConversationRejectsSelf(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)

	_, err := svc.CreateOrGetConversation(alice.ID, alice.ID)
	require.ErrorIs(t, err, domain.ErrSameUser)
}

func TestSendMessageUpdatesConversationSummary(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	msg, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID,
		ReceiverID:     bob.ID,
		Content:        "20 pallets still available?",
	})
	require.NoError(t, err)
	require.Equal(t, domain.MessageTypeText, msg.Type)

	updated, err := env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated.UnreadFor(bob.ID))
	require.Zero(t, updated.UnreadFor(alice.ID))
	require.NotNil(t, updated.LastMessageAt)
	last := updated.LastMessage.Data()
	require.NotNil(t, last)
	require.Equal(t, msg.ID, last.ID)
	require.Equal(t, "20 pallets still available?", last.Content)

	// every further send bumps the receiver's counter by one
	_, err = svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "second",
	})
	require.NoError(t, err)
	updated, err = env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, updated.UnreadFor(bob.ID))
}

func TestSendMessagePushesConversationListUpdate(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	var emissions [][]stream.ConversationEntry
	unsub := env.broker.SubscribeToConversationList(bob.ID, bob.ID, func(list []stream.ConversationEntry) {
		emissions = append(emissions, list)
	})
	defer unsub()
	require.Len(t, emissions, 1) // initial snapshot

	_, err = svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "hello",
	})
	require.NoError(t, err)

	latest := emissions[len(emissions)-1]
	require.Len(t, latest, 1)
	require.Equal(t, conv.ID, latest[0].ID)
	require.Equal(t, 1, latest[0].UnreadCount)
	require.NotNil(t, latest[0].LastMessage)
	require.Equal(t, "hello", latest[0].LastMessage.Content)
	require.Equal(t, alice.ID, latest[0].Partner.ID)
}

func TestSendMessageRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	eve := env.createUser(t, "eve", domain.RoleBuyer)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(eve.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "hi",
	})
	require.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: eve.ID, Content: "hi",
	})
	require.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestMessageOrderingIsStable(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := svc.SendMessage(alice.ID, SendMessageInput{
			ConversationID: conv.ID, ReceiverID: bob.ID, Content: content,
		})
		require.NoError(t, err)
	}

	list, err := env.messages.ListByConversation(conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "one", list[0].Content)
	require.Equal(t, "two", list[1].Content)
	require.Equal(t, "three", list[2].Content)
}

func TestMarkMessagesAsRead(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(alice.ID, SendMessageInput{
			ConversationID: conv.ID, ReceiverID: bob.ID, Content: "hello",
		})
		require.NoError(t, err)
	}

	require.NoError(t, svc.MarkMessagesAsRead(conv.ID, bob.ID))

	updated, err := env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Zero(t, updated.UnreadFor(bob.ID))

	unread, err := env.messages.CountUnread(conv.ID, bob.ID)
	require.NoError(t, err)
	require.Zero(t, unread)

	// reading is scoped to the caller; an outsider is rejected
	eve := env.createUser(t, "eve", domain.RoleBuyer)
	require.ErrorIs(t, svc.MarkMessagesAsRead(conv.ID, eve.ID), domain.ErrNotParticipant)
}

func TestEditMessageRefreshesSummary(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	first, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "first",
	})
	require.NoError(t, err)
	last, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "last",
	})
	require.NoError(t, err)

	// editing a non-latest message leaves the summary alone
	_, err = svc.EditMessage(first.ID, alice.ID, "first edited")
	require.NoError(t, err)
	updated, err := env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Equal(t, "last", updated.LastMessage.Data().Content)

	// editing the latest message rewrites the summary
	_, err = svc.EditMessage(last.ID, alice.ID, "last edited")
	require.NoError(t, err)
	updated, err = env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Equal(t, "last edited", updated.LastMessage.Data().Content)

	// only the sender may edit
	_, err = svc.EditMessage(last.ID, bob.ID, "hijack")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	edited, err := env.messages.GetByID(last.ID)
	require.NoError(t, err)
	require.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)
}

func TestDeleteMessageRequiresSender(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	msg, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "oops",
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteMessage(context.Background(), msg.ID, bob.ID), domain.ErrPermissionDenied)
	require.NoError(t, svc.DeleteMessage(context.Background(), msg.ID, alice.ID))

	list, err := env.messages.ListByConversation(conv.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestDeleteLatestMessageRewritesSummary(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	first, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "first",
	})
	require.NoError(t, err)
	last, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "last",
	})
	require.NoError(t, err)

	// deleting the latest message moves the summary back to the new tail
	require.NoError(t, svc.DeleteMessage(context.Background(), last.ID, alice.ID))
	updated, err := env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	summary := updated.LastMessage.Data()
	require.NotNil(t, summary)
	require.Equal(t, first.ID, summary.ID)
	require.Equal(t, "first", summary.Content)
	require.NotNil(t, updated.LastMessageAt)
	require.WithinDuration(t, first.CreatedAt, *updated.LastMessageAt, time.Second)

	// deleting the only remaining message clears the summary entirely
	require.NoError(t, svc.DeleteMessage(context.Background(), first.ID, alice.ID))
	updated, err = env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Nil(t, updated.LastMessage.Data())
	require.Nil(t, updated.LastMessageAt)
}

func TestDeleteNonLatestMessageKeepsSummary(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	first, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "first",
	})
	require.NoError(t, err)
	last, err := svc.SendMessage(alice.ID, SendMessageInput{
		ConversationID: conv.ID, ReceiverID: bob.ID, Content: "last",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(context.Background(), first.ID, alice.ID))
	updated, err := env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Equal(t, last.ID, updated.LastMessage.Data().ID)
}

func TestRecountUnreadRepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatService(env)
	alice := env.createUser(t, "alice", domain.RoleBuyer)
	bob := env.createUser(t, "bob", domain.RoleSeller)
	conv, err := svc.CreateOrGetConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := svc.SendMessage(alice.ID, SendMessageInput{
			ConversationID: conv.ID, ReceiverID: bob.ID, Content: "hi",
		})
		require.NoError(t, err)
	}

	// corrupt the counter to simulate drift
	bogus := map[string]int{
		models.UnreadKey(alice.ID): 9,
		models.UnreadKey(bob.ID):   99,
	}
	require.NoError(t, env.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Update("unread_count", datatypes.NewJSONType(bogus)).Error)

	require.NoError(t, svc.RecountUnread(conv.ID))

	updated, err := env.conversations.GetByID(conv.ID)
	require.NoError(t, err)
	require.Equal(t, 4, updated.UnreadFor(bob.ID))
	require.Zero(t, updated.UnreadFor(alice.ID))
}
