package stream

import (
	"sync"
	"time"

	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Unsubscribe permanently silences one subscriber. Safe to call repeatedly.
type Unsubscribe func()

// Participant is the joined public profile shown next to a conversation.
type Participant struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	CompanyName string `json:"company_name"`
	AvatarURL   string `json:"avatar_url"`
	IsOnline    bool   `json:"is_online"`
}

// ConversationEntry is one row of a user's conversation list.
type ConversationEntry struct {
	ID            uint                   `json:"id"`
	Partner       Participant            `json:"partner"`
	LastMessage   *models.MessageSummary `json:"last_message"`
	LastMessageAt *time.Time             `json:"last_message_at"`
	UnreadCount   int                    `json:"unread_count"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Broker turns store mutations into ordered per-subscriber push streams.
//
// Contract: the callback fires at least once with current state on subscribe;
// on a store error it fires with an empty result instead of propagating, so a
// stream never silently hangs. Subscribers to the same logical stream are
// independent.
type Broker struct {
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	notifications *repository.NotificationRepository
	users         *repository.UserRepository
	log           *zap.Logger

	mu           sync.RWMutex
	convListSubs map[uint]map[string]func([]ConversationEntry)   // keyed by user id
	messageSubs  map[uint]map[string]func([]models.Message)      // keyed by conversation id
	notifSubs    map[uint]map[string]func([]models.Notification) // keyed by user id
}

const notificationSnapshotLimit = 100

func NewBroker(
	conversations *repository.ConversationRepository,
	messages *repository.MessageRepository,
	notifications *repository.NotificationRepository,
	users *repository.UserRepository,
) *Broker {
	return &Broker{
		conversations: conversations,
		messages:      messages,
		notifications: notifications,
		users:         users,
		log:           logger.WithModule("stream"),
		convListSubs:  make(map[uint]map[string]func([]ConversationEntry)),
		messageSubs:   make(map[uint]map[string]func([]models.Message)),
		notifSubs:     make(map[uint]map[string]func([]models.Notification)),
	}
}

func noopUnsubscribe() {}

// SubscribeToConversationList registers onUpdate for the user's conversation
// list. The requesting identity must match the subscribed-to user; otherwise
// a no-op unsubscribe is returned and no data is ever delivered.
func (b *Broker) SubscribeToConversationList(authUserID, userID uint, onUpdate func([]ConversationEntry)) Unsubscribe {
	if authUserID != userID || onUpdate == nil {
		return noopUnsubscribe
	}
	id := uuid.NewString()
	b.mu.Lock()
	if b.convListSubs[userID] == nil {
		b.convListSubs[userID] = make(map[string]func([]ConversationEntry))
	}
	b.convListSubs[userID][id] = onUpdate
	b.mu.Unlock()

	onUpdate(b.conversationSnapshot(userID))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs := b.convListSubs[userID]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.convListSubs, userID)
				}
			}
		})
	}
}

// SubscribeToConversationMessages registers onUpdate for the full ordered
// message log of one conversation. The subscriber must be a participant.
func (b *Broker) SubscribeToConversationMessages(authUserID, conversationID uint, onUpdate func([]models.Message)) Unsubscribe {
	if onUpdate == nil {
		return noopUnsubscribe
	}
	conv, err := b.conversations.GetByID(conversationID)
	if err != nil || !conv.HasParticipant(authUserID) {
		return noopUnsubscribe
	}
	id := uuid.NewString()
	b.mu.Lock()
	if b.messageSubs[conversationID] == nil {
		b.messageSubs[conversationID] = make(map[string]func([]models.Message))
	}
	b.messageSubs[conversationID][id] = onUpdate
	b.mu.Unlock()

	onUpdate(b.messageSnapshot(conversationID))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs := b.messageSubs[conversationID]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.messageSubs, conversationID)
				}
			}
		})
	}
}

// SubscribeToNotifications registers onUpdate for the user's notification
// list, newest first.
func (b *Broker) SubscribeToNotifications(authUserID, userID uint, onUpdate func([]models.Notification)) Unsubscribe {
	if authUserID != userID || onUpdate == nil {
		return noopUnsubscribe
	}
	id := uuid.NewString()
	b.mu.Lock()
	if b.notifSubs[userID] == nil {
		b.notifSubs[userID] = make(map[string]func([]models.Notification))
	}
	b.notifSubs[userID][id] = onUpdate
	b.mu.Unlock()

	onUpdate(b.notificationSnapshot(userID))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs := b.notifSubs[userID]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.notifSubs, userID)
				}
			}
		})
	}
}

// ConversationList returns the current joined conversation list for a user,
// the same view the list stream delivers.
func (b *Broker) ConversationList(userID uint) []ConversationEntry {
	return b.conversationSnapshot(userID)
}

// ConversationChanged pushes fresh state to both participants' list streams
// and to the conversation's message stream.
func (b *Broker) ConversationChanged(conv *models.Conversation) {
	if conv == nil {
		return
	}
	for _, userID := range conv.Participants() {
		b.pushConversationList(userID)
	}
	b.pushMessages(conv.ID)
}

// NotificationCreated broadcasts a just-persisted notification. The snapshot
// re-query is the broker's own concern; if it fails, live listeners still
// receive the new record directly.
func (b *Broker) NotificationCreated(n *models.Notification) {
	if n == nil {
		return
	}
	b.mu.RLock()
	subs := collect(b.notifSubs[n.UserID])
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	list, err := b.notifications.ListByUserID(n.UserID, notificationSnapshotLimit, 0)
	if err != nil {
		b.log.Warn("notification snapshot failed, delivering event only",
			zap.Uint("user_id", n.UserID), zap.Error(err))
		list = []models.Notification{*n}
	}
	for _, fn := range subs {
		fn(list)
	}
}

// NotificationsChanged re-pushes the user's notification list after reads or
// purges.
func (b *Broker) NotificationsChanged(userID uint) {
	b.mu.RLock()
	subs := collect(b.notifSubs[userID])
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	list := b.notificationSnapshot(userID)
	for _, fn := range subs {
		fn(list)
	}
}

func (b *Broker) pushConversationList(userID uint) {
	b.mu.RLock()
	subs := collect(b.convListSubs[userID])
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	list := b.conversationSnapshot(userID)
	for _, fn := range subs {
		fn(list)
	}
}

func (b *Broker) pushMessages(conversationID uint) {
	b.mu.RLock()
	subs := collect(b.messageSubs[conversationID])
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	list := b.messageSnapshot(conversationID)
	for _, fn := range subs {
		fn(list)
	}
}

// conversationSnapshot builds the joined conversation list. A failed profile
// lookup degrades to a placeholder participant instead of dropping the row.
func (b *Broker) conversationSnapshot(userID uint) []ConversationEntry {
	convs, err := b.conversations.ListActiveByUser(userID)
	if err != nil {
		b.log.Warn("conversation list query failed", zap.Uint("user_id", userID), zap.Error(err))
		return []ConversationEntry{}
	}
	entries := make([]ConversationEntry, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		otherID := c.OtherParticipant(userID)
		partner := Participant{ID: otherID, DisplayName: "Unknown user"}
		if u, err := b.users.GetByID(otherID); err == nil {
			partner = Participant{
				ID:          u.ID,
				DisplayName: u.DisplayName(),
				CompanyName: u.CompanyName,
				AvatarURL:   u.AvatarURL,
				IsOnline:    u.IsOnline,
			}
		}
		entries = append(entries, ConversationEntry{
			ID:            c.ID,
			Partner:       partner,
			LastMessage:   c.LastMessage.Data(),
			LastMessageAt: c.LastMessageAt,
			UnreadCount:   c.UnreadFor(userID),
			UpdatedAt:     c.UpdatedAt,
		})
	}
	return entries
}

func (b *Broker) messageSnapshot(conversationID uint) []models.Message {
	list, err := b.messages.ListByConversation(conversationID)
	if err != nil {
		b.log.Warn("message list query failed", zap.Uint("conversation_id", conversationID), zap.Error(err))
		return []models.Message{}
	}
	return list
}

func (b *Broker) notificationSnapshot(userID uint) []models.Notification {
	list, err := b.notifications.ListByUserID(userID, notificationSnapshotLimit, 0)
	if err != nil {
		b.log.Warn("notification list query failed", zap.Uint("user_id", userID), zap.Error(err))
		return []models.Notification{}
	}
	return list
}

func collect[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
