package service

import (
	"context"
	"errors"
	"fmt"

	"clearlot/internal/domain"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/internal/stream"
	"clearlot/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// previewLimit bounds the message excerpt embedded in a notification payload.
const previewLimit = 50

// Notifier is the notification fan-out engine. Every domain event is turned
// into zero or more durable Notification records plus an immediate broadcast
// to live subscribers; the persisted copy is the source of truth for anyone
// who was not listening at fan-out time.
type Notifier struct {
	notifications *repository.NotificationRepository
	users         *repository.UserRepository
	purchases     *repository.PurchaseRepository
	offers        *repository.OfferRepository
	watchlist     *repository.WatchlistRepository
	dedup         repository.DedupStore
	broker        *stream.Broker
	threshold     float64 // relative price drop that triggers watcher fan-out
	log           *zap.Logger
}

func NewNotifier(
	notifications *repository.NotificationRepository,
	users *repository.UserRepository,
	purchases *repository.PurchaseRepository,
	offers *repository.OfferRepository,
	watchlist *repository.WatchlistRepository,
	dedup repository.DedupStore,
	broker *stream.Broker,
	priceDropThreshold float64,
) *Notifier {
	if priceDropThreshold <= 0 {
		priceDropThreshold = 0.05
	}
	return &Notifier{
		notifications: notifications,
		users:         users,
		purchases:     purchases,
		offers:        offers,
		watchlist:     watchlist,
		dedup:         dedup,
		broker:        broker,
		threshold:     priceDropThreshold,
		log:           logger.WithModule("notifier"),
	}
}

// notify persists one notification and broadcasts it to live subscribers.
func (n *Notifier) notify(userID uint, typ, title, message, priority string, data map[string]interface{}) error {
	record := &models.Notification{
		UserID:   userID,
		Type:     typ,
		Title:    title,
		Message:  message,
		Priority: priority,
		Data:     datatypes.JSONMap(data),
	}
	if err := n.notifications.Create(record); err != nil {
		return err
	}
	n.broker.NotificationCreated(record)
	return nil
}

// MessageReceived notifies the receiver of a new chat message with a
// truncated content preview.
func (n *Notifier) MessageReceived(m *models.Message) {
	senderName := "A trading partner"
	if u, err := n.users.GetByID(m.SenderID); err == nil {
		senderName = u.DisplayName()
	}
	err := n.notify(m.ReceiverID, domain.NotifyMessage,
		"New message",
		fmt.Sprintf("%s: %s", senderName, preview(m)),
		domain.PriorityMedium,
		map[string]interface{}{
			"conversation_id": m.ConversationID,
			"sender_id":       m.SenderID,
			"message_id":      m.ID,
			"link":            fmt.Sprintf("/chat/%d", m.ConversationID),
		})
	if err != nil {
		n.log.Error("message notification failed",
			zap.Uint("receiver_id", m.ReceiverID), zap.Error(err))
	}
}

// preview returns the notification excerpt for a message: attachment kind for
// media, otherwise the content cut at previewLimit runes with an ellipsis.
func preview(m *models.Message) string {
	switch m.Type {
	case domain.MessageTypeImage:
		return "sent an image"
	case domain.MessageTypeVideo:
		return "sent a video"
	case domain.MessageTypeFile:
		return "sent a file"
	}
	runes := []rune(m.Content)
	if len(runes) <= previewLimit {
		return m.Content
	}
	return string(runes[:previewLimit]) + "…"
}

// PurchaseCreated fans out the seller-side "new purchase" notification at
// most once per purchase id. The originating change feed replays creation
// events, so the deduplication ledger gates the side effect; an event is only
// actionable while the purchase is still pending, and a stale ledger entry
// for an advanced purchase is proactively cleared so a reused id cannot be
// starved forever. The buyer-side confirmation belongs to the checkout flow.
func (n *Notifier) PurchaseCreated(ctx context.Context, purchaseID uint) error {
	p, err := n.purchases.GetByID(purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("purchase %d: %w", purchaseID, domain.ErrNotFound)
		}
		return err
	}
	eventID := fmt.Sprintf("purchase:%d", purchaseID)
	if p.Status != domain.OrderPending {
		if err := n.dedup.Clear(ctx, eventID); err != nil {
			n.log.Warn("dedup clear failed", zap.String("event_id", eventID), zap.Error(err))
		}
		return nil
	}
	seen, err := n.dedup.HasProcessed(ctx, eventID)
	if err != nil {
		return err
	}
	if seen {
		n.log.Debug("duplicate purchase event skipped", zap.String("event_id", eventID))
		return nil
	}
	if err := n.dedup.MarkProcessed(ctx, eventID); err != nil {
		return err
	}
	buyerName := "A buyer"
	if u, err := n.users.GetByID(p.BuyerID); err == nil {
		buyerName = u.DisplayName()
	}
	return n.notify(p.SellerID, domain.NotifyPurchase,
		"New purchase",
		fmt.Sprintf("%s purchased your lot", buyerName),
		domain.PriorityHigh,
		map[string]interface{}{
			"purchase_id": p.ID,
			"offer_id":    p.OfferID,
			"buyer_id":    p.BuyerID,
			"link":        fmt.Sprintf("/sales/%d", p.ID),
		})
}

type statusText struct {
	buyerTitle  string
	buyerBody   string
	sellerTitle string
	sellerBody  string
}

var orderStatusTexts = map[string]statusText{
	domain.OrderPending: {
		buyerTitle: "Order placed",
		buyerBody:  "Your order was placed and is awaiting seller approval.",
	},
	domain.OrderApproved: {
		buyerTitle:  "Order approved",
		buyerBody:   "The seller approved your order and is preparing shipment.",
		sellerTitle: "Order approved",
		sellerBody:  "You approved the order. Ship it to keep the buyer informed.",
	},
	domain.OrderShipped: {
		buyerTitle:  "Order shipped",
		buyerBody:   "Your order is on its way. Confirm receipt once it arrives.",
		sellerTitle: "Order shipped",
		sellerBody:  "The order was marked as shipped.",
	},
	domain.OrderDelivered: {
		buyerTitle:  "Order delivered",
		buyerBody:   "Your order was delivered.",
		sellerTitle: "Order delivered",
		sellerBody:  "The buyer received the order.",
	},
	domain.OrderCompleted: {
		buyerTitle:  "Order completed",
		buyerBody:   "The order is complete. Thank you for trading on ClearLot.",
		sellerTitle: "Order completed",
		sellerBody:  "The order is complete and the payout is on its way.",
	},
	domain.OrderCancelled: {
		buyerTitle: "Order cancelled",
		buyerBody:  "Your order was cancelled.",
	},
	domain.OrderRejected: {
		buyerTitle: "Order rejected",
		buyerBody:  "The seller rejected your order.",
	},
}

// OrderStatusChanged notifies the buyer on every transition and the seller
// only for approved/shipped/delivered/completed. Failure to reach one
// recipient never suppresses the other.
func (n *Notifier) OrderStatusChanged(purchaseID uint, status string) error {
	p, err := n.purchases.GetByID(purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("purchase %d: %w", purchaseID, domain.ErrNotFound)
		}
		return err
	}
	texts, known := orderStatusTexts[status]
	if !known {
		// unrecognized status values fall back to a generic template
		texts = statusText{
			buyerTitle:  "Order update",
			buyerBody:   fmt.Sprintf("Your order is now %q.", status),
			sellerTitle: "Order update",
			sellerBody:  fmt.Sprintf("Order #%d is now %q.", purchaseID, status),
		}
	}
	data := map[string]interface{}{
		"purchase_id": p.ID,
		"offer_id":    p.OfferID,
		"status":      status,
		"link":        fmt.Sprintf("/orders/%d", p.ID),
	}
	if err := n.notify(p.BuyerID, domain.NotifyOrderStatus, texts.buyerTitle, texts.buyerBody, domain.PriorityMedium, data); err != nil {
		n.log.Error("buyer status notification failed",
			zap.Uint("purchase_id", purchaseID), zap.String("status", status), zap.Error(err))
	}
	if domain.SellerNotifiedStatuses[status] {
		sellerData := map[string]interface{}{
			"purchase_id": p.ID,
			"offer_id":    p.OfferID,
			"status":      status,
			"link":        fmt.Sprintf("/sales/%d", p.ID),
		}
		if err := n.notify(p.SellerID, domain.NotifyOrderStatus, texts.sellerTitle, texts.sellerBody, domain.PriorityMedium, sellerData); err != nil {
			n.log.Error("seller status notification failed",
				zap.Uint("purchase_id", purchaseID), zap.String("status", status), zap.Error(err))
		}
	}
	return nil
}

// CheckAndNotifyPriceDrop compares the offer's current price against the
// watcher baseline and fans out to every watcher when the relative drop meets
// the threshold. The baseline then advances so the same drop cannot
// re-notify. A failed write for one watcher never aborts the rest.
func (n *Notifier) CheckAndNotifyPriceDrop(offerID uint) error {
	offer, err := n.offers.GetByID(offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("offer %d: %w", offerID, domain.ErrNotFound)
		}
		return err
	}
	baseline := offer.BaselineCents
	if baseline <= 0 {
		// first observation establishes the baseline
		return n.offers.AdvanceBaseline(offerID, offer.PriceCents)
	}
	if offer.PriceCents >= baseline {
		return nil
	}
	drop := float64(baseline-offer.PriceCents) / float64(baseline)
	if drop < n.threshold {
		return nil
	}
	watchers, err := n.watchlist.ListWatcherIDs(offerID)
	if err != nil {
		return err
	}
	percentage := drop * 100
	for _, userID := range watchers {
		err := n.notify(userID, domain.NotifyPriceDrop,
			"Price drop on a watched lot",
			fmt.Sprintf("%s dropped by %.0f%%", offer.Title, percentage),
			domain.PriorityMedium,
			map[string]interface{}{
				"offer_id":       offer.ID,
				"previous_price": baseline,
				"new_price":      offer.PriceCents,
				"percentage":     percentage,
				"link":           fmt.Sprintf("/offers/%d", offer.ID),
			})
		if err != nil {
			n.log.Error("price drop notification failed",
				zap.Uint("offer_id", offerID), zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	return n.offers.AdvanceBaseline(offerID, offer.PriceCents)
}

// VerificationReviewed notifies the reviewed user of the outcome.
func (n *Notifier) VerificationReviewed(userID uint, outcome string) error {
	var title, body, priority string
	switch outcome {
	case domain.VerificationApproved:
		title = "Verification approved"
		body = "Your business verification was approved. You now have full trading access."
		priority = domain.PriorityHigh
	case domain.VerificationRejected:
		title = "Verification rejected"
		body = "Your business verification was rejected. Review the notes and resubmit."
		priority = domain.PriorityHigh
	default:
		title = "Verification under review"
		body = "Your business verification is being reviewed."
		priority = domain.PriorityLow
	}
	return n.notify(userID, domain.NotifyVerificationStatus, title, body, priority,
		map[string]interface{}{
			"outcome": outcome,
			"link":    "/account/verification",
		})
}

// DeliveryEscalated notifies every administrator that a shipped order went
// unconfirmed past the escalation window. The admin-console alert record is
// persisted separately by the caller; per-admin failures are isolated.
func (n *Notifier) DeliveryEscalated(p *models.Purchase) {
	adminIDs, err := n.users.ListAdminIDs()
	if err != nil {
		n.log.Error("admin lookup failed", zap.Uint("purchase_id", p.ID), zap.Error(err))
		return
	}
	for _, adminID := range adminIDs {
		err := n.notify(adminID, domain.NotifySystem,
			"Delivery unconfirmed",
			fmt.Sprintf("Order #%d is still awaiting receipt confirmation.", p.ID),
			domain.PriorityHigh,
			map[string]interface{}{
				"purchase_id": p.ID,
				"buyer_id":    p.BuyerID,
				"seller_id":   p.SellerID,
				"link":        fmt.Sprintf("/admin/orders/%d", p.ID),
			})
		if err != nil {
			n.log.Error("admin escalation notification failed",
				zap.Uint("purchase_id", p.ID), zap.Uint("admin_id", adminID), zap.Error(err))
		}
	}
}

// DeliveryReminder asks the buyer to confirm receipt of a shipped order.
func (n *Notifier) DeliveryReminder(p *models.Purchase) error {
	return n.notify(p.BuyerID, domain.NotifyOrderStatus,
		"Confirm receipt",
		fmt.Sprintf("Order #%d was shipped. Please confirm receipt.", p.ID),
		domain.PriorityHigh,
		map[string]interface{}{
			"purchase_id": p.ID,
			"status":      p.Status,
			"link":        fmt.Sprintf("/orders/%d", p.ID),
		})
}
