package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"clearlot/internal/domain"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReminderService runs the per-purchase timer chain for shipped orders: the
// buyer is reminded every interval to confirm receipt, and once the dwell
// time is exceeded an admin escalation fires exactly once. All deadlines are
// recomputed from persisted timestamps so the chain survives restarts.
type ReminderService struct {
	purchases *repository.PurchaseRepository
	alerts    *repository.AdminAlertRepository
	notifier  *Notifier
	sched     Scheduler
	interval  time.Duration
	escalate  time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	timers map[uint]func() // purchase id -> cancel
}

func NewReminderService(
	purchases *repository.PurchaseRepository,
	alerts *repository.AdminAlertRepository,
	notifier *Notifier,
	sched Scheduler,
	interval, escalateAfter time.Duration,
) *ReminderService {
	if interval <= 0 {
		interval = time.Hour
	}
	if escalateAfter <= 0 {
		escalateAfter = 6 * time.Hour
	}
	return &ReminderService{
		purchases: purchases,
		alerts:    alerts,
		notifier:  notifier,
		sched:     sched,
		interval:  interval,
		escalate:  escalateAfter,
		log:       logger.WithModule("reminder"),
		timers:    make(map[uint]func()),
	}
}

// StartReminder arms the timer chain for a shipped purchase. callerID zero
// means the system (reconciliation); otherwise the caller must be a
// participant. A chain already armed in memory is left untouched.
func (s *ReminderService) StartReminder(purchaseID, callerID uint) error {
	p, err := s.purchases.GetByID(purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("purchase %d: %w", purchaseID, domain.ErrNotFound)
		}
		return err
	}
	if callerID != 0 && callerID != p.BuyerID && callerID != p.SellerID {
		return domain.ErrPermissionDenied
	}
	if p.Status != domain.OrderShipped {
		return fmt.Errorf("purchase %d is %q: %w", purchaseID, p.Status, domain.ErrInvalidStatus)
	}

	s.mu.Lock()
	if _, armed := s.timers[purchaseID]; armed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	now := s.sched.Now()
	fields := map[string]interface{}{"reminder_active": true}
	if p.ShippedAt == nil {
		shipped := now
		p.ShippedAt = &shipped
		fields["shipped_at"] = shipped
	}
	if err := s.purchases.UpdateReminderFields(purchaseID, fields); err != nil {
		return err
	}

	s.arm(purchaseID, s.nextDelay(p, now))
	s.log.Info("reminder chain armed",
		zap.Uint("purchase_id", purchaseID), zap.Int("reminder_count", p.ReminderCount))
	return nil
}

// nextDelay computes the wait before the next tick from persisted absolute
// timestamps. A fresh chain ticks at shippedAt+interval, or now+interval when
// the shipment is observed late; a resumed chain continues from the last
// reminder so restarts never deliver more than one reminder per interval.
func (s *ReminderService) nextDelay(p *models.Purchase, now time.Time) time.Duration {
	if p.LastReminderSent != nil {
		delay := p.LastReminderSent.Add(s.interval).Sub(now)
		if delay < 0 {
			return 0
		}
		return delay
	}
	if p.ShippedAt != nil {
		if delay := p.ShippedAt.Add(s.interval).Sub(now); delay > 0 {
			return delay
		}
	}
	return s.interval
}

func (s *ReminderService) arm(purchaseID uint, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[purchaseID] = s.sched.After(delay, func() { s.tick(purchaseID) })
}

func (s *ReminderService) tick(purchaseID uint) {
	p, err := s.purchases.GetByID(purchaseID)
	if err != nil {
		s.log.Error("reminder tick lost its purchase", zap.Uint("purchase_id", purchaseID), zap.Error(err))
		s.disarm(purchaseID)
		return
	}
	if p.Status != domain.OrderShipped {
		// scheduling drift: the order moved on, stop quietly
		if err := s.purchases.UpdateReminderFields(purchaseID, map[string]interface{}{"reminder_active": false}); err != nil {
			s.log.Error("reminder deactivation failed", zap.Uint("purchase_id", purchaseID), zap.Error(err))
		}
		s.disarm(purchaseID)
		s.log.Info("reminder chain stopped, order left shipped state",
			zap.Uint("purchase_id", purchaseID), zap.String("status", p.Status))
		return
	}

	now := s.sched.Now()
	if err := s.purchases.UpdateReminderFields(purchaseID, map[string]interface{}{
		"reminder_count":     p.ReminderCount + 1,
		"last_reminder_sent": now,
	}); err != nil {
		s.log.Error("reminder state update failed", zap.Uint("purchase_id", purchaseID), zap.Error(err))
	}
	if err := s.notifier.DeliveryReminder(p); err != nil {
		s.log.Error("delivery reminder failed", zap.Uint("purchase_id", purchaseID), zap.Error(err))
	}

	if p.ShippedAt != nil && now.Sub(*p.ShippedAt) >= s.escalate && !p.AdminNotified {
		s.escalateToAdmins(p, now)
	}

	s.rearm(purchaseID)
}

// rearm schedules the next tick only while the chain is still tracked, so a
// StopReminder that lands during a running tick wins over the tick's re-arm.
func (s *ReminderService) rearm(purchaseID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, tracked := s.timers[purchaseID]; !tracked {
		return
	}
	s.timers[purchaseID] = s.sched.After(s.interval, func() { s.tick(purchaseID) })
}

// escalateToAdmins promotes an unconfirmed delivery into an admin alert. The
// persisted flag is written first so the escalation fires at most once per
// purchase even across restarts.
func (s *ReminderService) escalateToAdmins(p *models.Purchase, now time.Time) {
	if err := s.purchases.UpdateReminderFields(p.ID, map[string]interface{}{"admin_notified": true}); err != nil {
		s.log.Error("escalation flag write failed", zap.Uint("purchase_id", p.ID), zap.Error(err))
		return
	}
	purchaseID := p.ID
	alert := &models.AdminAlert{
		Kind:       "delivery_unconfirmed",
		PurchaseID: &purchaseID,
		Title:      "Delivery unconfirmed",
		Message: fmt.Sprintf("Order #%d was shipped %s ago and the buyer has not confirmed receipt.",
			p.ID, now.Sub(*p.ShippedAt).Round(time.Minute)),
		Data: map[string]interface{}{
			"purchase_id":    p.ID,
			"buyer_id":       p.BuyerID,
			"seller_id":      p.SellerID,
			"reminder_count": p.ReminderCount + 1,
		},
	}
	if err := s.alerts.Create(alert); err != nil {
		s.log.Error("admin alert write failed", zap.Uint("purchase_id", p.ID), zap.Error(err))
		return
	}
	s.notifier.DeliveryEscalated(p)
	s.log.Warn("delivery escalated to admins", zap.Uint("purchase_id", p.ID))
}

// StopReminder cancels any pending timer and persists deactivation.
// Idempotent.
func (s *ReminderService) StopReminder(purchaseID uint) error {
	s.disarm(purchaseID)
	return s.purchases.UpdateReminderFields(purchaseID, map[string]interface{}{"reminder_active": false})
}

func (s *ReminderService) disarm(purchaseID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.timers[purchaseID]; ok {
		cancel()
		delete(s.timers, purchaseID)
	}
}

// Reconcile re-arms the timer chain for every purchase still in the shipped
// state. Run at process start; persisted counters and flags carry over, so
// already-sent reminders are not repeated and a pending escalation still
// fires exactly once.
func (s *ReminderService) Reconcile() error {
	shipped, err := s.purchases.ListShipped()
	if err != nil {
		return err
	}
	for i := range shipped {
		if err := s.StartReminder(shipped[i].ID, 0); err != nil {
			s.log.Error("reminder reconciliation failed",
				zap.Uint("purchase_id", shipped[i].ID), zap.Error(err))
		}
	}
	s.log.Info("reminder reconciliation complete", zap.Int("shipped_purchases", len(shipped)))
	return nil
}

// Shutdown cancels all in-memory timers without touching persisted state.
func (s *ReminderService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}
}
