package service

import (
	"sort"
	"sync"
	"testing"
	"time"

	"clearlot/internal/domain"
	"clearlot/internal/models"

	"github.com/stretchr/testify/require"
)

// fakeScheduler drives reminder timers with a manual clock.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	at time.Time
	fn func()
}

func newFakeScheduler(start time.Time) *fakeScheduler {
	return &fakeScheduler{now: start, timers: make(map[int]*fakeTimer)}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	s.timers[id] = &fakeTimer{at: s.now.Add(d), fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, id)
	}
}

// advance moves the clock forward, firing due timers in deadline order. Fired
// callbacks may arm new timers; those fire too when they fall inside the
// window.
func (s *fakeScheduler) advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()
	for {
		s.mu.Lock()
		var dueID int
		var due *fakeTimer
		for id, timer := range s.timers {
			if timer.at.After(target) {
				continue
			}
			if due == nil || timer.at.Before(due.at) || (timer.at.Equal(due.at) && id < dueID) {
				dueID, due = id, timer
			}
		}
		if due == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		delete(s.timers, dueID)
		if due.at.After(s.now) {
			s.now = due.at
		}
		fn := due.fn
		s.mu.Unlock()
		fn()
	}
}

func (s *fakeScheduler) pendingDeadlines() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, 0, len(s.timers))
	for _, timer := range s.timers {
		out = append(out, timer.at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

type reminderFixture struct {
	env   *testEnv
	sched *fakeScheduler
	svc   *ReminderService
	buyer *models.User
	p     *models.Purchase
}

func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()
	env := newTestEnv(t)
	buyer := env.createUser(t, "buyer", domain.RoleBuyer)
	seller := env.createUser(t, "seller", domain.RoleSeller)
	sched := newFakeScheduler(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	shipped := sched.Now()
	p := &models.Purchase{
		OfferID: 1, BuyerID: buyer.ID, SellerID: seller.ID,
		AmountCents: 5000, Status: domain.OrderShipped, ShippedAt: &shipped,
	}
	require.NoError(t, env.purchases.Create(p))

	svc := NewReminderService(env.purchases, env.alerts, env.notifier, sched, time.Hour, 6*time.Hour)
	return &reminderFixture{env: env, sched: sched, svc: svc, buyer: buyer, p: p}
}

func (f *reminderFixture) buyerReminderCount(t *testing.T) int {
	t.Helper()
	return len(f.env.notificationsFor(t, f.buyer.ID))
}

func (f *reminderFixture) alertCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.env.db.Model(&models.AdminAlert{}).Count(&count).Error)
	return count
}

func TestReminderTicksHourly(t *testing.T) {
	f := newReminderFixture(t)
	require.NoError(t, f.svc.StartReminder(f.p.ID, f.p.BuyerID))

	f.sched.advance(time.Hour)
	require.Equal(t, 1, f.buyerReminderCount(t))

	f.sched.advance(time.Hour)
	require.Equal(t, 2, f.buyerReminderCount(t))

	p, err := f.env.purchases.GetByID(f.p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, p.ReminderCount)
	require.NotNil(t, p.LastReminderSent)
	require.True(t, p.ReminderActive)
}

func TestReminderEscalatesExactlyOnce(t *testing.T) {
	f := newReminderFixture(t)
	admin := f.env.createUser(t, "admin", domain.RoleAdmin)
	require.NoError(t, f.svc.StartReminder(f.p.ID, 0))

	// five ticks inside the dwell window: reminders only
	f.sched.advance(5 * time.Hour)
	require.Equal(t, 5, f.buyerReminderCount(t))
	require.EqualValues(t, 0, f.alertCount(t))
	require.Empty(t, f.env.notificationsFor(t, admin.ID))

	// the sixth tick crosses the six hour dwell
	f.sched.advance(time.Hour)
	require.EqualValues(t, 1, f.alertCount(t))

	adminNotifs := f.env.notificationsFor(t, admin.ID)
	require.Len(t, adminNotifs, 1)
	require.Equal(t, domain.PriorityHigh, adminNotifs[0].Priority)

	p, err := f.env.purchases.GetByID(f.p.ID)
	require.NoError(t, err)
	require.True(t, p.AdminNotified)

	// reminders keep flowing but the escalation never repeats
	f.sched.advance(4 * time.Hour)
	require.Equal(t, 10, f.buyerReminderCount(t))
	require.EqualValues(t, 1, f.alertCount(t))
	require.Len(t, f.env.notificationsFor(t, admin.ID), 1)
}

func TestReminderStopsWhenOrderMovesOn(t *testing.T) {
	f := newReminderFixture(t)
	require.NoError(t, f.svc.StartReminder(f.p.ID, 0))

	f.sched.advance(time.Hour)
	require.Equal(t, 1, f.buyerReminderCount(t))

	require.NoError(t, f.env.purchases.UpdateStatus(f.p.ID, domain.OrderDelivered))

	// the next tick observes the new status and quietly disarms
	f.sched.advance(2 * time.Hour)
	require.Equal(t, 1, f.buyerReminderCount(t))
	require.Empty(t, f.sched.pendingDeadlines())

	p, err := f.env.purchases.GetByID(f.p.ID)
	require.NoError(t, err)
	require.False(t, p.ReminderActive)
}

func TestStartReminderValidation(t *testing.T) {
	f := newReminderFixture(t)

	outsider := f.env.createUser(t, "outsider", domain.RoleBuyer)
	require.ErrorIs(t, f.svc.StartReminder(f.p.ID, outsider.ID), domain.ErrPermissionDenied)

	require.NoError(t, f.env.purchases.UpdateStatus(f.p.ID, domain.OrderPending))
	require.ErrorIs(t, f.svc.StartReminder(f.p.ID, f.p.BuyerID), domain.ErrInvalidStatus)

	require.ErrorIs(t, f.svc.StartReminder(99999, 0), domain.ErrNotFound)
}

func TestStopReminderWinsOverRunningTick(t *testing.T) {
	f := newReminderFixture(t)
	require.NoError(t, f.svc.StartReminder(f.p.ID, 0))
	f.sched.advance(time.Hour)
	require.Equal(t, 1, f.buyerReminderCount(t))

	// a stop landing while a tick is already executing must not be undone by
	// that tick's re-arm
	require.NoError(t, f.svc.StopReminder(f.p.ID))
	f.svc.tick(f.p.ID)
	require.Empty(t, f.sched.pendingDeadlines())

	// the in-flight tick delivered its reminder, but the chain stays dead
	require.Equal(t, 2, f.buyerReminderCount(t))
	f.sched.advance(3 * time.Hour)
	require.Equal(t, 2, f.buyerReminderCount(t))

	p, err := f.env.purchases.GetByID(f.p.ID)
	require.NoError(t, err)
	require.False(t, p.ReminderActive)
}

func TestStopReminderIdempotent(t *testing.T) {
	f := newReminderFixture(t)
	require.NoError(t, f.svc.StartReminder(f.p.ID, 0))
	require.NoError(t, f.svc.StopReminder(f.p.ID))
	require.NoError(t, f.svc.StopReminder(f.p.ID))
	require.Empty(t, f.sched.pendingDeadlines())

	f.sched.advance(3 * time.Hour)
	require.Zero(t, f.buyerReminderCount(t))
}

func TestReminderRestartReconciliation(t *testing.T) {
	f := newReminderFixture(t)
	require.NoError(t, f.svc.StartReminder(f.p.ID, 0))

	f.sched.advance(2 * time.Hour)
	require.Equal(t, 2, f.buyerReminderCount(t))

	// process restart: timers vanish, persisted state survives
	f.svc.Shutdown()
	require.Empty(t, f.sched.pendingDeadlines())

	restarted := NewReminderService(f.env.purchases, f.env.alerts, f.env.notifier, f.sched, time.Hour, 6*time.Hour)
	require.NoError(t, restarted.Reconcile())

	// the resumed chain continues from lastReminderSent, so half an interval
	// later nothing fires
	f.sched.advance(30 * time.Minute)
	require.Equal(t, 2, f.buyerReminderCount(t))

	// and the full interval delivers exactly one more
	f.sched.advance(30 * time.Minute)
	require.Equal(t, 3, f.buyerReminderCount(t))
}

func TestReminderRestartStillEscalatesOnce(t *testing.T) {
	f := newReminderFixture(t)
	require.NoError(t, f.svc.StartReminder(f.p.ID, 0))

	// escalation fired before the restart
	f.sched.advance(6 * time.Hour)
	require.EqualValues(t, 1, f.alertCount(t))

	f.svc.Shutdown()
	restarted := NewReminderService(f.env.purchases, f.env.alerts, f.env.notifier, f.sched, time.Hour, 6*time.Hour)
	require.NoError(t, restarted.Reconcile())

	// the persisted flag keeps the replayed chain from escalating again
	f.sched.advance(3 * time.Hour)
	require.EqualValues(t, 1, f.alertCount(t))
}
