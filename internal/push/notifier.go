package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/habitd/internal/model"
)

// SubscriptionStore is the subset of store.PushStore the notifier needs.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	WasSent(ctx context.Context, userID, notifType, refID string) (bool, error)
	RecordSent(ctx context.Context, userID, notifType, refID string) error
	CleanupSent(ctx context.Context, before time.Time) error
}

// DueReminders lists reminders that fell due in (since, until].
type DueReminders interface {
	ListDue(ctx context.Context, since, until time.Time) ([]model.Reminder, error)
}

// lookback bounds how far past due a reminder may be and still notify, so a
// restart after downtime does not replay old reminders.
const lookback = 24 * time.Hour

// Notifier periodically pushes due reminders to their owners' devices.
type Notifier struct {
	mu          sync.RWMutex
	sender      Sender
	subs        SubscriptionStore
	reminders   DueReminders
	logger      *slog.Logger
	interval    time.Duration
	now         func() time.Time
	lastCleanup string
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewNotifier(sender Sender, subs SubscriptionStore, reminders DueReminders, interval time.Duration, logger *slog.Logger) *Notifier {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Notifier{
		sender:    sender,
		subs:      subs,
		reminders: reminders,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
}

// Start begins the notifier loop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the notifier.
func (n *Notifier) Stop() {
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (n *Notifier) tick(ctx context.Context) {
	now := n.now().UTC()

	due, err := n.reminders.ListDue(ctx, now.Add(-lookback), now)
	if err != nil {
		n.logger.Error("list due reminders", "error", err)
		return
	}
	for _, r := range due {
		n.notifyReminder(ctx, r)
	}

	// Dedup rows only need to outlive the lookback window.
	if day := now.Format("2006-01-02"); day != n.lastCleanup {
		if err := n.subs.CleanupSent(ctx, now.Add(-2*lookback)); err != nil {
			n.logger.Error("cleanup sent notifications", "error", err)
		} else {
			n.lastCleanup = day
		}
	}
}

// reminderRef keys dedup on the due time too, so moving a reminder re-arms it.
func reminderRef(r model.Reminder) string {
	return fmt.Sprintf("reminder-%s-%d", r.ID, r.DueDate.Unix())
}

func (n *Notifier) notifyReminder(ctx context.Context, r model.Reminder) {
	refID := reminderRef(r)
	sent, err := n.subs.WasSent(ctx, r.UserID, model.NotifTypeReminderDue, refID)
	if err != nil {
		n.logger.Error("check sent notification", "reminder_id", r.ID, "error", err)
		return
	}
	if sent {
		return
	}

	subs, err := n.subs.ListByUser(ctx, r.UserID)
	if err != nil {
		n.logger.Error("list push subscriptions", "user_id", r.UserID, "error", err)
		return
	}

	payload := Payload{
		Title: "Reminder",
		Body:  r.Text,
		URL:   "/reminders",
		Tag:   "reminder-" + r.ID,
	}

	delivered := 0
	for _, sub := range subs {
		if err := n.sender.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
					n.logger.Error("delete expired subscription", "error", err)
				}
				continue
			}
			n.logger.Warn("send reminder push", "reminder_id", r.ID, "error", err)
			continue
		}
		delivered++
	}

	if err := n.subs.RecordSent(ctx, r.UserID, model.NotifTypeReminderDue, refID); err != nil {
		n.logger.Error("record sent notification", "reminder_id", r.ID, "error", err)
		return
	}
	n.logger.Info("reminder notified", "reminder_id", r.ID, "user_id", r.UserID, "devices", delivered)
}
