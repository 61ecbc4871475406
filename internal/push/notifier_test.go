package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/habitd/internal/database"
	"github.com/dukerupert/habitd/internal/model"
	"github.com/dukerupert/habitd/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	expired map[string]bool
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired[sub.Endpoint] {
		return ErrExpired
	}
	f.sent = append(f.sent, sub.Endpoint+" "+p.Body)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type notifierFixture struct {
	notifier  *Notifier
	sender    *fakeSender
	push      *store.PushStore
	reminders *store.ReminderStore
	users     *store.UserStore
}

var fixtureNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newNotifierFixture(t *testing.T) *notifierFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &notifierFixture{
		sender:    &fakeSender{expired: map[string]bool{}},
		push:      store.NewPushStore(db),
		reminders: store.NewReminderStore(db),
		users:     store.NewUserStore(db),
	}
	f.notifier = NewNotifier(f.sender, f.push, f.reminders, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.notifier.now = func() time.Time { return fixtureNow }
	return f
}

func (f *notifierFixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), email, "Test", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestNotifierSendsDueRemindersOnce(t *testing.T) {
	f := newNotifierFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice@example.com")

	f.push.CreateSubscription(ctx, u.ID, "https://push.example.com/laptop", "k", "a", "")
	f.push.CreateSubscription(ctx, u.ID, "https://push.example.com/phone", "k", "a", "")
	f.reminders.Create(ctx, u.ID, "Stretch", fixtureNow.Add(-time.Minute), false)
	f.reminders.Create(ctx, u.ID, "Later", fixtureNow.Add(time.Hour), false)

	f.notifier.tick(ctx)
	if got := f.sender.count(); got != 2 {
		t.Fatalf("sent %d pushes, want 2", got)
	}

	f.notifier.tick(ctx)
	if got := f.sender.count(); got != 2 {
		t.Errorf("second tick sent %d pushes total, want still 2", got)
	}
}

func TestNotifierRearmsMovedReminder(t *testing.T) {
	f := newNotifierFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice@example.com")

	f.push.CreateSubscription(ctx, u.ID, "https://push.example.com/laptop", "k", "a", "")
	r, _ := f.reminders.Create(ctx, u.ID, "Stretch", fixtureNow.Add(-2*time.Minute), false)

	f.notifier.tick(ctx)
	if _, err := f.reminders.Update(ctx, u.ID, r.ID, "Stretch", fixtureNow.Add(-time.Minute), false); err != nil {
		t.Fatalf("move reminder: %v", err)
	}
	f.notifier.tick(ctx)

	if got := f.sender.count(); got != 2 {
		t.Errorf("sent %d pushes, want 2", got)
	}
}

func TestNotifierDropsExpiredSubscriptions(t *testing.T) {
	f := newNotifierFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice@example.com")

	f.push.CreateSubscription(ctx, u.ID, "https://push.example.com/gone", "k", "a", "")
	f.push.CreateSubscription(ctx, u.ID, "https://push.example.com/ok", "k", "a", "")
	f.sender.expired["https://push.example.com/gone"] = true
	f.reminders.Create(ctx, u.ID, "Stretch", fixtureNow.Add(-time.Minute), false)

	f.notifier.tick(ctx)

	subs, _ := f.push.ListByUser(ctx, u.ID)
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example.com/ok" {
		t.Errorf("subscriptions = %+v, want only the live one", subs)
	}
}

func TestNotifierRespectsNotificationsFlag(t *testing.T) {
	f := newNotifierFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice@example.com")

	off := false
	f.users.Update(ctx, u.ID, model.UserPatch{NotificationsEnabled: &off})
	f.push.CreateSubscription(ctx, u.ID, "https://push.example.com/laptop", "k", "a", "")
	f.reminders.Create(ctx, u.ID, "Stretch", fixtureNow.Add(-time.Minute), false)

	f.notifier.tick(ctx)
	if got := f.sender.count(); got != 0 {
		t.Errorf("sent %d pushes, want 0", got)
	}
}

type failingReminders struct{}

func (failingReminders) ListDue(context.Context, time.Time, time.Time) ([]model.Reminder, error) {
	return nil, errors.New("database is locked")
}

func TestNotifierStartStop(t *testing.T) {
	f := newNotifierFixture(t)
	n := NewNotifier(f.sender, f.push, failingReminders{}, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		n.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
