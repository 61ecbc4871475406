package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/habitd/internal/credential"
	"github.com/dukerupert/habitd/internal/database"
	"github.com/dukerupert/habitd/internal/middleware"
	"github.com/dukerupert/habitd/internal/model"
	"github.com/dukerupert/habitd/internal/push"
	"github.com/dukerupert/habitd/internal/store"
	"github.com/dukerupert/habitd/internal/websocket"
)

// testNow is the fixed clock used by handlers under test.
var testNow = time.Date(2025, 2, 21, 12, 0, 0, 0, time.UTC)

type sent struct {
	userID string
	msg    websocket.Message
}

type recordingHub struct {
	mu   sync.Mutex
	msgs []sent
}

func (h *recordingHub) BroadcastTo(userID string, msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, sent{userID, msg})
}

func (h *recordingHub) types(userID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, s := range h.msgs {
		if s.userID == userID {
			out = append(out, s.msg.Type)
		}
	}
	return out
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	hub     *recordingHub
	push    *fakePush
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fakePush records web push deliveries instead of sending them.
type fakePush struct {
	mu      sync.Mutex
	sent    []string
	expired map[string]bool
}

func (f *fakePush) VAPIDPublicKey() string { return "test-public-key" }

func (f *fakePush) Send(_ context.Context, sub *model.PushSubscription, _ push.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired[sub.Endpoint] {
		return push.ErrExpired
	}
	f.sent = append(f.sent, sub.Endpoint)
	return nil
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := newTestDB(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cred := credential.NewJWTService("test-secret", time.Hour)
	hub := &recordingHub{}
	clock := func() time.Time { return testNow }

	users := store.NewUserStore(db)
	habits := store.NewHabitStore(db)
	completions := store.NewCompletionStore(db)

	authH := NewAuthHandler(users, cred, logger)
	userH := NewUserHandler(users, cred, hub, logger)
	habitH := NewHabitHandler(habits, completions, hub, time.UTC, logger)
	habitH.now = clock
	completionH := NewCompletionHandler(completions, habits, hub, time.UTC, logger)
	completionH.now = clock
	subHabitH := NewSubHabitHandler(store.NewSubHabitStore(db), habits, hub, time.UTC, logger)
	subHabitH.now = clock
	taskH := NewTaskHandler(store.NewTaskStore(db),
		store.NewTaskDetailStore(db, store.OwnerTask),
		store.NewTaskDetailStore(db, store.OwnerSubTask),
		hub, time.UTC, logger)
	taskH.now = clock
	reminderH := NewReminderHandler(store.NewReminderStore(db), hub, logger)
	paymentH := NewPaymentHandler(store.NewPaymentStore(db), logger)
	pusher := &fakePush{expired: map[string]bool{}}
	pushH := NewPushHandler(store.NewPushStore(db), pusher, logger)

	public := http.NewServeMux()
	public.HandleFunc("POST /auth/register", authH.Register)
	public.HandleFunc("POST /auth/token", authH.Token)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", authH.Me)
	mux.HandleFunc("GET /users/{id}", userH.Get)
	mux.HandleFunc("PATCH /users/{id}", userH.Update)
	mux.HandleFunc("DELETE /users/{id}", userH.Delete)

	mux.HandleFunc("POST /habits", habitH.Create)
	mux.HandleFunc("PUT /habits/sort", habitH.Sort)
	mux.HandleFunc("GET /habits/{id}", habitH.Get)
	mux.HandleFunc("PATCH /habits/{id}", habitH.Update)
	mux.HandleFunc("DELETE /habits/{id}", habitH.Delete)
	mux.HandleFunc("GET /users/{id}/habits", habitH.ListByUser)
	mux.HandleFunc("GET /users/{id}/habits/{habit_id}/completion_streak", habitH.Streak)

	mux.HandleFunc("POST /completions", completionH.Create)
	mux.HandleFunc("PUT /completions/upsert", completionH.Upsert)
	mux.HandleFunc("POST /completions/prepare_completions", completionH.Prepare)
	mux.HandleFunc("GET /completions/{id}", completionH.Get)
	mux.HandleFunc("PATCH /completions/{id}", completionH.Update)
	mux.HandleFunc("DELETE /completions/{id}", completionH.Delete)
	mux.HandleFunc("GET /habits/{id}/completions", completionH.ListByHabit)

	mux.HandleFunc("POST /habits/{id}/sub_habits", subHabitH.Create)
	mux.HandleFunc("GET /habits/{id}/sub_habits", subHabitH.List)
	mux.HandleFunc("GET /sub_habits/{id}", subHabitH.Get)
	mux.HandleFunc("PATCH /sub_habits/{id}", subHabitH.Update)
	mux.HandleFunc("DELETE /sub_habits/{id}", subHabitH.Delete)
	mux.HandleFunc("PUT /sub_habits/{id}/completions", subHabitH.SetCompletion)
	mux.HandleFunc("GET /sub_habits/{id}/completions", subHabitH.ListCompletions)

	mux.HandleFunc("POST /tasks", taskH.Create)
	mux.HandleFunc("GET /tasks", taskH.List)
	mux.HandleFunc("GET /tasks/{id}", taskH.Get)
	mux.HandleFunc("PATCH /tasks/{id}", taskH.Update)
	mux.HandleFunc("DELETE /tasks/{id}", taskH.Delete)
	mux.HandleFunc("GET /tasks/{id}/sub_tasks", taskH.ListSubTasks)
	mux.HandleFunc("DELETE /sub_tasks/{id}", taskH.DeleteSubTask)
	mux.HandleFunc("POST /tasks/{id}/sub_tasks", taskH.CreateSubTask)
	mux.HandleFunc("GET /sub_tasks/{id}", taskH.GetSubTask)
	mux.HandleFunc("PATCH /sub_tasks/{id}", taskH.UpdateSubTask)
	mux.HandleFunc("PUT /tasks/{id}/statuses", taskH.PutTaskStatus)
	mux.HandleFunc("GET /tasks/{id}/statuses", taskH.ListTaskStatuses)
	mux.HandleFunc("PUT /sub_tasks/{id}/statuses", taskH.PutSubTaskStatus)
	mux.HandleFunc("GET /tasks/{id}/attributes", taskH.ListTaskAttributes)
	mux.HandleFunc("PUT /tasks/{id}/attributes/{key}", taskH.PutTaskAttribute)
	mux.HandleFunc("DELETE /tasks/{id}/attributes/{key}", taskH.DeleteTaskAttribute)
	mux.HandleFunc("PUT /sub_tasks/{id}/attributes/{key}", taskH.PutSubTaskAttribute)

	mux.HandleFunc("GET /reminders", reminderH.List)
	mux.HandleFunc("POST /reminders", reminderH.Create)
	mux.HandleFunc("PUT /reminders/{id}", reminderH.Replace)
	mux.HandleFunc("DELETE /reminders/{id}", reminderH.Delete)

	mux.HandleFunc("POST /payments", paymentH.Create)
	mux.HandleFunc("GET /payments/{id}", paymentH.Get)
	mux.HandleFunc("PATCH /payments/{id}", paymentH.Update)
	mux.HandleFunc("DELETE /payments/{id}", paymentH.Delete)
	mux.HandleFunc("GET /users/{id}/payments", paymentH.ListByUser)

	mux.HandleFunc("GET /push/vapid-key", pushH.VAPIDKey)
	mux.HandleFunc("POST /push/subscribe", pushH.Subscribe)
	mux.HandleFunc("GET /push/subscriptions", pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /push/subscriptions/{id}", pushH.Unsubscribe)
	mux.HandleFunc("POST /push/test", pushH.Test)

	public.Handle("/", middleware.RequireBearer(cred, users)(mux))

	return &testAPI{t: t, handler: public, hub: hub, push: pusher}
}

// do sends a JSON request with an optional bearer token.
func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			if err != nil {
				a.t.Fatalf("marshal body: %v", err)
			}
			r = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) form(path string, values url.Values) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type testUser struct {
	ID    string
	Token string
}

// signup registers an account and logs it in.
func (a *testAPI) signup(email string) testUser {
	a.t.Helper()
	rec := a.do("POST", "/auth/register", "", map[string]string{
		"email": email, "name": "Test User", "password": "correct-horse",
	})
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("register %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var u struct {
		ID string `json:"id"`
	}
	decodeBody(a.t, rec, &u)

	rec = a.do("POST", "/auth/token", "", map[string]string{"email": email, "password": "correct-horse"})
	if rec.Code != http.StatusOK {
		a.t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var tok tokenResponse
	decodeBody(a.t, rec, &tok)
	return testUser{ID: u.ID, Token: tok.AccessToken}
}

func (a *testAPI) createHabit(u testUser, name string) string {
	a.t.Helper()
	rec := a.do("POST", "/habits", u.Token, map[string]any{"name": name})
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("create habit: status %d: %s", rec.Code, rec.Body.String())
	}
	var h struct {
		ID string `json:"id"`
	}
	decodeBody(a.t, rec, &h)
	return h.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

func expectDetail(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	expectStatus(t, rec, status)
	var body struct {
		Detail string `json:"detail"`
	}
	decodeBody(t, rec, &body)
	if body.Detail == "" {
		t.Fatalf("missing detail in %s", rec.Body.String())
	}
	return body.Detail
}
