package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/habitd/internal/credential"
	"github.com/dukerupert/habitd/internal/handler"
	"github.com/dukerupert/habitd/internal/middleware"
	"github.com/dukerupert/habitd/internal/store"
	ws "github.com/dukerupert/habitd/internal/websocket"
)

// Backend bundles the repositories of one persistence engine.
type Backend struct {
	Users       handler.UserRepository
	Habits      handler.HabitRepository
	Completions handler.CompletionRepository
	// SQL enables the SQLite-only features (sub-habits, tasks, reminders,
	// payments). Nil for MongoDB.
	SQL  *sql.DB
	Ping func(ctx context.Context) error
}

// SQLiteBackend builds a Backend over an open SQLite database.
func SQLiteBackend(db *sql.DB) Backend {
	return Backend{
		Users:       store.NewUserStore(db),
		Habits:      store.NewHabitStore(db),
		Completions: store.NewCompletionStore(db),
		SQL:         db,
		Ping:        db.PingContext,
	}
}

// Options enables the optional integrations. The zero value disables them.
type Options struct {
	// Push serves the web push subscription routes when set.
	Push handler.PushSender
	// StripeWebhookSecret registers the public Stripe webhook when set.
	StripeWebhookSecret string
}

type Server struct {
	backend     Backend
	hub         *ws.Hub
	cred        credential.Service
	authH       *handler.AuthHandler
	userH       *handler.UserHandler
	habitH      *handler.HabitHandler
	completionH *handler.CompletionHandler
	subHabitH   *handler.SubHabitHandler
	taskH       *handler.TaskHandler
	reminderH   *handler.ReminderHandler
	paymentH    *handler.PaymentHandler
	pushH       *handler.PushHandler
	stripeH     *handler.StripeWebhookHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(b Backend, cred credential.Service, loc *time.Location, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	s := &Server{
		backend:     b,
		hub:         hub,
		cred:        cred,
		authH:       handler.NewAuthHandler(b.Users, cred, logger.With("component", "auth")),
		userH:       handler.NewUserHandler(b.Users, cred, hub, logger.With("component", "user")),
		habitH:      handler.NewHabitHandler(b.Habits, b.Completions, hub, loc, logger.With("component", "habit")),
		completionH: handler.NewCompletionHandler(b.Completions, b.Habits, hub, loc, logger.With("component", "completion")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}

	if b.SQL != nil {
		s.subHabitH = handler.NewSubHabitHandler(store.NewSubHabitStore(b.SQL), b.Habits, hub, loc, logger.With("component", "sub_habit"))
		s.taskH = handler.NewTaskHandler(
			store.NewTaskStore(b.SQL),
			store.NewTaskDetailStore(b.SQL, store.OwnerTask),
			store.NewTaskDetailStore(b.SQL, store.OwnerSubTask),
			hub, loc, logger.With("component", "task"),
		)
		s.reminderH = handler.NewReminderHandler(store.NewReminderStore(b.SQL), hub, logger.With("component", "reminder"))
		s.paymentH = handler.NewPaymentHandler(store.NewPaymentStore(b.SQL), logger.With("component", "payment"))

		if opts.Push != nil {
			s.pushH = handler.NewPushHandler(store.NewPushStore(b.SQL), opts.Push, logger.With("component", "push"))
		}
		if opts.StripeWebhookSecret != "" {
			s.stripeH = handler.NewStripeWebhookHandler(store.NewPaymentStore(b.SQL), opts.StripeWebhookSecret, hub, logger.With("component", "stripe"))
		}
	}
	return s
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the live update hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /users", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /auth/token", s.rateLimitedHandler(s.authH.Token))
	outerMux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Token))
	if s.stripeH != nil {
		// Authenticated by the Stripe-Signature header.
		outerMux.HandleFunc("POST /payments/stripe/webhook", s.stripeH.Handle)
	}

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	// Unknown authenticated paths still answer with a JSON detail.
	protectedMux.HandleFunc("/", handler.NotFound)

	authMiddleware := middleware.RequireBearer(s.cred, s.backend.Users)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.backend.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.backend.Ping(ctx); err != nil {
			s.logger.Error("health check", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("GET /auth/me", s.authH.Me)
	mux.HandleFunc("GET /users/{id}", s.userH.Get)
	mux.HandleFunc("PATCH /users/{id}", s.userH.Update)
	mux.HandleFunc("DELETE /users/{id}", s.userH.Delete)

	// Habits
	mux.HandleFunc("POST /habits", s.habitH.Create)
	mux.HandleFunc("PUT /habits/sort", s.habitH.Sort)
	mux.HandleFunc("GET /habits/{id}", s.habitH.Get)
	mux.HandleFunc("PATCH /habits/{id}", s.habitH.Update)
	mux.HandleFunc("DELETE /habits/{id}", s.habitH.Delete)
	mux.HandleFunc("GET /users/{id}/habits", s.habitH.ListByUser)
	mux.HandleFunc("GET /users/{id}/habits/{habit_id}/completion_streak", s.habitH.Streak)

	// Completions
	mux.HandleFunc("POST /completions", s.completionH.Create)
	mux.HandleFunc("PUT /completions/upsert", s.completionH.Upsert)
	mux.HandleFunc("POST /completions/prepare_completions", s.completionH.Prepare)
	mux.HandleFunc("GET /completions/{id}", s.completionH.Get)
	mux.HandleFunc("PATCH /completions/{id}", s.completionH.Update)
	mux.HandleFunc("DELETE /completions/{id}", s.completionH.Delete)
	mux.HandleFunc("GET /habits/{id}/completions", s.completionH.ListByHabit)

	// Live updates
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	if s.subHabitH != nil {
		mux.HandleFunc("POST /habits/{id}/sub_habits", s.subHabitH.Create)
		mux.HandleFunc("GET /habits/{id}/sub_habits", s.subHabitH.List)
		mux.HandleFunc("GET /sub_habits/{id}", s.subHabitH.Get)
		mux.HandleFunc("PATCH /sub_habits/{id}", s.subHabitH.Update)
		mux.HandleFunc("DELETE /sub_habits/{id}", s.subHabitH.Delete)
		mux.HandleFunc("PUT /sub_habits/{id}/completions", s.subHabitH.SetCompletion)
		mux.HandleFunc("GET /sub_habits/{id}/completions", s.subHabitH.ListCompletions)
	}

	if s.taskH != nil {
		mux.HandleFunc("POST /tasks", s.taskH.Create)
		mux.HandleFunc("GET /tasks", s.taskH.List)
		mux.HandleFunc("GET /tasks/{id}", s.taskH.Get)
		mux.HandleFunc("PATCH /tasks/{id}", s.taskH.Update)
		mux.HandleFunc("DELETE /tasks/{id}", s.taskH.Delete)
		mux.HandleFunc("POST /tasks/{id}/sub_tasks", s.taskH.CreateSubTask)
		mux.HandleFunc("GET /tasks/{id}/sub_tasks", s.taskH.ListSubTasks)
		mux.HandleFunc("GET /sub_tasks/{id}", s.taskH.GetSubTask)
		mux.HandleFunc("PATCH /sub_tasks/{id}", s.taskH.UpdateSubTask)
		mux.HandleFunc("DELETE /sub_tasks/{id}", s.taskH.DeleteSubTask)

		mux.HandleFunc("PUT /tasks/{id}/statuses", s.taskH.PutTaskStatus)
		mux.HandleFunc("GET /tasks/{id}/statuses", s.taskH.ListTaskStatuses)
		mux.HandleFunc("PUT /sub_tasks/{id}/statuses", s.taskH.PutSubTaskStatus)
		mux.HandleFunc("GET /sub_tasks/{id}/statuses", s.taskH.ListSubTaskStatuses)

		mux.HandleFunc("GET /tasks/{id}/attributes", s.taskH.ListTaskAttributes)
		mux.HandleFunc("PUT /tasks/{id}/attributes/{key}", s.taskH.PutTaskAttribute)
		mux.HandleFunc("DELETE /tasks/{id}/attributes/{key}", s.taskH.DeleteTaskAttribute)
		mux.HandleFunc("GET /sub_tasks/{id}/attributes", s.taskH.ListSubTaskAttributes)
		mux.HandleFunc("PUT /sub_tasks/{id}/attributes/{key}", s.taskH.PutSubTaskAttribute)
		mux.HandleFunc("DELETE /sub_tasks/{id}/attributes/{key}", s.taskH.DeleteSubTaskAttribute)
	}

	if s.reminderH != nil {
		mux.HandleFunc("GET /reminders", s.reminderH.List)
		mux.HandleFunc("POST /reminders", s.reminderH.Create)
		mux.HandleFunc("PUT /reminders/{id}", s.reminderH.Replace)
		mux.HandleFunc("DELETE /reminders/{id}", s.reminderH.Delete)
	}

	if s.paymentH != nil {
		mux.HandleFunc("POST /payments", s.paymentH.Create)
		mux.HandleFunc("GET /payments/{id}", s.paymentH.Get)
		mux.HandleFunc("PATCH /payments/{id}", s.paymentH.Update)
		mux.HandleFunc("DELETE /payments/{id}", s.paymentH.Delete)
		mux.HandleFunc("GET /users/{id}/payments", s.paymentH.ListByUser)
	}

	if s.pushH != nil {
		mux.HandleFunc("GET /push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /push/test", s.pushH.Test)
	}
}
