package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"chatapp/internal/config"
	"chatapp/internal/domain"
	"chatapp/internal/logger"
	"chatapp/internal/service"
)

// Notifier pushes REST-originated changes to live connections.
type Notifier interface {
	PublishMessage(v *service.MessageView)
	PublishEdit(v *service.MessageView)
	PublishDelete(m *domain.Message)
	PublishRead(res *service.ReadResult)
	SubscribeUsers(chatID string, userIDs ...string)
	UnsubscribeUser(chatID, userID string)
	DropRoom(chatID string)
}

type Deps struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Chats    *service.ChatService
	Messages *service.MessageService
	Notifier Notifier
	// Socket serves the websocket endpoint.
	Socket http.Handler
}

type handlers struct {
	auth     *service.AuthService
	users    *service.UserService
	chats    *service.ChatService
	messages *service.MessageService
	notify   Notifier
	log      *zap.Logger
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(cfg *config.Config, deps Deps, log *zap.Logger) http.Handler {
	h := &handlers{
		auth:     deps.Auth,
		users:    deps.Users,
		chats:    deps.Chats,
		messages: deps.Messages,
		notify:   deps.Notifier,
		log:      log.Named("http"),
	}

	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/health", handleHealth)

		// Auth routes (no auth required)
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.auth, h.log))

			r.Get("/auth/me", h.me)

			r.Route("/users", func(r chi.Router) {
				r.Get("/search", h.searchUsers)
				r.Get("/{userID}", h.getUser)
			})

			r.Route("/chats", func(r chi.Router) {
				r.Post("/", h.createChat)
				r.Get("/", h.listChats)
				r.Route("/{chatID}", func(r chi.Router) {
					r.Get("/", h.getChat)
					r.Put("/", h.updateChat)
					r.Delete("/", h.deleteChat)
					r.Post("/participants", h.addParticipant)
					r.Delete("/participants/{userID}", h.removeParticipant)
					r.Get("/messages", h.listMessages)
					r.Post("/messages", h.createMessage)
				})
			})

			r.Route("/messages/{messageID}", func(r chi.Router) {
				r.Put("/", h.updateMessage)
				r.Delete("/", h.deleteMessage)
				r.Post("/read", h.markRead)
			})
		})
	})

	// WebSocket endpoint; it authenticates on its own and outlives the request timeout.
	if deps.Socket != nil {
		r.Handle("/ws", deps.Socket)
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}
