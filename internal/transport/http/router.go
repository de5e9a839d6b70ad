package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bapmate/internal/handler"
	"bapmate/internal/httputil"
	authmw "bapmate/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	AccountHandler      *handler.AccountHandler
	PostHandler         *handler.PostHandler
	RequestHandler      *handler.RequestHandler
	ChatHandler         *handler.ChatHandler
	LocationHandler     *handler.LocationHandler
	NotificationHandler *handler.NotificationHandler
	LiveHandler         *handler.LiveHandler
	JWTSecret           string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, httputil.ErrCodeMethod, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
	})

	r.Route("/account", func(r chi.Router) {
		r.Post("/find-id", cfg.AccountHandler.FindID)
		r.Post("/security-question", cfg.AccountHandler.SecurityQuestion)
		r.Post("/verify-answer", cfg.AccountHandler.VerifyAnswer)
	})

	// answers every method itself so non-POST gets its own 405 body
	r.HandleFunc("/api/sendTempPassword", cfg.AccountHandler.SendTempPassword)

	// Websockets carry the token in ?token= since browsers cannot set headers
	r.Group(func(r chi.Router) {
		r.Use(authmw.WebSocketAuthMiddleware(cfg.JWTSecret))

		r.Get("/ws", cfg.LiveHandler.Requests)
		r.Get("/ws/rooms/{id}", cfg.LiveHandler.Room)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/me", cfg.UserHandler.Me)
		r.Patch("/me", cfg.UserHandler.UpdateMe)
		r.Delete("/me", cfg.UserHandler.DeleteMe)
		r.Post("/me/password", cfg.UserHandler.ChangePassword)

		r.Post("/auth/logout", cfg.AuthHandler.Logout)
		r.Post("/auth/logout-all", cfg.AuthHandler.LogoutAll)

		r.Get("/users/{id}", cfg.UserHandler.GetProfile)

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", cfg.PostHandler.Create)
			r.Get("/", cfg.PostHandler.List)
			r.Get("/hotspots", cfg.PostHandler.Hotspots)
			r.Get("/{id}", cfg.PostHandler.GetByID)
			r.Delete("/{id}", cfg.PostHandler.Delete)
			r.Post("/{id}/requests", cfg.RequestHandler.Create)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/received", cfg.RequestHandler.ListReceived)
			r.Get("/sent", cfg.RequestHandler.ListSent)
			r.Post("/{id}/accept", cfg.RequestHandler.Accept)
			r.Post("/{id}/reject", cfg.RequestHandler.Reject)
			r.Delete("/{id}", cfg.RequestHandler.Cancel)
			r.Post("/{id}/chat", cfg.RequestHandler.StartChat)
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", cfg.ChatHandler.ListRooms)
			r.Get("/{id}", cfg.ChatHandler.GetRoom)
			r.Delete("/{id}", cfg.ChatHandler.DeleteRoom)
			r.Get("/{id}/messages", cfg.ChatHandler.Messages)
			r.Post("/{id}/messages", cfg.ChatHandler.Send)
			r.Post("/{id}/read", cfg.ChatHandler.MarkRead)
			r.Post("/{id}/leave", cfg.ChatHandler.Leave)
			r.Get("/{id}/meeting", cfg.ChatHandler.GetMeeting)
			r.Put("/{id}/meeting", cfg.ChatHandler.SetMeeting)

			r.Get("/{id}/location", cfg.LocationHandler.Members)
			r.Put("/{id}/location", cfg.LocationHandler.Update)
			r.Post("/{id}/location/start", cfg.LocationHandler.Start)
			r.Post("/{id}/location/stop", cfg.LocationHandler.Stop)
		})

		r.Post("/devices", cfg.NotificationHandler.RegisterToken)
		r.Delete("/devices", cfg.NotificationHandler.RemoveToken)
	})

	return r
}
