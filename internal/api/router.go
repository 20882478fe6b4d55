package api

import (
	"net/http"

	"github.com/dom/inhouse-league/internal/api/handlers"
	"github.com/dom/inhouse-league/internal/api/middleware"
	"github.com/dom/inhouse-league/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handlers.NewAuthHandler(services.Auth)
	playerHandler := handlers.NewPlayerHandler(services.Player)
	lobbyHandler := handlers.NewLobbyHandler(services.Lobby)
	matchHandler := handlers.NewMatchHandler(services.Match, services.Lobby)

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Get("/me", authHandler.Me)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			r.Route("/players", func(r chi.Router) {
				r.Post("/", playerHandler.Register)
				r.Get("/leaderboard", playerHandler.Leaderboard)
				r.Get("/{playerId}", playerHandler.Get)
				r.Put("/{playerId}/roles", playerHandler.UpdateRoles)
				r.Get("/{playerId}/history", playerHandler.RatingHistory)
			})

			r.Route("/lobby", func(r chi.Router) {
				r.Post("/", lobbyHandler.Open)
				r.Get("/", lobbyHandler.Get)
				r.Post("/join", lobbyHandler.Join)
				r.Post("/leave", lobbyHandler.Leave)
				r.Post("/reset", lobbyHandler.Reset)
			})

			r.Route("/matches", func(r chi.Router) {
				r.Post("/shuffle", matchHandler.Shuffle)
				r.Post("/submit", matchHandler.Submit)
				r.Get("/pending", matchHandler.Pending)
				r.Get("/", matchHandler.List)
				r.Get("/{matchId}", matchHandler.Get)

				// Admin-only direct overrides
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/record", matchHandler.Record)
					r.Post("/abort", matchHandler.Abort)
				})
			})
		})
	})

	return r
}
