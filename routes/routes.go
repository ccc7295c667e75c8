package routes

import (
	"github.com/B4OS-Dev/classroom-sync/handlers"
	"github.com/B4OS-Dev/classroom-sync/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

// SetupRoutes wires the read API, the websocket feed and the guarded sync
// trigger.
func SetupRoutes(
	router *chi.Mux,
	leaderboardHandler *handlers.LeaderboardHandler,
	syncHandler *handlers.SyncHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", healthHandler.Check)

	router.Route("/leaderboard", func(r chi.Router) {
		r.Get("/", leaderboardHandler.List)
		r.Get("/{username}", leaderboardHandler.GetByUsername)
	})

	router.Get("/ws", webSocketHandler.Serve)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(jwtSecret))
		r.Post("/sync", syncHandler.Trigger)
	})
}
