// Package router wires the HTTP surface: public login and websocket
// endpoints, bearer-protected order and restaurant routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mealtime/api/internal/config"
	"github.com/mealtime/api/internal/handler"
	mw "github.com/mealtime/api/internal/middleware"
	"github.com/mealtime/api/internal/service"
	"github.com/mealtime/api/internal/store"
	"github.com/mealtime/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	queries := store.New(pool)

	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	authHandler := handler.NewAuthHandler(cfg.Security.Users, cfg.Security.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.Security.JWTSecret, w, r)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.Security.JWTSecret))

		newOrderStore := func(db store.DBTX) service.OrderStore {
			return store.New(db)
		}
		orderService := service.NewOrderService(pool, queries, newOrderStore)
		orderHandler := handler.NewOrderHandler(orderService, hub)
		r.Route("/orders", orderHandler.RegisterRoutes)

		restaurantHandler := handler.NewRestaurantHandler(queries)
		r.Route("/restaurants", restaurantHandler.RegisterRoutes)
	})

	return r
}
