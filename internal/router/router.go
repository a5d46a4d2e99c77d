package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nutreterra/api/internal/config"
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/enum"
	"github.com/nutreterra/api/internal/handler"
	mw "github.com/nutreterra/api/internal/middleware"
	"github.com/nutreterra/api/internal/service"
	"github.com/nutreterra/api/internal/session"
	"github.com/nutreterra/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Catalog reads are public; everything else sits behind JWT or session
// authentication with role checks on the admin surface.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, sessions *session.Store, hub *ws.Hub, notifier handler.OrderNotifier) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:4321",        // Storefront dev server
			"https://nutreterra.com",       // Production storefront
			"https://admin.nutreterra.com", // Production admin
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, sessionManager(sessions), cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Public catalog routes
	categoryHandler := handler.NewCategoryHandler(queries)
	productLineHandler := handler.NewProductLineHandler(queries)
	tagHandler := handler.NewTagHandler(queries)
	productHandler := handler.NewProductHandler(queries)

	r.Route("/categories", categoryHandler.RegisterRoutes)
	r.Route("/product-lines", productLineHandler.RegisterRoutes)
	r.Route("/tags", tagHandler.RegisterRoutes)
	r.Route("/products", productHandler.RegisterRoutes)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret, sessionResolver(sessions)))

		authHandler.RegisterProtectedRoutes(r)

		// Orders
		orderService := service.NewOrderService(queries, pool, func(db database.DBTX) service.OrderStore {
			return database.New(db)
		})
		orderHandler := handler.NewOrderHandler(orderService, queries, notifier)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))
				orderHandler.RegisterAdminRoutes(r)
			})
		})

		// Users: profile reads, self updates, and addresses are owner-or-admin
		// (enforced per request); listing and deletion stay admin-only.
		addressHandler := handler.NewAddressHandler(queries, pool, func(db database.DBTX) handler.AddressStore {
			return database.New(db)
		})
		userHandler := handler.NewUserHandler(queries)
		r.Route("/users", func(r chi.Router) {
			userHandler.RegisterRoutes(r)
			r.Route("/{uid}/addresses", addressHandler.RegisterRoutes)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))
				userHandler.RegisterAdminRoutes(r)
			})
		})

		// Menus
		menuHandler := handler.NewMenuHandler(queries, pool, func(db database.DBTX) handler.MenuStore {
			return database.New(db)
		})
		r.Route("/menus", menuHandler.RegisterRoutes)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			r.Route("/admin/categories", categoryHandler.RegisterAdminRoutes)
			r.Route("/admin/product-lines", productLineHandler.RegisterAdminRoutes)
			r.Route("/admin/tags", tagHandler.RegisterAdminRoutes)
			r.Route("/admin/products", productHandler.RegisterAdminRoutes)
		})
	})

	return r
}

// sessionManager keeps a typed nil from reaching the handler's interface
// field when Redis is not configured.
func sessionManager(s *session.Store) handler.SessionManager {
	if s == nil {
		return nil
	}
	return s
}

func sessionResolver(s *session.Store) mw.SessionResolver {
	if s == nil {
		return nil
	}
	return s
}
