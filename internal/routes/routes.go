package routes

import (
	"log/slog"

	"github.com/BradenHooton/stockroom/internal/auth"
	"github.com/BradenHooton/stockroom/internal/config"
	"github.com/BradenHooton/stockroom/internal/handlers"
	"github.com/BradenHooton/stockroom/internal/middleware"
	"github.com/BradenHooton/stockroom/internal/models"
	pkghttp "github.com/BradenHooton/stockroom/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Products *handlers.ProductHandler
	Admin    *handlers.AdminHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	userRepo auth.UserRepository,
	revokeRepo auth.TokenRevocationChecker,
	serverCfg config.ServerConfig,
	logger *slog.Logger,
) {
	ipConfig := &pkghttp.IPConfig{TrustedProxies: serverCfg.TrustedProxies}

	// Coarse request ceiling in front of the ledger-backed login defense
	authLimit := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestsPerMinute: serverCfg.AuthRequestsPerMinute,
		IPConfig:          ipConfig,
	})

	// Public routes - no authentication required
	router.With(authLimit).Post("/auth/login", h.Auth.Login)
	router.With(authLimit).Post("/auth/refresh", h.Auth.RefreshToken)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager, revokeRepo, auth.RevocationConfig{FailClosed: serverCfg.Env == "production"}, logger))
		r.Use(middleware.RateLimitByUserID(middleware.RateLimitConfig{
			RequestsPerMinute: serverCfg.APIRequestsPerMinute,
			IPConfig:          ipConfig,
		}))

		// Any authenticated user
		r.Post("/auth/logout", h.Auth.Logout)
		r.Get("/auth/profile", h.Auth.Profile)
		r.Post("/auth/change-password", h.Auth.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, models.RoleAdmin, models.RoleViewer))
			r.Get("/products", h.Products.ListProducts)
			r.Get("/products/{id}", h.Products.GetProduct)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, models.RoleAdmin))

			r.Post("/products", h.Products.CreateProduct)
			r.Put("/products/{id}", h.Products.UpdateProduct)
			r.Delete("/products/{id}", h.Products.DeleteProduct)

			r.Post("/auth/register", h.Auth.Register)
			r.Get("/auth/users", h.Users.ListUsers)
			r.Get("/auth/users/{id}", h.Users.GetUser)
			r.Delete("/auth/users/{id}", h.Users.DeleteUser)

			r.Route("/admin/security", func(r chi.Router) {
				r.Get("/stats", h.Admin.GetStats)
				r.Get("/report", h.Admin.GetReport)
				r.Post("/unlock", h.Admin.Unlock)
				r.Post("/lock", h.Admin.Lock)
			})
		})
	})
}
