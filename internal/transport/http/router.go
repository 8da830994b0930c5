package http

import (
	"context"
	"net/http"

	"github.com/gigmarket-api/internal/application/auth"
	"github.com/gigmarket-api/internal/application/otp"
	"github.com/gigmarket-api/internal/application/token"
	"github.com/gigmarket-api/internal/application/user"
	"github.com/gigmarket-api/internal/config"
	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/transport/http/handler"
	appmiddleware "github.com/gigmarket-api/internal/transport/http/middleware"
	"github.com/gigmarket-api/internal/transport/http/respond"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// background work of the rate limiter.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps, log *zap.Logger) http.Handler {
	rs := respond.New(!cfg.IsProduction(), log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.Logger(log))
	r.Use(appmiddleware.Recover(log, rs))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider, deps.UserRepo, rs)
	adminOnly := appmiddleware.RequireRole(rs, domain.RoleAdmin)
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Warn("ignoring TRUSTED_PROXIES", zap.Error(err))
		proxies = nil
	}
	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, rs).TrustProxies(proxies)

	policy := otp.NewPolicy(deps.OTPRepo, otp.LimitsFromConfig(cfg.OTP), log)
	issuer := token.NewIssuer(deps.TokenRepo, deps.UserRepo, deps.JWTProvider, cfg.RefreshRecordTTL, log)
	authSvc := auth.NewService(auth.ServiceDeps{
		OTP:              policy,
		Tokens:           issuer,
		UserRepo:         deps.UserRepo,
		SMSSender:        deps.SMSSender,
		Log:              log,
		DeliveryTimeout:  cfg.OTP.DeliveryTimeout,
		DeliveryRequired: cfg.OTP.DeliveryRequired,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo})

	healthH := handler.NewHealthHandler(rs)
	authH := handler.NewAuthHandler(authSvc, rs)
	userH := handler.NewUserHandler(userSvc, rs)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		rs.Fail(w, req, http.StatusNotFound, "Route not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(otpRL.Limit).Post("/auth/send-otp", authH.SendOTP)
		r.With(otpRL.Limit).Post("/auth/verify-otp", authH.VerifyOTP)
		r.Post("/auth/refresh-token", authH.RefreshToken)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/logout", authH.Logout)
			r.Get("/users/profile", userH.Profile)
			r.Put("/users/profile", userH.UpdateProfile)
			r.Get("/users/{id}", userH.Get)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Get("/users", userH.List)
				r.Post("/users", userH.Create)
				r.Put("/users/{id}", userH.Update)
				r.Delete("/users/{id}", userH.Delete)
				r.Patch("/users/{id}/role", userH.UpdateRole)
			})
		})
	})

	return r
}
