package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gigledger/gigledger/auth"
	"github.com/gigledger/gigledger/dashboard"
	"github.com/gigledger/gigledger/devices"
	"github.com/gigledger/gigledger/internal/config"
	"github.com/gigledger/gigledger/routes"
	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/token/apitoken"
	"github.com/gigledger/gigledger/users"
)

// Services bundles the domain services the HTTP layer exposes.
type Services struct {
	Auth      *auth.Service
	APITokens *apitoken.Service
	Routes    *routes.Service
	Dashboard *dashboard.Service
	Devices   *devices.Service
	Users     users.UserRepo
}

// Server is the HTTP surface. All state lives in the domain services; the
// server only translates requests and enforces authentication and scopes.
type Server struct {
	router   chi.Router
	services Services
	issuer   *token.Issuer
	logger   zerolog.Logger
}

// New assembles the router. The issuer is used by the bearer middleware to
// validate access tokens locally; API tokens additionally go through the
// token store for revocation checks.
func New(cfg config.Config, services Services, issuer *token.Issuer, logger zerolog.Logger) (*Server, error) {
	if services.Auth == nil || services.APITokens == nil || services.Routes == nil ||
		services.Dashboard == nil || services.Devices == nil || services.Users == nil {
		return nil, errors.New("[server.New] all services are required")
	}
	if issuer == nil {
		return nil, errors.New("[server.New] token issuer is required")
	}

	s := &Server{
		services: services,
		issuer:   issuer,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.GetAllowedOrigins(),
		AllowedMethods: cfg.GetAllowedMethods(),
		AllowedHeaders: cfg.GetAllowedHeaders(),
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.BearerAuth)
			r.Post("/2fa/setup", s.handle2FASetup)
			r.Post("/2fa/verify", s.handle2FAVerify)
			r.Post("/2fa/disable", s.handle2FADisable)
			r.Post("/2fa/backup-codes", s.handleRegenerateBackupCodes)
			r.Get("/2fa/backup-codes/remaining", s.handleBackupCodesRemaining)
			r.Post("/sessions/revoke-all", s.handleRevokeAllSessions)
		})
	})

	r.Route("/api/tokens", func(r chi.Router) {
		// Like /auth/refresh, this trades a refresh token rather than a
		// bearer token, so it stays outside the authenticated group.
		r.Post("/refresh", s.handleRefreshAPIToken)

		r.Group(func(r chi.Router) {
			r.Use(s.BearerAuth)
			r.Post("/", s.handleGenerateAPIToken)
			r.Get("/", s.handleListAPITokens)
			r.Delete("/{id}", s.handleRevokeAPIToken)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.BearerAuth)

		r.Route("/routes", func(r chi.Router) {
			r.With(RequireScope(token.ScopeReadRoutes)).Get("/", s.handleListRoutes)
			r.With(RequireScope(token.ScopeReadRoutes)).Get("/{id}", s.handleGetRoute)
			r.With(RequireScope(token.ScopeWriteRoutes)).Post("/", s.handleCreateRoute)
			r.With(RequireScope(token.ScopeWriteRoutes)).Put("/{id}", s.handleUpdateRoute)
			r.With(RequireScope(token.ScopeWriteRoutes)).Delete("/{id}", s.handleDeleteRoute)
		})

		r.Route("/worktypes", func(r chi.Router) {
			r.With(RequireScope(token.ScopeReadRoutes)).Get("/", s.handleListWorkTypes)
			r.With(RequireScope(token.ScopeWriteRoutes)).Post("/", s.handleUpsertWorkType)
			r.With(RequireScope(token.ScopeWriteRoutes)).Delete("/{id}", s.handleDeleteWorkType)
		})

		r.With(RequireScope(token.ScopeReadDashboard)).Get("/dashboard", s.handleDashboard)

		r.Route("/devices", func(r chi.Router) {
			r.With(RequireScope(token.ScopeReadDevices)).Get("/", s.handleListDevices)
			r.With(RequireScope(token.ScopeWriteDevices)).Post("/", s.handleRegisterDevice)
			r.With(RequireScope(token.ScopeWriteDevices)).Post("/{id}/touch", s.handleTouchDevice)
			r.With(RequireScope(token.ScopeWriteDevices)).Delete("/{id}", s.handleUnregisterDevice)
		})
	})

	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
