package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gigledger/gigledger/auth"
	"github.com/gigledger/gigledger/dashboard"
	"github.com/gigledger/gigledger/devices"
	devicesrepofake "github.com/gigledger/gigledger/devices/repofake"
	"github.com/gigledger/gigledger/internal/config"
	"github.com/gigledger/gigledger/internal/rate"
	"github.com/gigledger/gigledger/mfa"
	mfarepofake "github.com/gigledger/gigledger/mfa/repofake"
	"github.com/gigledger/gigledger/routes"
	routesrepofake "github.com/gigledger/gigledger/routes/repofake"
	"github.com/gigledger/gigledger/server"
	"github.com/gigledger/gigledger/storage/postgres"
	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/token/apitoken"
	apitokenrepofake "github.com/gigledger/gigledger/token/apitoken/repofake"
	"github.com/gigledger/gigledger/token/refresh"
	refreshrepofake "github.com/gigledger/gigledger/token/refresh/repofake"
	"github.com/gigledger/gigledger/users"
	userrepofake "github.com/gigledger/gigledger/users/repofake"
)

// repos bundles every persistence dependency so the in-memory and postgres
// wirings stay symmetric.
type repos struct {
	users       users.UserRepo
	backupCodes mfa.BackupCodeRepo
	refresh     refresh.Repo
	apiTokens   apitoken.Repo
	routes      routes.RouteRepo
	workTypes   routes.WorkTypeRepo
	devices     devices.Repo
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("server stopped")
}

func run(logger zerolog.Logger) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	displayAppname(cfg.GetAppName())

	ctx := context.Background()
	r, err := buildRepos(ctx, cfg, logger)
	if err != nil {
		return err
	}

	issuer, err := token.NewIssuer(token.NewHMACSigner(cfg.GetJWTSecret()), "com.gigledger", "api",
		token.WithExpiry(cfg.GetAccessTokenTTL()))
	if err != nil {
		return err
	}

	vault, err := mfa.NewVault(r.backupCodes, logger)
	if err != nil {
		return err
	}

	sessions, err := refresh.NewManager(r.refresh, logger, refresh.WithExpiry(cfg.GetRefreshTokenTTL()))
	if err != nil {
		return err
	}

	authOptions := []auth.ServiceOption{}
	if addr := cfg.GetRedisAddr(); addr != "" {
		limiter, err := rate.NewLimiter(redis.NewClient(&redis.Options{Addr: addr}),
			rate.WithMaxAttempts(cfg.GetMaxAuthAttempts()),
			rate.WithWindow(cfg.GetAuthAttemptWindow()))
		if err != nil {
			return err
		}
		authOptions = append(authOptions, auth.WithAttemptLimiter(limiter))
		logger.Info().Str("addr", addr).Msg("redis attempt limiter enabled")
	}

	authService, err := auth.NewService(auth.Repos{Users: r.users},
		users.NewRepoVerifier(r.users), vault, sessions, issuer, cfg.GetTOTPIssuer(), logger, authOptions...)
	if err != nil {
		return err
	}

	apiTokens, err := apitoken.NewService(r.apiTokens, issuer, sessions, r.users, logger)
	if err != nil {
		return err
	}

	routeService, err := routes.NewService(routes.Repos{Routes: r.routes, WorkTypes: r.workTypes}, logger)
	if err != nil {
		return err
	}

	dashboardService, err := dashboard.NewService(r.routes, logger)
	if err != nil {
		return err
	}

	deviceService, err := devices.NewService(r.devices, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.Services{
		Auth:      authService,
		APITokens: apiTokens,
		Routes:    routeService,
		Dashboard: dashboardService,
		Devices:   deviceService,
		Users:     r.users,
	}, issuer, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildRepos wires postgres-backed repos when DATABASE_URL is set and falls
// back to in-memory repos for local development.
func buildRepos(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*repos, error) {
	databaseURL := cfg.GetDatabaseURL()
	if databaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
		return &repos{
			users:       userrepofake.NewFakeUserRepo(),
			backupCodes: mfarepofake.NewFakeBackupCodeRepo(),
			refresh:     refreshrepofake.NewFakeRefreshTokenRepo(),
			apiTokens:   apitokenrepofake.NewFakeAPITokenRepo(),
			routes:      routesrepofake.NewFakeRouteRepo(),
			workTypes:   routesrepofake.NewFakeWorkTypeRepo(),
			devices:     devicesrepofake.NewFakeDeviceRepo(),
		}, nil
	}

	pool, err := postgres.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to postgres")

	return &repos{
		users:       postgres.NewUserRepo(pool),
		backupCodes: postgres.NewBackupCodeRepo(pool),
		refresh:     postgres.NewRefreshTokenRepo(pool),
		apiTokens:   postgres.NewAPITokenRepo(pool),
		routes:      postgres.NewRouteRepo(pool),
		workTypes:   postgres.NewWorkTypeRepo(pool),
		devices:     postgres.NewDeviceRepo(pool),
	}, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
