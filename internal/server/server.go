// Пакет server — HTTP-сервер сервиса гарантийной регистрации с graceful shutdown.
// Без TLS — TLS termination на ingress / reverse proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/api/handlers"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/api/middleware"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/config"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/i18n"
)

// StaffRecordsPath — шаблон пути служебного просмотра записи.
const StaffRecordsPath = "/api/v1/staff/records/{managementId}"

// Routes — обработчики, из которых собирается роутер.
type Routes struct {
	API    *handlers.APIHandler
	Health *handlers.HealthHandler
	// OpenAPI — отдача контракта (/api/openapi.yaml)
	OpenAPI http.Handler
	// StaffAuth — JWT middleware; nil — служебный endpoint не монтируется
	StaffAuth *middleware.JWTAuth
}

// NewRouter собирает chi-роутер со всеми маршрутами и middleware.
func NewRouter(logger *slog.Logger, routes Routes) chi.Router {
	router := chi.NewRouter()

	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	router.Get("/health/live", routes.Health.HealthLive)
	router.Get("/health/ready", routes.Health.HealthReady)
	router.Get("/metrics", routes.Health.GetMetrics)

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware())

		r.Post("/api/check-management-id", routes.API.CheckManagementID)
		r.Post("/api/register", routes.API.Register)
		r.Post("/api/status", routes.API.Status)

		if routes.OpenAPI != nil {
			r.Method(http.MethodGet, "/api/openapi.yaml", routes.OpenAPI)
		}

		if routes.StaffAuth != nil {
			r.With(
				routes.StaffAuth.Middleware(),
				routes.StaffAuth.RequireRoleOrScope(
					[]string{middleware.RoleAdmin, middleware.RoleReadonly},
					[]string{middleware.ScopeWarrantyRead},
				),
			).Get(StaffRecordsPath, routes.API.StaffRecord)
		}
	})

	return router
}

// Server — HTTP-сервер сервиса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, routes Routes) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, routes),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
