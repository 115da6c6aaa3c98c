// main.go — точка входа сервиса гарантийной регистрации HONPOKUN.
// Инициализирует: config, logger, переводы, контракт OpenAPI, хранилище
// (kintone, PostgreSQL или mock), сервисы, topologymetrics, JWT и HTTP-сервер.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/api/handlers"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/api/middleware"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/api/openapi"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/config"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/database"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/i18n"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/kintone"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/repository"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/server"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/service"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/store"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис гарантийной регистрации запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("form_variant", cfg.FormVariant),
		slog.Bool("dev_mode", cfg.DevMode),
	)

	ctx := context.Background()

	// 3. Переводы сообщений (ja, en)
	messages, err := i18n.Load(logger)
	if err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Контракт OpenAPI (встроен в бинарник)
	contract, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки контракта OpenAPI", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Контракт OpenAPI загружен", slog.String("version", contract.Version()))

	// 5. Хранилище гарантийных записей
	var (
		recordStore store.RecordStore
		checker     handlers.ReadinessChecker
		pgDB        *sql.DB
	)

	switch cfg.StoreBackend {
	case config.BackendKintone:
		fields, fieldErr := kintone.ParseFieldMap(cfg.KintoneFieldMap)
		if fieldErr != nil {
			logger.Error("Ошибка разбора WR_KINTONE_FIELD_MAP", slog.String("error", fieldErr.Error()))
			os.Exit(1)
		}
		client, clientErr := kintone.New(kintone.Options{
			BaseURL:    cfg.KintoneBaseURL,
			AppID:      cfg.KintoneAppID,
			APIToken:   cfg.KintoneAPIToken,
			Timeout:    cfg.KintoneTimeout,
			CACertPath: cfg.KintoneCACertPath,
			Fields:     fields,
			Location:   cfg.Location,
		}, logger)
		if clientErr != nil {
			logger.Error("Ошибка создания клиента kintone", slog.String("error", clientErr.Error()))
			os.Exit(1)
		}
		recordStore = client
		checker = client
		logger.Info("Хранилище: kintone",
			slog.String("base_url", cfg.KintoneBaseURL),
			slog.String("app_id", cfg.KintoneAppID),
		)

	case config.BackendPostgres:
		// 5.1 Миграции до открытия пула
		if cfg.DBMigrate {
			if migrateErr := database.Migrate(cfg, logger); migrateErr != nil {
				logger.Error("Ошибка миграций БД", slog.String("error", migrateErr.Error()))
				os.Exit(1)
			}
		}

		// 5.2 Подключение к PostgreSQL (pgxpool)
		pool, connErr := database.Connect(ctx, cfg, logger)
		if connErr != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", connErr.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// 5.3 Адаптер pgxpool → *sql.DB для topologymetrics: проверка идёт
		// через тот же пул соединений.
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		recordStore = repository.NewWarrantyRepository(pool)
		checker = database.NewReadinessChecker(pool)
		logger.Info("Хранилище: PostgreSQL",
			slog.String("host", cfg.DBHost),
			slog.String("database", cfg.DBName),
		)

	default:
		mock := store.NewMock(cfg.StoreFallbackReason, logger)
		recordStore = mock
		checker = mock
		logger.Warn("Хранилище: mock, записи не сохраняются",
			slog.String("reason", cfg.StoreFallbackReason),
		)
	}

	// 6. Services
	lookupSvc := service.NewLookupService(recordStore, logger)
	registrationSvc := service.NewRegistrationService(lookupSvc, recordStore, logger)
	statusSvc := service.NewStatusService(
		lookupSvc,
		service.NewAttemptLimiter(cfg.StatusMaxFailures, cfg.StatusFailureWindow),
		cfg.Location,
		logger,
	)

	// 7. topologymetrics — мониторинг зависимостей хранилища
	if cfg.DephealthEnabled && cfg.StoreBackend != config.BackendMock {
		targets := service.DephealthTargets{}
		switch cfg.StoreBackend {
		case config.BackendKintone:
			targets.KintoneBaseURL = cfg.KintoneBaseURL
		case config.BackendPostgres:
			targets.DB = pgDB
			targets.PostgresURL = cfg.DatabaseURL()
		}

		dephealthSvc, dephealthErr := service.NewDephealthService(
			cfg.ServiceName,
			cfg.DephealthGroup,
			targets,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dephealthErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 8. JWT middleware служебного endpoint (только при заданном JWKS URL)
	var staffAuth *middleware.JWTAuth
	if cfg.StaffAPIEnabled() {
		staffAuth, err = middleware.NewJWTAuth(middleware.JWTAuthOptions{
			JWKSURL:         cfg.JWTJWKSURL,
			CACertPath:      cfg.JWTCACertPath,
			Issuer:          cfg.JWTIssuer,
			AdminGroups:     cfg.RoleAdminGroups,
			ReadonlyGroups:  cfg.RoleReadonlyGroups,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.JWTLeeway,
		}, messages, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Info("WR_JWT_JWKS_URL не задан, служебный endpoint отключён")
	}

	// 9. Handlers
	healthHandler := handlers.NewHealthHandler(cfg.ServiceName, cfg.StoreBackend, checker)
	apiHandler := handlers.NewAPIHandler(
		lookupSvc,
		registrationSvc,
		statusSvc,
		messages,
		handlers.Options{
			FormVariant: validation.FormVariant(cfg.FormVariant),
			DevMode:     cfg.DevMode,
		},
		logger,
	)

	// 10. HTTP-сервер
	srv := server.New(cfg, logger, server.Routes{
		API:       apiHandler,
		Health:    healthHandler,
		OpenAPI:   contract,
		StaffAuth: staffAuth,
	})

	// 11. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Сервис гарантийной регистрации остановлен")
}
