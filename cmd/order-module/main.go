// Точка входа Order Module — модуль заявок на печать системы Print Seva.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует файловое хранилище и JWT middleware, создаёт сервисный
// слой и API handlers, запускает topologymetrics и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/CS-Kiran/print-seva/order-module/internal/api/handlers"
	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
	"github.com/CS-Kiran/print-seva/order-module/internal/config"
	"github.com/CS-Kiran/print-seva/order-module/internal/database"
	"github.com/CS-Kiran/print-seva/order-module/internal/repository"
	"github.com/CS-Kiran/print-seva/order-module/internal/server"
	"github.com/CS-Kiran/print-seva/order-module/internal/service"
	"github.com/CS-Kiran/print-seva/order-module/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Order Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждение о дефолтном значении topologymetrics
	if os.Getenv("OM_DEPHEALTH_GROUP") == "" {
		logger.Warn("OM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Файловое хранилище документов
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Файловое хранилище инициализировано",
		slog.String("data_dir", store.DataDir()),
	)

	// 6. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:          cfg.JWTJWKSURL,
		Issuer:           cfg.JWTIssuer,
		CACertPath:       cfg.IDPCACertPath,
		ClientTimeout:    cfg.JWKSClientTimeout,
		RefreshInterval:  cfg.JWKSRefreshInterval,
		JWTLeeway:        cfg.JWTLeeway,
		CustomerGroups:   cfg.RoleCustomerGroups,
		ShopkeeperGroups: cfg.RoleShopkeeperGroups,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
	)

	// 7. Repositories
	requestRepo := repository.NewPrintRequestRepository(pool, repository.NewTxRunner(pool))
	shopRepo := repository.NewShopRepository(pool)

	// 8. Services
	cacheSvc := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	transferSvc := service.NewTransferService(
		store,
		cfg.MaxFileSize,
		cfg.AllowedContentTypes,
		cfg.StorageOpTimeout,
		logger,
	)
	requestSvc := service.NewRequestService(
		requestRepo, shopRepo,
		cacheSvc, transferSvc,
		logger,
	)
	shopSvc := service.NewShopService(shopRepo, logger)

	// Добираем документы, оставшиеся в очереди вычистки после сбоя
	if err := requestSvc.SweepCleanups(ctx); err != nil {
		logger.Warn("Ошибка обработки очереди вычистки документов",
			slog.String("error", err.Error()),
		)
	}

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL + IdP JWKS)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"order-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. API handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), cfg.DataDir)
	requestsHandler := handlers.NewRequestsHandler(requestSvc, shopSvc, transferSvc, logger)
	filesHandler := handlers.NewFilesHandler(requestSvc, transferSvc, logger)
	shopsHandler := handlers.NewShopsHandler(shopSvc, logger)

	apiHandler := handlers.NewAPIHandler(
		requestsHandler,
		filesHandler,
		shopsHandler,
		healthHandler,
		jwtAuth,
	)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Order Module остановлен")
}
