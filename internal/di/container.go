package di

import (
	"context"
	"log/slog"

	"github.com/GoArmGo/PhotoSearch/internal/adapter/flickr"
	"github.com/GoArmGo/PhotoSearch/internal/adapter/storage/minio"
	"github.com/GoArmGo/PhotoSearch/internal/app"
	"github.com/GoArmGo/PhotoSearch/internal/config"
	"github.com/GoArmGo/PhotoSearch/internal/database/client"
	"github.com/GoArmGo/PhotoSearch/internal/database/storage"
	"github.com/GoArmGo/PhotoSearch/internal/logger"
	"github.com/GoArmGo/PhotoSearch/internal/rabbitmq"
	"github.com/GoArmGo/PhotoSearch/internal/session"
	"github.com/GoArmGo/PhotoSearch/internal/usecase"
)

// BuildApp инициализирует все зависимости и возвращает готовый объект App
func BuildApp(ctx context.Context) (*app.App, error) {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	slogger := logger.NewSlog(logger.SlogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	slogger.Info("logger initialized", "level", cfg.LogLevel, "format", cfg.LogFormat)

	// 2. PostgreSQL и миграции журнала
	dbClient, err := client.NewClient(cfg, slogger)
	if err != nil {
		return nil, err
	}
	shareStorage := storage.NewShareStorage(dbClient.DB, slogger)

	// 3. Внешние сервисы
	flickrClient := flickr.NewFlickrAPIClient(cfg, slogger)
	fileStorage, err := minio.NewMinioClient(ctx, cfg, slogger)
	if err != nil {
		releaseDB(dbClient, slogger)
		return nil, err
	}

	// 4. RabbitMQ: публикация из сервера, потребление в воркере
	rabbitMQClient, err := rabbitmq.NewClient(cfg, slogger)
	if err != nil {
		releaseDB(dbClient, slogger)
		return nil, err
	}

	// 5. Бизнес-логика
	shareUseCase := usecase.NewShareUseCase(shareStorage, fileStorage, rabbitMQClient, slogger)
	archiveUseCase := usecase.NewArchiveUseCase(shareStorage, fileStorage, flickrClient, slogger)

	// 6. Сессия поиска
	controller := session.NewController(flickrClient, flickrClient, shareUseCase, cfg.ShareTimeout, slogger)

	application := app.NewApp(
		cfg,
		slogger,
		dbClient.DB,
		controller,
		shareUseCase,
		archiveUseCase,
		rabbitMQClient,
		rabbitMQClient.Close,
	)

	slogger.Info("dependencies initialized")
	return application, nil
}

// releaseDB закрывает соединение с БД, если сборка приложения прервалась
func releaseDB(dbClient *client.Client, logger *slog.Logger) {
	if err := dbClient.Close(); err != nil {
		logger.Error("failed to release database after init error", "error", err)
	}
}
