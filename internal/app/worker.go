package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoArmGo/PhotoSearch/internal/core/ports"
	"github.com/GoArmGo/PhotoSearch/internal/messaging/payloads"
	"github.com/GoArmGo/PhotoSearch/internal/usecase"
)

// runWorker потребляет события об отправках и архивирует большие версии фото
func runWorker(
	ctx context.Context,
	logger *slog.Logger,
	archiveUseCase usecase.ArchiveUseCase,
	consumer ports.ShareEventConsumer,
) error {
	messageHandler := func(ctx context.Context, event payloads.ShareEvent) error {
		logger.Info("archiving share", "share_id", event.ShareID, "items", len(event.Items))
		return archiveUseCase.ArchiveShare(ctx, event)
	}

	if err := consumer.StartConsumingShareEvents(ctx, messageHandler); err != nil {
		return fmt.Errorf("ошибка при запуске потребителя RabbitMQ: %w", err)
	}
	logger.Info("worker started, waiting for share events")

	<-ctx.Done()
	logger.Info("worker stopped")
	return nil
}
