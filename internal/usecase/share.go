package usecase

import (
	"context"
	"io"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
	"github.com/GoArmGo/PhotoSearch/internal/messaging/payloads"
	"github.com/google/uuid"
)

// ShareUseCase определяет бизнес-логику отправки выбранных фото
type ShareUseCase interface {
	// ShareThumbnails загружает миниатюры в хранилище, записывает отправку в журнал
	// и публикует событие для воркера
	ShareThumbnails(ctx context.Context, images []domain.SharedImage) (*domain.Share, error)

	// GetShare возвращает отправку из журнала
	GetShare(ctx context.Context, id uuid.UUID) (*domain.Share, error)

	// OpenShareImage открывает сохранённую в хранилище картинку фото из отправки
	OpenShareImage(ctx context.Context, id uuid.UUID, photoID, size string) (io.ReadCloser, error)
}

// ArchiveUseCase дополняет отправку большими версиями фото, выполняется воркером
type ArchiveUseCase interface {
	ArchiveShare(ctx context.Context, event payloads.ShareEvent) error
}
