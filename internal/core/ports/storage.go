package ports

import (
	"context"
	"io"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
	"github.com/google/uuid"
)

// ShareStorage определяет методы для работы с журналом отправок
type ShareStorage interface {
	// SaveShare сохраняет отправку вместе с её элементами в одной транзакции
	SaveShare(ctx context.Context, share *domain.Share) error
	GetShare(ctx context.Context, id uuid.UUID) (*domain.Share, error)
	SetItemLargeKey(ctx context.Context, shareID uuid.UUID, photoID, largeKey string) error
	SetShareStatus(ctx context.Context, id uuid.UUID, status string) error
}

// FileStorage определяет методы объектного хранилища для отправленных картинок
type FileStorage interface {
	// UploadFile загружает объект и возвращает его публичный URL
	UploadFile(ctx context.Context, objectKey string, content io.Reader, contentType string) (string, error)
	GetFile(ctx context.Context, objectKey string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, objectKey string) error
}

// LargeImageLoader скачивает большую версию фото, используется воркером архивации
type LargeImageLoader interface {
	LoadLargeImage(ctx context.Context, ref domain.PhotoRef) (*domain.Image, error)
}
