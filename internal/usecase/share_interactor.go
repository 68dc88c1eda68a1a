package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/GoArmGo/PhotoSearch/internal/core/ports"
	"github.com/GoArmGo/PhotoSearch/internal/domain"
	"github.com/GoArmGo/PhotoSearch/internal/messaging/payloads"
	"github.com/google/uuid"
)

const cleanupTimeout = 10 * time.Second

// objectKey строит ключ объекта: shares/<shareID>/<photoID>_<size>.jpg
func objectKey(shareID uuid.UUID, photoID, size string) string {
	return fmt.Sprintf("shares/%s/%s_%s.jpg", shareID, photoID, size)
}

type shareUseCase struct {
	shares    ports.ShareStorage
	files     ports.FileStorage
	publisher ports.ShareEventPublisher
	logger    *slog.Logger
}

func NewShareUseCase(
	shares ports.ShareStorage,
	files ports.FileStorage,
	publisher ports.ShareEventPublisher,
	logger *slog.Logger,
) ShareUseCase {
	return &shareUseCase{
		shares:    shares,
		files:     files,
		publisher: publisher,
		logger:    logger,
	}
}

func (uc *shareUseCase) ShareThumbnails(ctx context.Context, images []domain.SharedImage) (*domain.Share, error) {
	if len(images) == 0 {
		return nil, domain.ErrNothingToShare
	}
	start := time.Now()

	share := &domain.Share{
		ID:        uuid.New(),
		Status:    domain.ShareStatusShared,
		CreatedAt: time.Now().UTC(),
	}

	var (
		lastErr  error
		uploaded []string
	)
	for i, img := range images {
		if img.Image == nil || len(img.Image.Data) == 0 {
			continue
		}
		key := objectKey(share.ID, img.Photo.ID, domain.SizeThumbnail)
		if _, err := uc.files.UploadFile(ctx, key, bytes.NewReader(img.Image.Data), img.Image.ContentType()); err != nil {
			uc.logger.Warn("thumbnail upload failed, skipping", "share_id", share.ID, "photo_id", img.Photo.ID, "error", err)
			lastErr = err
			continue
		}
		uploaded = append(uploaded, key)
		share.Items = append(share.Items, domain.ShareItem{
			Position:     i,
			PhotoID:      img.Photo.ID,
			Farm:         img.Photo.Farm,
			Server:       img.Photo.Server,
			Secret:       img.Photo.Secret,
			ThumbnailKey: key,
		})
	}

	if len(share.Items) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("usecase: ни одна миниатюра не загружена: %w", lastErr)
		}
		return nil, domain.ErrNothingToShare
	}

	if err := uc.shares.SaveShare(ctx, share); err != nil {
		uc.removeObjects(ctx, share.ID, uploaded)
		return nil, fmt.Errorf("usecase: ошибка при записи отправки в журнал: %w", err)
	}

	event := payloads.ShareEvent{ShareID: share.ID, SharedAt: share.CreatedAt}
	for _, it := range share.Items {
		event.Items = append(event.Items, payloads.ShareItem{
			PhotoID: it.PhotoID,
			Farm:    it.Farm,
			Server:  it.Server,
			Secret:  it.Secret,
		})
	}
	// отправка уже в журнале, поэтому сбой публикации её не отменяет
	if err := uc.publisher.PublishShareEvent(ctx, event); err != nil {
		uc.logger.Error("failed to publish share event", "share_id", share.ID, "error", err)
	}

	uc.logger.Info("thumbnails shared",
		"share_id", share.ID,
		"items", len(share.Items),
		"requested", len(images),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return share, nil
}

// removeObjects удаляет загруженные объекты отправки, не попавшей в журнал.
// Выполняется и после отмены ctx запроса.
func (uc *shareUseCase) removeObjects(ctx context.Context, shareID uuid.UUID, keys []string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if err := uc.files.DeleteFile(cleanupCtx, key); err != nil {
			uc.logger.Error("failed to remove orphaned object", "share_id", shareID, "key", key, "error", err)
		}
	}
	uc.logger.Warn("share not journaled, uploaded objects removed", "share_id", shareID, "objects", len(keys))
}

func (uc *shareUseCase) GetShare(ctx context.Context, id uuid.UUID) (*domain.Share, error) {
	share, err := uc.shares.GetShare(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("usecase: ошибка при получении отправки %s: %w", id, err)
	}
	return share, nil
}

// OpenShareImage открывает сохранённую картинку отправки: миниатюру (size "m")
// или архивную большую версию (size "b"). Закрыть reader должен вызывающий.
func (uc *shareUseCase) OpenShareImage(ctx context.Context, id uuid.UUID, photoID, size string) (io.ReadCloser, error) {
	share, err := uc.GetShare(ctx, id)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(share.Items, func(it domain.ShareItem) bool { return it.PhotoID == photoID })
	if idx < 0 {
		return nil, fmt.Errorf("%w: фото %s нет в отправке %s", domain.ErrShareNotFound, photoID, id)
	}
	item := share.Items[idx]

	var key string
	switch size {
	case domain.SizeThumbnail:
		key = item.ThumbnailKey
	case domain.SizeLarge:
		key = item.LargeKey
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSize, size)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: картинка %s_%s ещё не сохранена", domain.ErrNoData, photoID, size)
	}

	body, err := uc.files.GetFile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("usecase: ошибка при чтении %s: %w", key, err)
	}
	return body, nil
}

type archiveUseCase struct {
	shares ports.ShareStorage
	files  ports.FileStorage
	loader ports.LargeImageLoader
	logger *slog.Logger
}

func NewArchiveUseCase(
	shares ports.ShareStorage,
	files ports.FileStorage,
	loader ports.LargeImageLoader,
	logger *slog.Logger,
) ArchiveUseCase {
	return &archiveUseCase{
		shares: shares,
		files:  files,
		loader: loader,
		logger: logger,
	}
}

// ArchiveShare скачивает большие версии фото отправки и складывает их рядом с миниатюрами.
// Недоступные фото пропускаются, отправка получает статус partial.
// Ошибка возвращается только при сбое журнала, чтобы событие вернулось в очередь.
func (uc *archiveUseCase) ArchiveShare(ctx context.Context, event payloads.ShareEvent) error {
	start := time.Now()
	failed := 0

	for _, it := range event.Items {
		ref := domain.PhotoRef{ID: it.PhotoID, Farm: it.Farm, Server: it.Server, Secret: it.Secret}

		img, err := uc.loader.LoadLargeImage(ctx, ref)
		if err != nil {
			uc.logger.Warn("large image unavailable", "share_id", event.ShareID, "photo_id", it.PhotoID, "error", err)
			failed++
			continue
		}

		key := objectKey(event.ShareID, it.PhotoID, domain.SizeLarge)
		if _, err := uc.files.UploadFile(ctx, key, bytes.NewReader(img.Data), img.ContentType()); err != nil {
			uc.logger.Warn("large image upload failed", "share_id", event.ShareID, "photo_id", it.PhotoID, "error", err)
			failed++
			continue
		}

		if err := uc.shares.SetItemLargeKey(ctx, event.ShareID, it.PhotoID, key); err != nil {
			return fmt.Errorf("usecase: ошибка при обновлении элемента отправки: %w", err)
		}
	}

	status := domain.ShareStatusArchived
	if failed > 0 {
		status = domain.ShareStatusPartial
	}
	if err := uc.shares.SetShareStatus(ctx, event.ShareID, status); err != nil {
		return fmt.Errorf("usecase: ошибка при обновлении статуса отправки: %w", err)
	}

	uc.logger.Info("share archived",
		"share_id", event.ShareID,
		"status", status,
		"items", len(event.Items),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
