package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ShareStorage — журнал отправок в PostgreSQL
type ShareStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewShareStorage(db *sqlx.DB, logger *slog.Logger) *ShareStorage {
	return &ShareStorage{db: db, logger: logger}
}

// SaveShare сохраняет отправку и её элементы в одной транзакции
func (s *ShareStorage) SaveShare(ctx context.Context, share *domain.Share) error {
	start := time.Now()

	if share.ID == uuid.Nil {
		share.ID = uuid.New()
	}
	now := time.Now().UTC()
	if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}
	share.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
	INSERT INTO shares (id, status, created_at, updated_at)
	VALUES (:id, :status, :created_at, :updated_at)
	`, share)
	if err != nil {
		s.logger.Error("failed to save share", "share_id", share.ID, "error", err)
		return fmt.Errorf("ошибка при сохранении отправки: %w", err)
	}

	for i := range share.Items {
		share.Items[i].ShareID = share.ID
	}
	if len(share.Items) > 0 {
		_, err = tx.NamedExecContext(ctx, `
		INSERT INTO share_items (share_id, position, photo_id, farm, server, secret, thumbnail_key, large_key)
		VALUES (:share_id, :position, :photo_id, :farm, :server, :secret, :thumbnail_key, :large_key)
		`, share.Items)
		if err != nil {
			s.logger.Error("failed to save share items", "share_id", share.ID, "error", err)
			return fmt.Errorf("ошибка при сохранении элементов отправки: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}

	s.logger.Info("share saved",
		"share_id", share.ID,
		"items", len(share.Items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// GetShare возвращает отправку с элементами в порядке выбора
func (s *ShareStorage) GetShare(ctx context.Context, id uuid.UUID) (*domain.Share, error) {
	start := time.Now()

	var share domain.Share
	err := s.db.GetContext(ctx, &share, `SELECT id, status, created_at, updated_at FROM shares WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("share not found", "share_id", id)
			return nil, fmt.Errorf("%w: %s", domain.ErrShareNotFound, id)
		}
		s.logger.Error("failed to get share", "share_id", id, "error", err)
		return nil, fmt.Errorf("ошибка при получении отправки: %w", err)
	}

	err = s.db.SelectContext(ctx, &share.Items, `
	SELECT share_id, position, photo_id, farm, server, secret, thumbnail_key, large_key
	FROM share_items
	WHERE share_id = $1
	ORDER BY position
	`, id)
	if err != nil {
		s.logger.Error("failed to get share items", "share_id", id, "error", err)
		return nil, fmt.Errorf("ошибка при получении элементов отправки: %w", err)
	}

	s.logger.Debug("share retrieved",
		"share_id", id,
		"items", len(share.Items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &share, nil
}

// SetItemLargeKey запоминает ключ объекта с большой картинкой
func (s *ShareStorage) SetItemLargeKey(ctx context.Context, shareID uuid.UUID, photoID, largeKey string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE share_items SET large_key = $1 WHERE share_id = $2 AND photo_id = $3`,
		largeKey, shareID, photoID,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении элемента отправки: %w", err)
	}
	return requireAffected(res, shareID)
}

func (s *ShareStorage) SetShareStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shares SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении статуса отправки: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}
	s.logger.Info("share status updated", "share_id", id, "status", status)
	return nil
}

func requireAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("не удалось получить число изменённых строк: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrShareNotFound, id)
	}
	return nil
}
