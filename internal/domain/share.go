package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ShareStatusShared   = "shared"
	ShareStatusArchived = "archived"
	ShareStatusPartial  = "partial"
)

// SharedImage — миниатюра выбранного фото, переданная на отправку
type SharedImage struct {
	Photo PhotoRef
	Image *Image
}

// Share представляет одну отправку выбранных фото,
// соответствует таблице shares в бд
type Share struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Status    string      `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
	Items     []ShareItem `json:"items" db:"-"`
}

// ShareItem соответствует таблице share_items в бд
type ShareItem struct {
	ShareID      uuid.UUID `json:"-" db:"share_id"`
	Position     int       `json:"position" db:"position"`
	PhotoID      string    `json:"photo_id" db:"photo_id"`
	Farm         int       `json:"farm" db:"farm"`
	Server       string    `json:"server" db:"server"`
	Secret       string    `json:"secret" db:"secret"`
	ThumbnailKey string    `json:"thumbnail_key" db:"thumbnail_key"`
	LargeKey     string    `json:"large_key,omitempty" db:"large_key"`
}
