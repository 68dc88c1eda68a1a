package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ShareEvent сообщает воркеру о новой отправке через RabbitMQ
type ShareEvent struct {
	ShareID  uuid.UUID   `json:"share_id"`
	Items    []ShareItem `json:"items"`
	SharedAt time.Time   `json:"shared_at"`
}

// ShareItem — фото из отправки, достаточно данных для построения URL картинки
type ShareItem struct {
	PhotoID string `json:"photo_id"`
	Farm    int    `json:"farm"`
	Server  string `json:"server"`
	Secret  string `json:"secret"`
}
