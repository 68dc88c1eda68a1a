package ports

import (
	"context"

	"github.com/GoArmGo/PhotoSearch/internal/messaging/payloads"
)

// ShareEventPublisher публикует события об отправке фото.
// Используется сценарием отправки после записи в журнал.
type ShareEventPublisher interface {
	PublishShareEvent(ctx context.Context, event payloads.ShareEvent) error
}

// ShareEventConsumer потребляет события об отправке фото, используется воркером
type ShareEventConsumer interface {
	// StartConsumingShareEvents начинает прослушивание очереди,
	// handler вызывается для каждого полученного события
	StartConsumingShareEvents(ctx context.Context, handler func(context.Context, payloads.ShareEvent) error) error
}
