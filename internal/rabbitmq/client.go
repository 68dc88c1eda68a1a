package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoSearch/internal/config"
	"github.com/GoArmGo/PhotoSearch/internal/messaging/payloads"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Client представляет собой клиент RabbitMQ для событий об отправке фото
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  *slog.Logger
}

// NewClient подключается к RabbitMQ, открывает канал и объявляет очередь
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	client := &Client{logger: logger}

	conn, err := amqp.Dial(cfg.RabbitMQ.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к RabbitMQ: %w", err)
	}
	client.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("не удалось открыть канал: %w", err)
	}
	client.channel = ch

	// идемпотентно: существующая очередь не пересоздаётся
	q, err := ch.QueueDeclare(
		cfg.RabbitMQ.RabbitMQQueueName, // name
		true,                           // durable
		false,                          // delete when unused
		false,                          // exclusive
		false,                          // no-wait
		nil,                            // arguments
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось объявить очередь: %w", err)
	}
	client.queue = q

	logger.Info("connected to RabbitMQ", "queue", q.Name, "messages", q.Messages)
	return client, nil
}

// Close закрывает канал и соединение RabbitMQ
func (c *Client) Close() {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("error closing RabbitMQ channel", "error", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("error closing RabbitMQ connection", "error", err)
			return
		}
		c.logger.Info("RabbitMQ connection closed")
	}
}

// PublishShareEvent публикует событие об отправке в очередь.
// Реализует ports.ShareEventPublisher.
func (c *Client) PublishShareEvent(ctx context.Context, event payloads.ShareEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать событие: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		publishCtx,
		"",           // exchange
		c.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.SharedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("не удалось опубликовать сообщение: %w", err)
	}
	c.logger.Info("share event published", "queue", c.queue.Name, "share_id", event.ShareID, "items", len(event.Items))
	return nil
}

// StartConsumingShareEvents регистрирует потребителя и обрабатывает сообщения
// в отдельной горутине до отмены ctx. Реализует ports.ShareEventConsumer.
func (c *Client) StartConsumingShareEvents(ctx context.Context, handler func(context.Context, payloads.ShareEvent) error) error {
	msgs, err := c.channel.Consume(
		c.queue.Name, // queue
		"",           // consumer
		false,        // auto-ack, подтверждаем вручную
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать потребителя: %w", err)
	}

	c.logger.Info("consumer registered, waiting for messages", "queue", c.queue.Name)

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("RabbitMQ delivery channel closed, stopping consumer")
					return
				}
				dispatch(ctx, c.logger, msg, handler)
			case <-ctx.Done():
				c.logger.Info("context cancelled, stopping RabbitMQ consumer")
				return
			}
		}
	}()

	return nil
}

// dispatch разбирает одно сообщение и подтверждает его.
// Битое сообщение отклоняется без возврата в очередь, ошибка обработчика возвращает его в очередь.
func dispatch(ctx context.Context, logger *slog.Logger, msg amqp.Delivery, handler func(context.Context, payloads.ShareEvent) error) {
	var event payloads.ShareEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.Error("malformed share event, dropping", "error", err, "body", string(msg.Body))
		if err := msg.Nack(false, false); err != nil {
			logger.Error("nack failed", "error", err)
		}
		return
	}

	start := time.Now()
	if err := handler(ctx, event); err != nil {
		logger.Error("share event processing failed, requeueing", "share_id", event.ShareID, "error", err)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("nack failed", "error", err)
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("ack failed", "share_id", event.ShareID, "error", err)
		return
	}
	logger.Info("share event processed", "share_id", event.ShareID, "duration_ms", time.Since(start).Milliseconds())
}
