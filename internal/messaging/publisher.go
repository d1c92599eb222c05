// Package messaging publishes story turn events to RabbitMQ so external
// consumers (analytics, notification fan-out) can react to finished turns
// without being in the request path.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ChapterEvent describes one successfully appended chapter.
type ChapterEvent struct {
	StoryID         uuid.UUID `json:"story_id"`
	OwnerID         uuid.UUID `json:"owner_id"`
	SequenceNumber  int       `json:"sequence_number"`
	Genre           string    `json:"genre"`
	DominantEmotion string    `json:"dominant_emotion,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ChapterEventPublisher publishes chapter events. Publishing is best-effort:
// a failed publish never fails the user's turn.
type ChapterEventPublisher interface {
	PublishChapterEvent(ctx context.Context, event ChapterEvent) error
}

// Compile-time check to ensure implementation satisfies the interface.
var _ ChapterEventPublisher = (*rabbitMQChapterEventPublisher)(nil)

type rabbitMQChapterEventPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQChapterEventPublisher opens a channel on the given connection
// and declares the event queue. Parameters must match any consumer declaring
// the same queue.
func NewRabbitMQChapterEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (ChapterEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("chapter event publisher: failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("chapter event publisher: failed to declare queue %s: %w", queueName, err)
	}

	return &rabbitMQChapterEventPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("ChapterEventPublisher"),
	}, nil
}

// PublishChapterEvent implements ChapterEventPublisher.
func (p *rabbitMQChapterEventPublisher) PublishChapterEvent(ctx context.Context, event ChapterEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal chapter event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish chapter event",
			zap.Error(err),
			zap.Stringer("storyID", event.StoryID),
			zap.Int("sequenceNumber", event.SequenceNumber),
		)
		return fmt.Errorf("failed to publish chapter event: %w", err)
	}

	p.logger.Debug("Chapter event published",
		zap.Stringer("storyID", event.StoryID),
		zap.Int("sequenceNumber", event.SequenceNumber),
	)
	return nil
}

// NoopChapterEventPublisher is used when RabbitMQ is not configured.
type NoopChapterEventPublisher struct{}

// PublishChapterEvent implements ChapterEventPublisher as a no-op.
func (NoopChapterEventPublisher) PublishChapterEvent(context.Context, ChapterEvent) error {
	return nil
}
