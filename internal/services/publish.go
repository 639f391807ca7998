package services

import (
	"context"
	"fmt"
)

// EventPublisher публикует события во внешний брокер.
// Реализация: mq.Publisher.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, payload any) error
}

// Publish — сервис публикации событий из плана.
type Publish struct {
	publisher EventPublisher
}

// NewPublish создаёт сервис; publisher может быть nil, тогда вызовы падают с ErrNoPublisher.
func NewPublish(publisher EventPublisher) *Publish {
	return &Publish{publisher: publisher}
}

// Publish: publish(routingKey, payload). Возвращает payload.
func (p *Publish) Publish(ctx context.Context, args ...any) (any, error) {
	if p.publisher == nil {
		return nil, ErrNoPublisher
	}

	key, err := stringArg("publish.publish", args, 0)
	if err != nil {
		return nil, err
	}

	payload := arg(args, 1)
	if err := p.publisher.PublishEvent(ctx, key, payload); err != nil {
		return nil, fmt.Errorf("publish %s: %w", key, err)
	}
	return payload, nil
}
