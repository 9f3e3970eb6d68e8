package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"flashsale-service/app/domain"

	"github.com/nats-io/nats.go/jetstream"
)

type orderEventBroker struct {
	js            jetstream.JetStream
	subjectPrefix string
}

func NewOrderEventPublisher(stream jetstream.JetStream, streamName string) domain.BrokerPublisher {
	return &orderEventBroker{
		js:            stream,
		subjectPrefix: strings.ToLower(streamName),
	}
}

func (b *orderEventBroker) publish(ctx context.Context, subject string, event domain.OrderEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "[orderEventBroker] publish", "json.Marshal", err)
		return err
	}

	if _, err = b.js.Publish(ctx, subject, msg); err != nil {
		slog.ErrorContext(ctx, "[orderEventBroker] publish", "Publish", err, "subject", subject)
		return err
	}

	slog.InfoContext(ctx, "[orderEventBroker] publish", "subject", subject, "orderID", event.OrderID)
	return nil
}

func (b *orderEventBroker) PublishOrderCreated(ctx context.Context, event domain.OrderEvent) error {
	return b.publish(ctx, fmt.Sprintf("%s.created", b.subjectPrefix), event)
}

func (b *orderEventBroker) PublishOrderCancelled(ctx context.Context, event domain.OrderEvent) error {
	return b.publish(ctx, fmt.Sprintf("%s.cancelled", b.subjectPrefix), event)
}
