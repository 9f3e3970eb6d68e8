package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flashsale-service/app/domain"
	"flashsale-service/config"

	"github.com/nats-io/nats.go/jetstream"
)

// IntakeConsumer pulls reservation-request messages from the upstream
// admission channel and applies them through the intake usecase.
// Permanent failures terminate the message; transient failures Nak it
// with an increasing delay, bounded by the consumer's MaxDeliver.
type IntakeConsumer struct {
	js     jetstream.JetStream
	intake domain.IntakeUsecase
	cfg    *config.Config
	cc     jetstream.ConsumeContext
}

func NewIntakeConsumer(stream jetstream.JetStream, intake domain.IntakeUsecase, cfg *config.Config) *IntakeConsumer {
	return &IntakeConsumer{
		js:     stream,
		intake: intake,
		cfg:    cfg,
	}
}

func (c *IntakeConsumer) Start(ctx context.Context) error {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, strings.ToUpper(c.cfg.Nats.StreamName), jetstream.ConsumerConfig{
		Durable:       c.cfg.Nats.Consumer,
		FilterSubject: fmt.Sprintf("%s.reservation_requested", strings.ToLower(c.cfg.Nats.StreamName)),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.cfg.Nats.MaxDeliver,
	})
	if err != nil {
		slog.ErrorContext(ctx, "[IntakeConsumer] Start", "createConsumer", err)
		return err
	}

	cc, err := consumer.Consume(c.handle)
	if err != nil {
		slog.ErrorContext(ctx, "[IntakeConsumer] Start", "consume", err)
		return err
	}
	c.cc = cc

	slog.InfoContext(ctx, "[IntakeConsumer] Start", "consumer", c.cfg.Nats.Consumer)
	return nil
}

func (c *IntakeConsumer) handle(msg jetstream.Msg) {
	ctx := context.Background()

	var m domain.ReservationMessage
	if err := json.Unmarshal(msg.Data(), &m); err != nil {
		slog.ErrorContext(ctx, "[IntakeConsumer] handle", "unmarshal", err)
		if err := msg.Term(); err != nil {
			slog.ErrorContext(ctx, "[IntakeConsumer] handle", "term", err)
		}
		return
	}

	result, err := c.intake.Process(ctx, m)
	if err == nil {
		if result.Duplicate {
			slog.InfoContext(ctx, "[IntakeConsumer] handle", "duplicateAcked", m.ExternalOrderID,
				"orderID", result.OrderID)
		}
		if err := msg.Ack(); err != nil {
			slog.ErrorContext(ctx, "[IntakeConsumer] handle", "ack", err)
		}
		return
	}

	if isPermanent(err) {
		slog.WarnContext(ctx, "[IntakeConsumer] handle", "permanentReject", err,
			"externalOrderID", m.ExternalOrderID)
		if err := msg.Term(); err != nil {
			slog.ErrorContext(ctx, "[IntakeConsumer] handle", "term", err)
		}
		return
	}

	delay := c.retryDelay(msg)
	slog.WarnContext(ctx, "[IntakeConsumer] handle", "transientFailure", err,
		"externalOrderID", m.ExternalOrderID, "redeliverIn", delay)
	if err := msg.NakWithDelay(delay); err != nil {
		slog.ErrorContext(ctx, "[IntakeConsumer] handle", "nak", err)
	}
}

// isPermanent classifies errors that redelivery cannot repair.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrActivityNotFound) ||
		errors.Is(err, domain.ErrActivityNotActive) ||
		errors.Is(err, domain.ErrInsufficientStock)
}

func (c *IntakeConsumer) retryDelay(msg jetstream.Msg) time.Duration {
	base := time.Duration(c.cfg.Nats.RetryDelay) * time.Second

	meta, err := msg.Metadata()
	if err != nil {
		return base
	}
	return time.Duration(meta.NumDelivered) * base
}

func (c *IntakeConsumer) Stop() {
	if c.cc != nil {
		c.cc.Stop()
	}
}
