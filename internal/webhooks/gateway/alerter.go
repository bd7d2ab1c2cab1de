package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Alerter raises an operator alert for a callback that could not be applied.
type Alerter struct {
	outbox  outbox.Emitter
	tx      txRunner
	metrics *metrics.DomainMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewAlerter(emitter outbox.Emitter, tx txRunner, m *metrics.DomainMetrics, logg *logger.Logger) (*Alerter, error) {
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Alerter{
		outbox:  emitter,
		tx:      tx,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WebhookFailed counts the failure and queues a webhook_processing_failed
// event on the alerts topic. It never fails the caller.
func (a *Alerter) WebhookFailed(ctx context.Context, kind, reference string, cause error) {
	a.metrics.IncWebhookFailure(kind)

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	ctx = a.logg.WithFields(ctx, map[string]any{"webhook_kind": kind, "reference": reference})
	a.logg.Error(ctx, "gateway webhook failed", cause)

	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWebhookFailed,
			AggregateType: enums.AggregateWebhook,
			AggregateID:   alertID(kind, reference),
			Data: payloads.WebhookFailedEvent{
				Kind:      kind,
				Reference: reference,
				Error:     message,
				FailedAt:  a.now(),
			},
		})
	})
	if err != nil {
		a.logg.Error(ctx, "queue webhook failure alert", err)
	}
}

// alertID is stable per callback so repeated failures group under one aggregate.
func alertID(kind, reference string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("packdrop:webhook:"+kind+":"+reference))
}
