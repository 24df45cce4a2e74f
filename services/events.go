package services

import (
	"context"
	"time"

	"student-portal/logger"
	"student-portal/models"
	"student-portal/services/kafka"
	"student-portal/services/payment"
)

const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentVerified  = "payment.verified"
	EventSessionFinished  = "payment.session.finished"
	EventSessionExpired   = "session.expired"
)

// PublishFunc writes one event to a topic.
type PublishFunc func(ctx context.Context, topic, key string, value interface{}) error

// EventPublisher turns payment activity into kafka events. Publishing runs on
// the pool and never blocks or fails the caller.
type EventPublisher struct {
	topic   string
	pool    IPool
	publish PublishFunc
	now     func() time.Time
}

func NewEventPublisher(topic string, pool IPool) *EventPublisher {
	if pool == nil {
		pool = inline{}
	}
	return &EventPublisher{topic: topic, pool: pool, publish: kafka.Publish, now: time.Now}
}

func (p *EventPublisher) emit(ctx context.Context, key string, evt map[string]interface{}) {
	evt["ts"] = p.now().UTC().Format(time.RFC3339)
	ctx = context.WithoutCancel(ctx)
	p.pool.Submit(func() {
		if err := p.publish(ctx, p.topic, key, evt); err != nil {
			logger.Warn("publishing %v for %s failed: %v", evt["event"], key, err)
		}
	})
}

func (p *EventPublisher) PaymentInitiated(ctx context.Context, a models.PaymentAttempt) {
	p.emit(ctx, a.ApplicationID, map[string]interface{}{
		"event":          EventPaymentInitiated,
		"attempt_id":     a.ID,
		"application_id": a.ApplicationID,
		"type":           a.Type,
		"amount":         a.Amount.String(),
		"gateway_id":     a.GatewayID,
		"psid":           a.PSID,
		"status":         models.StatusPending,
	})
}

func (p *EventPublisher) PaymentVerified(ctx context.Context, res models.VerificationResult) {
	p.emit(ctx, res.ApplicationID, map[string]interface{}{
		"event":          EventPaymentVerified,
		"application_id": res.ApplicationID,
		"status":         res.Status,
		"tran_id":        res.TransactionID,
		"bank_tran_id":   res.BankTransactionID,
	})
}

func (p *EventPublisher) SessionFinished(snap payment.SessionSnapshot) {
	p.emit(context.Background(), snap.ApplicationID, map[string]interface{}{
		"event":          EventSessionFinished,
		"session_id":     snap.ID,
		"application_id": snap.ApplicationID,
		"state":          snap.State,
		"polls":          snap.Polls,
	})
}

func (p *EventPublisher) SessionExpired(ctx context.Context, reason string) {
	p.emit(ctx, "session", map[string]interface{}{
		"event":  EventSessionExpired,
		"reason": reason,
	})
}
