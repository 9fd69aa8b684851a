package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/cealhq/club-calendar/internal/domain/outbox"
	"github.com/cealhq/club-calendar/internal/obs/retry"
	kafkax "github.com/cealhq/club-calendar/internal/repository/kafka"
)

// DigestSentPayload is what the dispatcher enqueues after a confirmed send.
type DigestSentPayload struct {
	UserID     int64     `json:"user_id"`
	ClubID     int64     `json:"club_id"`
	EventCount int       `json:"event_count"`
	SentAt     time.Time `json:"sent_at"`
}

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers (publish, http, etc.)",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

func MakeGlobalOutboxHandler(pub *kafkax.DigestEventsKafka, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindDigestSent:
			base := func(ctx context.Context, data []byte) error {
				var p DigestSentPayload
				if err := json.Unmarshal(data, &p); err != nil {
					return fmt.Errorf("unmarshal digest-sent payload: %w", err)
				}
				return pub.PublishDigestSent(ctx, kafkax.DigestSent{
					UserID:     p.UserID,
					ClubID:     p.ClubID,
					EventCount: p.EventCount,
					SentAt:     p.SentAt,
				})
			}
			return instrument("digest_sent", base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
