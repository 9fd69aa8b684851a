package kafka

import (
	"context"
	"time"
)

// DigestSent is the wire payload announcing one successful digest email.
type DigestSent struct {
	UserID     int64     `json:"user_id"`
	ClubID     int64     `json:"club_id"`
	EventCount int       `json:"event_count"`
	SentAt     time.Time `json:"sent_at"`
}

type DigestEventsKafka struct {
	p *Producer
}

func NewDigestEventsKafka(p *Producer) *DigestEventsKafka { return &DigestEventsKafka{p: p} }

func (e *DigestEventsKafka) PublishDigestSent(ctx context.Context, ev DigestSent) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.UserID), ev)
}
