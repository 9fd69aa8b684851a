package digest

import (
	"context"
	"time"
)

// Record is the audit row written after a digest email is accepted by the
// mail transport.
type Record struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ClubID     int64     `json:"club_id"`
	EventCount int       `json:"event_count"`
	SentAt     time.Time `json:"sent_at"`
	Payload    string    `json:"payload"`
}

// Mailer is the outbound mail transport. Send returns only after the
// transport accepted (or refused) the message; acceptance is not an
// end-to-end delivery guarantee.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type Clock interface {
	Now() time.Time
}
