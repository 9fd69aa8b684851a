package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cealhq/club-calendar/internal/domain/club"
	"github.com/cealhq/club-calendar/internal/domain/digest"
	"github.com/cealhq/club-calendar/internal/domain/event"
	"github.com/cealhq/club-calendar/internal/domain/outbox"
	"github.com/cealhq/club-calendar/internal/domain/user"
	"github.com/cealhq/club-calendar/internal/obs/retry"
)

// epoch is the watermark for users that were never notified: their first
// digest covers the club's entire event history.
var epoch = time.Unix(0, 0).UTC()

type UserDirectory interface {
	ListNotifiable(ctx context.Context) ([]*user.User, error)
	SetLastNotified(ctx context.Context, id int64, at time.Time) error
}

type EventBacklog interface {
	ListNewForClub(ctx context.Context, clubID int64, since time.Time) ([]*event.Event, error)
}

type ClubReader interface {
	GetByID(ctx context.Context, id int64) (*club.Club, error)
}

type DigestStore interface {
	Create(ctx context.Context, d *digest.Record) error
}

// Sender renders and transmits one digest email. It returns the rendered
// plain-text payload for auditing; a non-nil error means nothing usable was
// sent and the caller must not advance the watermark.
type Sender interface {
	Send(ctx context.Context, u *user.User, c *club.Club, events []*event.Event) (string, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Usecase dispatches digest emails for every user whose local wall clock
// has reached their configured notification minute.
type Usecase struct {
	Users   UserDirectory
	Events  EventBacklog
	Clubs   ClubReader
	Digests DigestStore
	Outbox  outbox.Repository
	Out     Sender
	Tx      Transactor
	Clock   digest.Clock
	Log     *zap.Logger

	// QueryPolicy guards the initial directory read; exhaustion is tick-fatal.
	QueryPolicy retry.Policy
}

// Tick runs one dispatch pass. A single "now" snapshot taken at entry is used
// for every due-minute comparison and for every watermark written during the
// pass, so a slow batch cannot drift users across the minute boundary.
// Per-user failures are logged and swallowed; only a failed directory read
// aborts the tick.
func (u *Usecase) Tick(ctx context.Context) (selected, sent, errs int, err error) {
	now := u.Clock.Now().UTC()

	tr := otel.Tracer("notifier.uc")
	ctxTick, span := tr.Start(ctx, "notifier.tick",
		trace.WithAttributes(attribute.String("tick.now", now.Format(time.RFC3339))),
	)
	defer span.End()

	var candidates []*user.User
	err = retry.Do(ctxTick, func() error {
		var qerr error
		candidates, qerr = u.Users.ListNotifiable(ctxTick)
		return qerr
	}, u.QueryPolicy)
	if err != nil {
		span.RecordError(err)
		return 0, 0, 1, fmt.Errorf("list notifiable users: %w", err)
	}
	span.SetAttributes(attribute.Int("tick.candidates", len(candidates)))

	for _, cand := range candidates {
		if !cand.DueAt(now) {
			continue
		}
		selected++

		ctxUser, sp := tr.Start(ctxTick, "notifier.dispatch",
			trace.WithAttributes(
				attribute.Int64("user.id", cand.ID),
				attribute.String("user.timezone", cand.Timezone),
			),
		)
		ok, derr := u.dispatchOne(ctxUser, now, cand)
		if derr != nil {
			errs++
			sp.RecordError(derr)
			u.Log.Warn("digest dispatch failed",
				zap.Int64("user_id", cand.ID),
				zap.String("email", cand.Email),
				zap.Error(derr),
			)
		} else if ok {
			sent++
		}
		sp.End()
	}

	span.SetAttributes(
		attribute.Int("tick.selected", selected),
		attribute.Int("tick.sent", sent),
		attribute.Int("tick.errors", errs),
	)
	return selected, sent, errs, nil
}

// dispatchOne handles one due user. It returns (false, nil) for the benign
// skips (no club, empty backlog) and (true, nil) only after the transport
// accepted the email and the watermark transaction committed.
func (u *Usecase) dispatchOne(ctx context.Context, now time.Time, cand *user.User) (bool, error) {
	if cand.ClubID == nil {
		return false, nil
	}

	since := epoch
	if cand.LastNotificationSentAt != nil {
		since = *cand.LastNotificationSentAt
	}

	backlog, err := u.Events.ListNewForClub(ctx, *cand.ClubID, since)
	if err != nil {
		return false, fmt.Errorf("fetch backlog: %w", err)
	}
	if len(backlog) == 0 {
		return false, nil
	}

	c, err := u.Clubs.GetByID(ctx, *cand.ClubID)
	if err != nil {
		return false, fmt.Errorf("get club: %w", err)
	}

	payload, err := u.Out.Send(ctx, cand, c, backlog)
	if err != nil {
		return false, fmt.Errorf("send digest: %w", err)
	}

	// The email is out; advance the watermark to the tick snapshot and record
	// the send atomically. A crash before commit re-sends tomorrow rather than
	// losing events.
	err = u.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.Users.SetLastNotified(ctx, cand.ID, now); err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
		if err := u.Digests.Create(ctx, &digest.Record{
			UserID:     cand.ID,
			ClubID:     c.ID,
			EventCount: len(backlog),
			SentAt:     now,
			Payload:    payload,
		}); err != nil {
			return fmt.Errorf("record digest: %w", err)
		}
		if u.Outbox != nil {
			data, merr := json.Marshal(digestSentPayload{
				UserID:     cand.ID,
				ClubID:     c.ID,
				EventCount: len(backlog),
				SentAt:     now,
			})
			if merr != nil {
				return fmt.Errorf("marshal digest-sent: %w", merr)
			}
			key := fmt.Sprintf("digest:%d:%d", cand.ID, now.Unix())
			if err := u.Outbox.Enqueue(ctx, key, outbox.KindDigestSent, data); err != nil {
				return fmt.Errorf("enqueue digest-sent: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// digestSentPayload must stay wire-compatible with outbox.DigestSentPayload.
type digestSentPayload struct {
	UserID     int64     `json:"user_id"`
	ClubID     int64     `json:"club_id"`
	EventCount int       `json:"event_count"`
	SentAt     time.Time `json:"sent_at"`
}
