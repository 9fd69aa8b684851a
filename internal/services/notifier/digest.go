package notifier

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/cealhq/club-calendar/internal/domain/club"
	"github.com/cealhq/club-calendar/internal/domain/digest"
	"github.com/cealhq/club-calendar/internal/domain/event"
	"github.com/cealhq/club-calendar/internal/domain/user"
	"github.com/cealhq/club-calendar/internal/localtime"
)

//go:embed email_digest.html
var digestHTML string

var digestTmpl = template.Must(template.New("email_digest").Parse(digestHTML))

// EventView is one event as it appears in the digest email, with start/end
// already formatted in the recipient's timezone.
type EventView struct {
	Title       string
	Description string
	StartsAt    string
	EndsAt      string
	Location    string
	CreatedBy   string
}

type digestView struct {
	Name        string
	ClubName    string
	Events      []EventView
	EventCount  int
	FrontendURL string
}

// DigestSender renders a per-user digest and hands it to the mail transport
// as one multipart email.
type DigestSender struct {
	Mail        digest.Mailer
	FrontendURL string
}

// Send builds and transmits one digest. It returns the plain-text body for
// auditing; on error nothing was accepted by the transport.
func (s *DigestSender) Send(ctx context.Context, u *user.User, c *club.Club, events []*event.Event) (string, error) {
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, EventView{
			Title:       e.Title,
			Description: e.Description,
			StartsAt:    localtime.Format(e.Start, u.Timezone),
			EndsAt:      localtime.Format(e.End, u.Timezone),
			Location:    e.Location,
			CreatedBy:   creatorName(e),
		})
	}

	var htmlBuf bytes.Buffer
	if err := digestTmpl.Execute(&htmlBuf, digestView{
		Name:        u.DisplayName(),
		ClubName:    c.Name,
		Events:      views,
		EventCount:  len(views),
		FrontendURL: s.FrontendURL,
	}); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}

	subject := fmt.Sprintf("New Events in %s", c.Name)
	text := fmt.Sprintf("You have %d new event(s) in %s. Visit %s to view details.",
		len(views), c.Name, s.FrontendURL)

	if err := s.Mail.Send(ctx, u.Email, subject, htmlBuf.String(), text); err != nil {
		return "", err
	}
	return text, nil
}

func creatorName(e *event.Event) string {
	u := user.User{
		FirstName: e.CreatorFirstName,
		LastName:  e.CreatorLastName,
		Username:  e.CreatorUsername,
	}
	return u.DisplayName()
}
