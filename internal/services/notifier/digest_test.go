package notifier

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cealhq/club-calendar/internal/domain/club"
	"github.com/cealhq/club-calendar/internal/domain/event"
	"github.com/cealhq/club-calendar/internal/domain/user"
)

type capturingMailer struct {
	to, subject, htmlBody, textBody string
	err                             error
}

func (m *capturingMailer) Send(_ context.Context, to, subject, htmlBody, textBody string) error {
	if m.err != nil {
		return m.err
	}
	m.to, m.subject, m.htmlBody, m.textBody = to, subject, htmlBody, textBody
	return nil
}

func sampleEvents() []*event.Event {
	return []*event.Event{
		{
			Title:            "Line Follower Workshop",
			Description:      "Bring your own bot.",
			Start:            time.Date(2025, time.April, 11, 12, 30, 0, 0, time.UTC),
			End:              time.Date(2025, time.April, 11, 14, 30, 0, 0, time.UTC),
			Location:         "CS Lab 2",
			CreatorFirstName: "Asha",
			CreatorLastName:  "Menon",
			CreatorUsername:  "asha.m",
		},
		{
			Title:           "Team Standup",
			Start:           time.Date(2025, time.April, 12, 4, 30, 0, 0, time.UTC),
			End:             time.Date(2025, time.April, 12, 5, 0, 0, 0, time.UTC),
			Location:        "Main Auditorium",
			CreatorUsername: "rahul42",
		},
	}
}

func TestDigestSenderRendering(t *testing.T) {
	m := &capturingMailer{}
	s := &DigestSender{Mail: m, FrontendURL: "https://calendar.college.edu"}

	u := &user.User{Email: "asha@college.edu", Username: "asha.m", FirstName: "Asha", Timezone: "Asia/Kolkata"}
	c := &club.Club{ID: 1, Name: "Robotics Club"}

	payload, err := s.Send(context.Background(), u, c, sampleEvents())
	require.NoError(t, err)

	assert.Equal(t, "asha@college.edu", m.to)
	assert.Equal(t, "New Events in Robotics Club", m.subject)
	assert.Equal(t, "You have 2 new event(s) in Robotics Club. Visit https://calendar.college.edu to view details.", m.textBody)
	assert.Equal(t, m.textBody, payload)

	// times rendered in the recipient's zone (UTC+05:30)
	assert.Contains(t, m.htmlBody, "April 11, 2025 at 06:00 PM")
	assert.Contains(t, m.htmlBody, "April 11, 2025 at 08:00 PM")
	assert.Contains(t, m.htmlBody, "April 12, 2025 at 10:00 AM")

	// creator name falls back to the login handle when the name is empty
	assert.Contains(t, m.htmlBody, "Asha Menon")
	assert.Contains(t, m.htmlBody, "rahul42")

	assert.Contains(t, m.htmlBody, "Line Follower Workshop")
	assert.Contains(t, m.htmlBody, "CS Lab 2")
	assert.Contains(t, m.htmlBody, "https://calendar.college.edu")

	// first event renders before the second
	assert.Less(t,
		strings.Index(m.htmlBody, "Line Follower Workshop"),
		strings.Index(m.htmlBody, "Team Standup"),
	)
}

func TestDigestSenderTransportFailure(t *testing.T) {
	m := &capturingMailer{err: errors.New("rcpt refused")}
	s := &DigestSender{Mail: m, FrontendURL: "https://calendar.college.edu"}

	u := &user.User{Email: "asha@college.edu", Username: "asha.m", Timezone: "Asia/Kolkata"}
	c := &club.Club{ID: 1, Name: "Robotics Club"}

	payload, err := s.Send(context.Background(), u, c, sampleEvents())
	require.Error(t, err)
	assert.Empty(t, payload)
}

func TestBuildMessageMultipart(t *testing.T) {
	raw, err := buildMessage("noreply@clubcalendar.dev", "asha@college.edu",
		"New Events in Robotics Club", "<p>hello</p>", "hello")
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	assert.Equal(t, "noreply@clubcalendar.dev", msg.Header.Get("From"))
	assert.Equal(t, "asha@college.edu", msg.Header.Get("To"))
	assert.Equal(t, "New Events in Robotics Club", msg.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])

	p1, err := mr.NextPart()
	require.NoError(t, err)
	assert.Contains(t, p1.Header.Get("Content-Type"), "text/plain")
	b1, _ := io.ReadAll(p1)
	assert.Contains(t, string(b1), "hello")

	p2, err := mr.NextPart()
	require.NoError(t, err)
	assert.Contains(t, p2.Header.Get("Content-Type"), "text/html")
	b2, _ := io.ReadAll(p2)
	assert.Contains(t, string(b2), "<p>hello</p>")
}
