package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cealhq/club-calendar/internal/domain/club"
	"github.com/cealhq/club-calendar/internal/domain/digest"
	"github.com/cealhq/club-calendar/internal/domain/event"
	"github.com/cealhq/club-calendar/internal/domain/outbox"
	"github.com/cealhq/club-calendar/internal/domain/user"
	"github.com/cealhq/club-calendar/internal/localtime"
	"github.com/cealhq/club-calendar/internal/obs/retry"
)

type fakeDirectory struct {
	users     []*user.User
	listErr   error
	listCalls int
	setErr    error
}

func (f *fakeDirectory) ListNotifiable(context.Context) ([]*user.User, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

func (f *fakeDirectory) SetLastNotified(_ context.Context, id int64, at time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	for _, u := range f.users {
		if u.ID == id {
			t := at
			u.LastNotificationSentAt = &t
			return nil
		}
	}
	return errors.New("no such user")
}

type fakeBacklog struct {
	byClub map[int64][]*event.Event
	err    error
}

func (f *fakeBacklog) ListNewForClub(_ context.Context, clubID int64, since time.Time) ([]*event.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*event.Event
	for _, e := range f.byClub[clubID] {
		if e.CreatedAt.After(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

type fakeClubs struct {
	clubs map[int64]*club.Club
}

func (f *fakeClubs) GetByID(_ context.Context, id int64) (*club.Club, error) {
	c, ok := f.clubs[id]
	if !ok {
		return nil, errors.New("club not found")
	}
	return c, nil
}

type fakeDigests struct {
	records []*digest.Record
}

func (f *fakeDigests) Create(_ context.Context, d *digest.Record) error {
	f.records = append(f.records, d)
	return nil
}

type enqueue struct {
	key  string
	kind outbox.Kind
	data []byte
}

type fakeOutbox struct {
	enqueued []enqueue
}

func (f *fakeOutbox) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	f.enqueued = append(f.enqueued, enqueue{key: key, kind: kind, data: data})
	return nil
}

func (f *fakeOutbox) PickBatch(context.Context, int, time.Duration) ([]outbox.Message, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkSuccess(context.Context, []string) error { return nil }

type sendCall struct {
	userID int64
	club   string
	events []*event.Event
}

type fakeSender struct {
	calls   []sendCall
	failFor map[int64]error
}

func (f *fakeSender) Send(_ context.Context, u *user.User, c *club.Club, events []*event.Event) (string, error) {
	if err := f.failFor[u.ID]; err != nil {
		return "", err
	}
	f.calls = append(f.calls, sendCall{userID: u.ID, club: c.Name, events: events})
	return fmt.Sprintf("You have %d new event(s) in %s.", len(events), c.Name), nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixture struct {
	uc      *Usecase
	dir     *fakeDirectory
	backlog *fakeBacklog
	digests *fakeDigests
	outbox  *fakeOutbox
	sender  *fakeSender
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		dir:     &fakeDirectory{},
		backlog: &fakeBacklog{byClub: map[int64][]*event.Event{}},
		digests: &fakeDigests{},
		outbox:  &fakeOutbox{},
		sender:  &fakeSender{failFor: map[int64]error{}},
	}
	f.uc = &Usecase{
		Users:       f.dir,
		Events:      f.backlog,
		Clubs:       &fakeClubs{clubs: map[int64]*club.Club{1: {ID: 1, Name: "Robotics Club"}, 2: {ID: 2, Name: "Drama Club"}}},
		Digests:     f.digests,
		Outbox:      f.outbox,
		Out:         f.sender,
		Tx:          passTx{},
		Clock:       fixedClock{t: now},
		Log:         zap.NewNop(),
		QueryPolicy: retry.Policy{Attempts: 1},
	}
	return f
}

func timeOfDay(h, m int) *localtime.TimeOfDay {
	v := localtime.TimeOfDay{Hour: h, Minute: m}
	return &v
}

func clubID(id int64) *int64 { return &id }

func istUser(id int64) *user.User {
	return &user.User{
		ID:                  id,
		Email:               fmt.Sprintf("u%d@college.edu", id),
		Username:            fmt.Sprintf("u%d", id),
		ClubID:              clubID(1),
		NotificationEnabled: true,
		NotificationTime:    timeOfDay(10, 30),
		Timezone:            "Asia/Kolkata",
	}
}

// 05:00 UTC is 10:30 in Asia/Kolkata.
var istDigestInstant = time.Date(2025, time.April, 10, 5, 0, 0, 0, time.UTC)

func TestTick_DisabledOrUnconfiguredNeverSelected(t *testing.T) {
	f := newFixture(istDigestInstant)
	disabled := istUser(1)
	disabled.NotificationEnabled = false
	unconfigured := istUser(2)
	unconfigured.NotificationTime = nil
	f.dir.users = []*user.User{disabled, unconfigured}
	f.backlog.byClub[1] = []*event.Event{{ID: 1, ClubID: 1, CreatedAt: istDigestInstant.Add(-time.Hour), Start: istDigestInstant}}

	selected, sent, errs, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, selected)
	assert.Zero(t, sent)
	assert.Zero(t, errs)
	assert.Empty(t, f.sender.calls)
}

func TestTick_TimezoneSelection(t *testing.T) {
	// 14:00 UTC in January is 09:00 in New York (EST).
	now := time.Date(2025, time.January, 15, 14, 0, 30, 0, time.UTC)
	f := newFixture(now)
	u := istUser(1)
	u.Timezone = "America/New_York"
	u.NotificationTime = timeOfDay(9, 0)
	f.dir.users = []*user.User{u}
	f.backlog.byClub[1] = []*event.Event{{ID: 1, ClubID: 1, CreatedAt: now.Add(-time.Hour), Start: now.Add(24 * time.Hour)}}

	_, sent, _, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// one minute earlier the same user is not due
	f2 := newFixture(now.Add(-time.Minute))
	u2 := istUser(1)
	u2.Timezone = "America/New_York"
	u2.NotificationTime = timeOfDay(9, 0)
	f2.dir.users = []*user.User{u2}
	f2.backlog.byClub[1] = f.backlog.byClub[1]

	selected, sent, _, err := f2.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, selected)
	assert.Zero(t, sent)
}

func TestTick_EmptyBacklogSkipsWithoutSideEffects(t *testing.T) {
	f := newFixture(istDigestInstant)
	u := istUser(1)
	f.dir.users = []*user.User{u}

	selected, sent, errs, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, selected)
	assert.Zero(t, sent)
	assert.Zero(t, errs)
	assert.Nil(t, u.LastNotificationSentAt)
	assert.Empty(t, f.digests.records)
	assert.Empty(t, f.outbox.enqueued)
}

func TestTick_ClublessUserSkippedSilently(t *testing.T) {
	f := newFixture(istDigestInstant)
	u := istUser(1)
	u.ClubID = nil
	f.dir.users = []*user.User{u}

	selected, sent, errs, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, selected)
	assert.Zero(t, sent)
	assert.Zero(t, errs)
}

func TestTick_FirstDigestCoversHistory(t *testing.T) {
	f := newFixture(istDigestInstant)
	u := istUser(1)
	f.dir.users = []*user.User{u}
	old := &event.Event{ID: 7, ClubID: 1, CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Start: istDigestInstant.Add(48 * time.Hour)}
	f.backlog.byClub[1] = []*event.Event{old}

	_, sent, _, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Len(t, f.sender.calls, 1)
	assert.Equal(t, []*event.Event{old}, f.sender.calls[0].events)
}

func TestTick_BacklogOrderedByStart(t *testing.T) {
	f := newFixture(istDigestInstant)
	u := istUser(1)
	f.dir.users = []*user.User{u}

	t1 := istDigestInstant.Add(24 * time.Hour)
	t2 := istDigestInstant.Add(48 * time.Hour)
	t3 := istDigestInstant.Add(72 * time.Hour)
	// created in reverse of their start order
	f.backlog.byClub[1] = []*event.Event{
		{ID: 3, ClubID: 1, Start: t3, CreatedAt: istDigestInstant.Add(-3 * time.Hour)},
		{ID: 1, ClubID: 1, Start: t1, CreatedAt: istDigestInstant.Add(-time.Hour)},
		{ID: 2, ClubID: 1, Start: t2, CreatedAt: istDigestInstant.Add(-2 * time.Hour)},
	}

	_, sent, _, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	got := f.sender.calls[0].events
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
	assert.Equal(t, int64(3), got[2].ID)
}

func TestTick_HappyPathAdvancesWatermarkAndAudits(t *testing.T) {
	f := newFixture(istDigestInstant)
	u := istUser(1)
	f.dir.users = []*user.User{u}
	f.backlog.byClub[1] = []*event.Event{
		{ID: 1, ClubID: 1, CreatedAt: istDigestInstant.Add(-24 * time.Hour), Start: istDigestInstant.Add(24 * time.Hour)},
	}

	selected, sent, errs, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, selected)
	assert.Equal(t, 1, sent)
	assert.Zero(t, errs)

	require.NotNil(t, u.LastNotificationSentAt)
	assert.True(t, u.LastNotificationSentAt.Equal(istDigestInstant), "watermark is the tick snapshot")

	require.Len(t, f.digests.records, 1)
	rec := f.digests.records[0]
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, 1, rec.EventCount)
	assert.Contains(t, rec.Payload, "Robotics Club")

	require.Len(t, f.outbox.enqueued, 1)
	assert.Equal(t, fmt.Sprintf("digest:1:%d", istDigestInstant.Unix()), f.outbox.enqueued[0].key)
	assert.Equal(t, outbox.KindDigestSent, f.outbox.enqueued[0].kind)
}

func TestTick_SecondRunSendsNothingNew(t *testing.T) {
	f := newFixture(istDigestInstant)
	u := istUser(1)
	f.dir.users = []*user.User{u}
	f.backlog.byClub[1] = []*event.Event{
		{ID: 1, ClubID: 1, CreatedAt: istDigestInstant.Add(-24 * time.Hour), Start: istDigestInstant.Add(24 * time.Hour)},
	}

	_, sent, _, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	// same minute again: still due, but the advanced watermark empties the backlog
	_, sent, errs, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, errs)
	assert.Len(t, f.sender.calls, 1)

	// one minute later the user is no longer due
	f.uc.Clock = fixedClock{t: istDigestInstant.Add(time.Minute)}
	selected, sent, _, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, selected)
	assert.Zero(t, sent)
}

func TestTick_OneFailureDoesNotAbortTheBatch(t *testing.T) {
	f := newFixture(istDigestInstant)
	failing := istUser(1)
	healthy := istUser(2)
	f.dir.users = []*user.User{failing, healthy}
	f.backlog.byClub[1] = []*event.Event{
		{ID: 1, ClubID: 1, CreatedAt: istDigestInstant.Add(-time.Hour), Start: istDigestInstant.Add(24 * time.Hour)},
	}
	f.sender.failFor[failing.ID] = errors.New("smtp: connection refused")

	selected, sent, errs, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, selected)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, errs)

	assert.Nil(t, failing.LastNotificationSentAt)
	require.NotNil(t, healthy.LastNotificationSentAt)
	assert.True(t, healthy.LastNotificationSentAt.Equal(istDigestInstant))
}

func TestTick_WatermarkWriteFailureCountsAsError(t *testing.T) {
	f := newFixture(istDigestInstant)
	u := istUser(1)
	f.dir.users = []*user.User{u}
	f.backlog.byClub[1] = []*event.Event{
		{ID: 1, ClubID: 1, CreatedAt: istDigestInstant.Add(-time.Hour), Start: istDigestInstant.Add(24 * time.Hour)},
	}
	f.dir.setErr = errors.New("db down")

	_, sent, errs, err := f.uc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1, errs)
	assert.Nil(t, u.LastNotificationSentAt)
}

func TestTick_DirectoryFailureIsTickFatalAfterRetries(t *testing.T) {
	f := newFixture(istDigestInstant)
	f.dir.listErr = errors.New("connection reset")
	f.uc.QueryPolicy = retry.Policy{
		Attempts: 3,
		Backoff:  retry.ExpoJitter{Base: time.Millisecond, Max: 2 * time.Millisecond},
	}

	selected, sent, errs, err := f.uc.Tick(context.Background())
	require.Error(t, err)
	assert.Zero(t, selected)
	assert.Zero(t, sent)
	assert.Equal(t, 1, errs)
	assert.Equal(t, 3, f.dir.listCalls)
}
