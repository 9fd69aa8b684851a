package user

import (
	"strings"
	"time"

	"github.com/cealhq/club-calendar/internal/localtime"
)

const DefaultTimezone = "Asia/Kolkata"

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	ClubID    *int64 `json:"club_id"`
	SubClubID *int64 `json:"sub_club_id"`

	NotificationEnabled bool                 `json:"notification_enabled"`
	NotificationTime    *localtime.TimeOfDay `json:"notification_time"`
	Timezone            string               `json:"timezone"`
	// LastNotificationSentAt is the digest watermark: events created after it
	// have not been mailed to this user yet. Nil means never notified.
	LastNotificationSentAt *time.Time `json:"last_notification_sent_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is the given/family name when present, otherwise the login handle.
func (u *User) DisplayName() string {
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	return u.Username
}

// DueAt reports whether the user's configured notification minute matches
// now's wall clock in the user's own timezone. Users with notifications
// disabled or no configured time are never due.
func (u *User) DueAt(now time.Time) bool {
	if !u.NotificationEnabled || u.NotificationTime == nil {
		return false
	}
	local := localtime.ToLocal(now, u.Timezone)
	return localtime.Of(local).Matches(*u.NotificationTime)
}
