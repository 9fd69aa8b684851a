package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cealhq/club-calendar/internal/localtime"
)

func TestDisplayName(t *testing.T) {
	u := User{FirstName: "Asha", LastName: "Menon", Username: "asha.m"}
	assert.Equal(t, "Asha Menon", u.DisplayName())

	u = User{FirstName: "Asha", Username: "asha.m"}
	assert.Equal(t, "Asha", u.DisplayName())

	u = User{Username: "asha.m"}
	assert.Equal(t, "asha.m", u.DisplayName())
}

func TestDueAt(t *testing.T) {
	at := func(h, m int) *localtime.TimeOfDay {
		v := localtime.TimeOfDay{Hour: h, Minute: m}
		return &v
	}
	// 03:30 UTC == 09:00 IST
	now := time.Date(2025, time.January, 15, 3, 30, 0, 0, time.UTC)

	u := User{NotificationEnabled: true, NotificationTime: at(9, 0), Timezone: "Asia/Kolkata"}
	assert.True(t, u.DueAt(now))
	assert.True(t, u.DueAt(now.Add(59*time.Second)), "seconds within the minute still match")
	assert.False(t, u.DueAt(now.Add(time.Minute)))

	u.NotificationEnabled = false
	assert.False(t, u.DueAt(now))

	u.NotificationEnabled = true
	u.NotificationTime = nil
	assert.False(t, u.DueAt(now))

	// unknown zone falls back to UTC interpretation
	u = User{NotificationEnabled: true, NotificationTime: at(3, 30), Timezone: "Mars/Olympus"}
	assert.True(t, u.DueAt(now))
}
