package event

import "time"

type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location"`
	ClubID      int64     `json:"club_id"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Creator identity joined in for digest rendering.
	CreatorFirstName string `json:"-"`
	CreatorLastName  string `json:"-"`
	CreatorUsername  string `json:"-"`
}
