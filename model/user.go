package model

import (
	"time"
)

// Users declaring this affiliation are never mapped to an institution.
const SelfTaught = "Self Taught"

type User struct {
	ID         int64
	Login      string
	University string // display name, free text
}

// HasUniversity reports whether the user declares an affiliation that can map to an institution.
func (u *User) HasUniversity() bool {
	return u.University != "" && u.University != SelfTaught
}

type University struct {
	ID            int64
	Name          string
	URL           string
	CountryAlpha3 string
}

// Participant is one entry of a user in a competition. A nil CreatedAt counts for every date.
type Participant struct {
	UserID    int64
	CreatedAt *time.Time
}

func (p *Participant) ActiveOn(day time.Time) bool {
	return p.CreatedAt == nil || !Day(*p.CreatedAt).After(Day(day))
}

// DailySubmissionCount is the number of uploads, current and legacy, a user made on one day.
type DailySubmissionCount struct {
	UserID int64
	Date   time.Time
	Count  int
}
