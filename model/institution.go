package model

import (
	"time"

	"github.com/gosimple/slug"
)

const (
	InstitutionNamePrefix = "university."
	UnknownCountry        = "???"
)

type Institution struct {
	ID          int64
	Name        string // slug key, unique
	DisplayName string
	Country     string
	TotalPoints int64
	MemberCount int
	GlobalRank  *int
	About       *string
	WebsiteURL  *string
	TwitterURL  *string
	LinkedInURL *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type InstitutionMember struct {
	ID            int64
	InstitutionID int64
	UserID        int64
	Rank          *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InstitutionName builds the institution key for a university display name.
func InstitutionName(displayName string) string {
	return InstitutionNamePrefix + slug.Make(displayName)
}

// NewInstitution builds an unsaved institution for a university seen for the first time.
func NewInstitution(name string, u *University, memberCount int, about *string, now time.Time) *Institution {
	country := u.CountryAlpha3
	if country == "" {
		country = UnknownCountry
	}

	var website *string
	if u.URL != "" {
		url := u.URL
		website = &url
	}

	return &Institution{
		Name:        name,
		DisplayName: u.Name,
		Country:     country,
		MemberCount: memberCount,
		About:       about,
		WebsiteURL:  website,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
