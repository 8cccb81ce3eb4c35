package model

import (
	"testing"
	"time"
)

func TestInstitutionName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "ETH Zurich", expected: "university.eth-zurich"},
		{input: "Université Paris-Saclay", expected: "university.universite-paris-saclay"},
		{input: "  MIT  ", expected: "university.mit"},
	}

	for _, tc := range tests {
		a := InstitutionName(tc.input)
		if a != tc.expected {
			t.Errorf("input: '%s', expected: '%s', got '%s'", tc.input, tc.expected, a)
		}
	}
}

func TestNewInstitution(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	about := "A Swiss public research university."

	i := NewInstitution("university.eth-zurich", &University{Name: "ETH Zurich", URL: "https://ethz.ch", CountryAlpha3: "CHE"}, 3, &about, now)
	if i.DisplayName != "ETH Zurich" || i.Country != "CHE" || i.MemberCount != 3 {
		t.Errorf("unexpected institution: %+v", i)
	}
	if i.WebsiteURL == nil || *i.WebsiteURL != "https://ethz.ch" {
		t.Errorf("expected website url to be set, got %v", i.WebsiteURL)
	}
	if i.About != &about {
		t.Errorf("expected about to be kept")
	}
	if !i.CreatedAt.Equal(now) || !i.UpdatedAt.Equal(now) {
		t.Errorf("expected timestamps to be %v", now)
	}
	if i.GlobalRank != nil || i.TwitterURL != nil || i.LinkedInURL != nil {
		t.Errorf("expected unset optional fields")
	}

	unknown := NewInstitution("university.somewhere", &University{Name: "Somewhere"}, 1, nil, now)
	if unknown.Country != UnknownCountry {
		t.Errorf("expected country '%s', got '%s'", UnknownCountry, unknown.Country)
	}
	if unknown.WebsiteURL != nil {
		t.Errorf("expected no website url, got %s", *unknown.WebsiteURL)
	}
}

func TestUserHasUniversity(t *testing.T) {
	tests := map[string]struct {
		university string
		expected   bool
	}{
		"empty":       {university: "", expected: false},
		"self taught": {university: SelfTaught, expected: false},
		"university":  {university: "ETH Zurich", expected: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			u := User{University: tc.university}
			if u.HasUniversity() != tc.expected {
				t.Errorf("expected %v for '%s'", tc.expected, tc.university)
			}
		})
	}
}
