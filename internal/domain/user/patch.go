package user

import (
	"strings"
	"time"
)

// IdentityPatch carries optional changes to the user row. Nil fields are left
// untouched.
type IdentityPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

func (p IdentityPatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Phone == nil
}

func (p IdentityPatch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
}

type CandidateProfilePatch struct {
	BirthDate   *time.Time
	Gender      *string
	Nationality *string
	Address     *string
	City        *string
	Province    *string
	Country     *string
	NationalID  *string
}

func (p CandidateProfilePatch) IsEmpty() bool {
	return p.BirthDate == nil && p.Gender == nil && p.Nationality == nil && p.Address == nil &&
		p.City == nil && p.Province == nil && p.Country == nil && p.NationalID == nil
}

func (p CandidateProfilePatch) Apply(profile *CandidateProfile) {
	if p.BirthDate != nil {
		value := p.BirthDate.UTC()
		profile.BirthDate = &value
	}
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&profile.Gender, p.Gender)
	assign(&profile.Nationality, p.Nationality)
	assign(&profile.Address, p.Address)
	assign(&profile.City, p.City)
	assign(&profile.Province, p.Province)
	assign(&profile.Country, p.Country)
	assign(&profile.NationalID, p.NationalID)
}

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC3339 timestamp and
// returns it in UTC.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if parsed, err := time.Parse("2006-01-02", trimmed); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
