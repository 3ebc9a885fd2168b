package models

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"cleanzone-api/apperrors"
)

const (
	MaxNameLength           = 100
	MaxTitleLength          = 150
	MaxDescriptionLength    = 1000
	MaxMessageContentLength = 1000
	MinPasswordLength       = 8
	MaxRadiusMeters         = 5000.0
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)

// ID is the identity key of every entity.
type ID uint32

func NewID(v int64) (ID, error) {
	if v <= 0 || v > math.MaxUint32 {
		return 0, apperrors.Validation("id must be a positive 32-bit integer")
	}
	return ID(v), nil
}

func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, apperrors.Validation("invalid id %q", s)
	}
	return NewID(v)
}

func (id ID) Uint32() uint32 { return uint32(id) }

type Email struct{ value string }

func NewEmail(s string) (Email, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Email{}, apperrors.Validation("email is required")
	}
	if strings.Contains(s, "..") || !emailRegex.MatchString(s) {
		return Email{}, apperrors.Validation("email is invalid")
	}
	local := s[:strings.IndexByte(s, '@')]
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return Email{}, apperrors.Validation("email is invalid")
	}
	return Email{value: s}, nil
}

func (e Email) String() string { return e.value }

type Name struct{ value string }

func NewName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	if err := checkText("name", s, MaxNameLength); err != nil {
		return Name{}, err
	}
	return Name{value: s}, nil
}

func (n Name) String() string { return n.value }

// Password holds a plain-text password that satisfied the strength rules. It is never persisted.
type Password struct{ value string }

func NewPassword(s string) (Password, error) {
	if utf8.RuneCountInString(s) < MinPasswordLength {
		return Password{}, apperrors.Validation("password must be at least %d characters", MinPasswordLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			hasSpecial = true
		}
	}

	switch {
	case !hasDigit:
		return Password{}, apperrors.Validation("password must contain a digit")
	case !hasUpper:
		return Password{}, apperrors.Validation("password must contain an upper-case letter")
	case !hasLower:
		return Password{}, apperrors.Validation("password must contain a lower-case letter")
	case !hasSpecial:
		return Password{}, apperrors.Validation("password must contain a special character")
	}
	return Password{value: s}, nil
}

func (p Password) String() string { return p.value }

type Title struct{ value string }

func NewTitle(s string) (Title, error) {
	if err := checkText("title", s, MaxTitleLength); err != nil {
		return Title{}, err
	}
	return Title{value: s}, nil
}

func (t Title) String() string { return t.value }

type Description struct{ value string }

func NewDescription(s string) (Description, error) {
	if err := checkText("description", s, MaxDescriptionLength); err != nil {
		return Description{}, err
	}
	return Description{value: s}, nil
}

func (d Description) String() string { return d.value }

type MessageContent struct{ value string }

func NewMessageContent(s string) (MessageContent, error) {
	if err := checkText("message", s, MaxMessageContentLength); err != nil {
		return MessageContent{}, err
	}
	return MessageContent{value: s}, nil
}

func (m MessageContent) String() string { return m.value }

// Radius is a zone radius in meters.
type Radius struct{ meters float64 }

func NewRadius(meters float64) (Radius, error) {
	if math.IsNaN(meters) || meters <= 0 || meters > MaxRadiusMeters {
		return Radius{}, apperrors.Validation("radius must be greater than 0 and at most %.0f meters", MaxRadiusMeters)
	}
	return Radius{meters: meters}, nil
}

func (r Radius) Meters() float64 { return r.meters }

type Url struct{ value string }

func NewUrl(s string) (Url, error) {
	lower := strings.ToLower(s)
	var rest string
	switch {
	case strings.HasPrefix(lower, "https://"):
		rest = s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		rest = s[len("http://"):]
	default:
		return Url{}, apperrors.Validation("url must start with http:// or https://")
	}
	if rest == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return Url{}, apperrors.Validation("url is invalid")
	}
	return Url{value: s}, nil
}

func (u Url) String() string { return u.value }

type Location struct {
	Latitude  float64
	Longitude float64
}

func NewLocation(lat, lon float64) (Location, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return Location{}, apperrors.Validation("latitude must be between -90 and 90")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return Location{}, apperrors.Validation("longitude must be between -180 and 180")
	}
	return Location{Latitude: lat, Longitude: lon}, nil
}

// DistanceKm is the haversine distance between two locations.
func (l Location) DistanceKm(other Location) float64 {
	const earthRadius = 6371 // km

	dLat := (other.Latitude - l.Latitude) * math.Pi / 180
	dLon := (other.Longitude - l.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(l.Latitude*math.Pi/180)*math.Cos(other.Latitude*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Period is a half-open interval [Start, End). A nil End means open-ended.
type Period struct {
	Start time.Time
	End   *time.Time
}

func NewPeriod(start time.Time, end *time.Time) (Period, error) {
	if start.IsZero() {
		return Period{}, apperrors.Validation("start time is required")
	}
	p := Period{Start: start.UTC()}
	if end != nil {
		if !start.Before(*end) {
			return Period{}, apperrors.Validation("start time must be before end time")
		}
		e := end.UTC()
		p.End = &e
	}
	return p, nil
}

func (p Period) Contains(t time.Time) bool {
	if t.Before(p.Start) {
		return false
	}
	return p.End == nil || t.Before(*p.End)
}

func NewMaxParticipants(v *int) (*int, error) {
	if v == nil {
		return nil, nil
	}
	if *v <= 0 {
		return nil, apperrors.Validation("max participants must be positive")
	}
	n := *v
	return &n, nil
}

func checkText(field, s string, max int) error {
	if strings.TrimSpace(s) == "" {
		return apperrors.Validation("%s must not be blank", field)
	}
	if utf8.RuneCountInString(s) > max {
		return apperrors.Validation("%s must be at most %d characters", field, max)
	}
	return nil
}
