package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type User struct {
	ID       uuid.UUID `db:"id"`
	ChatID   string    `db:"chat_id"`
	Username *string   `db:"username"`
	Name     *string   `db:"name"`
}

// UserPreference is a user's saved listing filter.
type UserPreference struct {
	UserID    uuid.UUID
	Cities    []string
	PriceMin  float64
	PriceMax  float64
	SizeMin   float64
	SizeMax   float64
	Rooms     []float64
	IsEnabled bool
}

// Subscriber pairs a user with the preference used to match listings.
type Subscriber struct {
	User       User
	Preference UserPreference
}

// DefaultPreference is assigned to newly registered users.
func DefaultPreference(userID uuid.UUID) UserPreference {
	return UserPreference{
		UserID:    userID,
		Cities:    []string{"Beograd"},
		PriceMin:  50000,
		PriceMax:  150000,
		SizeMin:   45,
		SizeMax:   120,
		Rooms:     []float64{3},
		IsEnabled: true,
	}
}

// StringList accepts a single string, a number, or an array of either.
// Older preference payloads stored city and rooms as scalars.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var items []Flex
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make(StringList, 0, len(items))
		for _, it := range items {
			if it.Valid() {
				out = append(out, it.String())
			}
		}
		*l = out
		return nil
	}
	var one Flex
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	if one.Valid() {
		*l = StringList{one.String()}
	} else {
		*l = nil
	}
	return nil
}

// PreferenceInput is the user-facing preference payload.
type PreferenceInput struct {
	City      StringList `json:"city"`
	Price     string     `json:"price"`
	Size      string     `json:"size"`
	Rooms     StringList `json:"rooms"`
	IsEnabled *bool      `json:"is_enabled"`
}

// Parse validates the payload and converts it into a typed preference.
func (in PreferenceInput) Parse(userID uuid.UUID) (UserPreference, error) {
	pref := UserPreference{UserID: userID, IsEnabled: true}
	if in.IsEnabled != nil {
		pref.IsEnabled = *in.IsEnabled
	}

	for _, c := range in.City {
		if c = strings.TrimSpace(c); c != "" {
			pref.Cities = append(pref.Cities, c)
		}
	}
	if len(pref.Cities) == 0 {
		return UserPreference{}, &ValidationError{Field: "city", Message: "Select at least one city"}
	}

	var err error
	if pref.PriceMin, pref.PriceMax, err = ParseRange(in.Price); err != nil {
		return UserPreference{}, &ValidationError{Field: "price", Message: err.Error()}
	}
	if pref.SizeMin, pref.SizeMax, err = ParseRange(in.Size); err != nil {
		return UserPreference{}, &ValidationError{Field: "size", Message: err.Error()}
	}

	for _, r := range in.Rooms {
		v, err := parseNumber(strings.TrimSpace(r))
		if err != nil {
			return UserPreference{}, &ValidationError{Field: "rooms", Message: fmt.Sprintf("Rooms must be numbers, got %q", r)}
		}
		pref.Rooms = append(pref.Rooms, v)
	}
	if len(pref.Rooms) == 0 {
		return UserPreference{}, &ValidationError{Field: "rooms", Message: "Select at least one room count"}
	}

	return pref, nil
}

// ParseRange parses a "MIN-MAX" range split on a single hyphen.
func ParseRange(value string) (float64, float64, error) {
	switch strings.Count(value, "-") {
	case 0:
		return 0, 0, errors.New("Should include hyphen")
	case 1:
	default:
		return 0, 0, errors.New("Too many hyphens")
	}

	parts := strings.SplitN(value, "-", 2)
	minText, maxText := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if minText == "" {
		return 0, 0, errors.New("X should not be empty")
	}
	if maxText == "" {
		return 0, 0, errors.New("Y should not be empty")
	}

	min, err := parseNumber(minText)
	if err != nil {
		return 0, 0, errors.New("Must be numbers only")
	}
	max, err := parseNumber(maxText)
	if err != nil {
		return 0, 0, errors.New("Must be numbers only")
	}

	if min <= 0 {
		return 0, 0, errors.New("X should be more than 0")
	}
	if min > max {
		return 0, 0, errors.New("X should be less than Y value")
	}
	return min, max, nil
}

// parseNumber accepts finite decimal numbers only; ParseFloat alone lets
// "NaN" and "Inf" through.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

// Input renders the preference back into its user-facing shape.
func (p UserPreference) Input() PreferenceInput {
	rooms := make(StringList, 0, len(p.Rooms))
	for _, r := range p.Rooms {
		rooms = append(rooms, strconv.FormatFloat(r, 'f', 1, 64))
	}
	enabled := p.IsEnabled
	return PreferenceInput{
		City:      StringList(append([]string(nil), p.Cities...)),
		Price:     formatRange(p.PriceMin, p.PriceMax),
		Size:      formatRange(p.SizeMin, p.SizeMax),
		Rooms:     rooms,
		IsEnabled: &enabled,
	}
}

func formatRange(min, max float64) string {
	return strconv.FormatFloat(min, 'f', -1, 64) + "-" + strconv.FormatFloat(max, 'f', -1, 64)
}
