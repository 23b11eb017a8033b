// Package matcher decides whether a listing satisfies a user's saved filter.
package matcher

import (
	"fmt"
	"strings"

	"estate_tracker/internal/domain"
)

type CityMode string

const (
	// CityExact requires the listing city to be one of the accepted cities,
	// compared case-insensitively.
	CityExact CityMode = "exact"
	// CitySubstring accepts a listing whose city contains an accepted city.
	// "Novi Sad" then matches a preference for "Sad".
	CitySubstring CityMode = "substring"
)

func ParseCityMode(s string) (CityMode, error) {
	switch CityMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CityExact:
		return CityExact, nil
	case CitySubstring:
		return CitySubstring, nil
	default:
		return "", fmt.Errorf("unknown city mode %q", s)
	}
}

type Matcher struct {
	cityMode CityMode
}

func New(mode CityMode) *Matcher {
	if mode == "" {
		mode = CityExact
	}
	return &Matcher{cityMode: mode}
}

// Matches reports whether listing passes every rule of pref. Rules short-circuit
// in order: enabled, status, city, rooms, price, size.
func (m *Matcher) Matches(listing domain.Candidate, pref domain.UserPreference) bool {
	if !pref.IsEnabled {
		return false
	}
	if listing.Status != string(domain.StatusActive) {
		return false
	}
	if !m.cityMatches(listing.City, pref.Cities) {
		return false
	}
	if !roomsMatch(listing.Rooms, pref.Rooms) {
		return false
	}
	if !(listing.Price > pref.PriceMin && listing.Price < pref.PriceMax) {
		return false
	}
	return sizeMatches(listing.SizeM2, pref.SizeMin, pref.SizeMax)
}

func (m *Matcher) cityMatches(city *string, accepted []string) bool {
	if city == nil || strings.TrimSpace(*city) == "" {
		return false
	}
	c := strings.ToLower(strings.TrimSpace(*city))
	for _, a := range accepted {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		switch m.cityMode {
		case CitySubstring:
			if strings.Contains(c, a) {
				return true
			}
		default:
			if c == a {
				return true
			}
		}
	}
	return false
}

// roomsMatch requires an exact match against one accepted value, so an empty
// accepted set matches nothing.
func roomsMatch(rooms *float64, accepted []float64) bool {
	if rooms == nil {
		return false
	}
	for _, r := range accepted {
		if *rooms == r {
			return true
		}
	}
	return false
}

// sizeMatches applies exclusive bounds only when the listing has a size and
// the bounds are set.
func sizeMatches(size *float64, min, max float64) bool {
	if size == nil || *size == 0 || min == 0 || max == 0 {
		return true
	}
	return *size > min && *size < max
}
