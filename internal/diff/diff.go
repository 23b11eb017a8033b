// Package diff compares two observations of a listing field by field.
package diff

import (
	"strconv"
	"time"

	"estate_tracker/internal/domain"
	"estate_tracker/internal/normalize"
)

// Change is one tracked field whose canonical value differs between observations.
type Change struct {
	Field domain.Field
	Old   *string
	New   *string
}

// Diff returns the tracked fields that differ between the stored snapshot and
// the new observation, in TrackedFields order. Property fields are compared
// only when the snapshot carries a property row.
func Diff(prev *domain.Snapshot, next domain.Listing, nextProp *domain.Property) []Change {
	if prev == nil {
		return nil
	}

	oldValues := Values(prev.Listing, prev.Property)
	newValues := Values(next, nextProp)

	var changes []Change
	for _, f := range domain.TrackedFields {
		if f.Table() == domain.TableProperties && prev.Property == nil {
			continue
		}
		o, n := oldValues[f], newValues[f]
		if equal(o, n) {
			continue
		}
		changes = append(changes, Change{Field: f, Old: o, New: n})
	}
	return changes
}

// Values renders every tracked field of a listing and its property in
// canonical string form. Missing values are nil.
func Values(l domain.Listing, p *domain.Property) map[domain.Field]*string {
	v := map[domain.Field]*string{
		domain.FieldTitle:             normalize.Text(&l.Title),
		domain.FieldPrice:             price(l.Price),
		domain.FieldPriceCurrency:     normalize.Text(l.PriceCurrency),
		domain.FieldStatus:            str(string(l.Status)),
		domain.FieldValidFrom:         timestamp(l.ValidFrom),
		domain.FieldValidTo:           timestamp(l.ValidTo),
		domain.FieldTotalViews:        integer(l.TotalViews),
		domain.FieldCity:              normalize.Text(l.City),
		domain.FieldMunicipality:      normalize.Text(l.Municipality),
		domain.FieldMicroLocation:     normalize.Text(l.MicroLocation),
		domain.FieldLatitude:          float(l.Latitude),
		domain.FieldLongitude:         float(l.Longitude),
		domain.FieldShortDescription:  normalize.Text(l.ShortDescription),
		domain.FieldDetailDescription: normalize.Text(l.DetailDescription),
	}
	if p == nil {
		p = &domain.Property{}
	}
	v[domain.FieldPropertyType] = normalize.Text(p.PropertyType)
	v[domain.FieldBuildingType] = normalize.Text(p.BuildingType)
	v[domain.FieldSizeM2] = float(p.SizeM2)
	v[domain.FieldFloorNumber] = floorNumber(p.FloorNumber)
	v[domain.FieldTotalFloors] = integer(p.TotalFloors)
	v[domain.FieldRooms] = float(p.Rooms)
	v[domain.FieldPropertyState] = normalize.Text(p.PropertyState)
	return v
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func price(p float64) *string {
	if p <= 0 {
		return str(domain.PriceUnknownText)
	}
	return str(normalize.FormatFloat(normalize.Round2(p)))
}

func float(f *float64) *string {
	if f == nil {
		return nil
	}
	return str(normalize.FormatFloat(*f))
}

func integer(i *int64) *string {
	if i == nil {
		return nil
	}
	return str(strconv.FormatInt(*i, 10))
}

func timestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return str(normalize.FormatTime(*t))
}

func floorNumber(s *string) *string {
	if s == nil {
		return nil
	}
	v := normalize.StripPlus(*s)
	return normalize.Text(&v)
}
