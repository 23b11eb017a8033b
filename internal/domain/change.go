package domain

import (
	"time"

	"github.com/google/uuid"
)

// Field is a tracked listing attribute. Its value doubles as the column name
// in the owning table.
type Field string

const (
	FieldTitle             Field = "title"
	FieldPrice             Field = "price"
	FieldPriceCurrency     Field = "price_currency"
	FieldStatus            Field = "status"
	FieldValidFrom         Field = "valid_from"
	FieldValidTo           Field = "valid_to"
	FieldTotalViews        Field = "total_views"
	FieldCity              Field = "city"
	FieldMunicipality      Field = "municipality"
	FieldMicroLocation     Field = "micro_location"
	FieldLatitude          Field = "latitude"
	FieldLongitude         Field = "longitude"
	FieldShortDescription  Field = "short_description"
	FieldDetailDescription Field = "detail_description"
	FieldPropertyType      Field = "property_type"
	FieldBuildingType      Field = "building_type"
	FieldSizeM2            Field = "size_m2"
	FieldFloorNumber       Field = "floor_number"
	FieldTotalFloors       Field = "total_floors"
	FieldRooms             Field = "rooms"
	FieldPropertyState     Field = "property_state"
)

type Table string

const (
	TableListings   Table = "listings"
	TableProperties Table = "properties"
)

// TrackedFields lists the compared fields in the order change rows are emitted.
var TrackedFields = []Field{
	FieldTitle,
	FieldPrice,
	FieldPriceCurrency,
	FieldStatus,
	FieldValidFrom,
	FieldValidTo,
	FieldTotalViews,
	FieldCity,
	FieldMunicipality,
	FieldMicroLocation,
	FieldLatitude,
	FieldLongitude,
	FieldShortDescription,
	FieldDetailDescription,
	FieldPropertyType,
	FieldBuildingType,
	FieldSizeM2,
	FieldFloorNumber,
	FieldTotalFloors,
	FieldRooms,
	FieldPropertyState,
}

func (f Field) Table() Table {
	switch f {
	case FieldPropertyType, FieldBuildingType, FieldSizeM2, FieldFloorNumber,
		FieldTotalFloors, FieldRooms, FieldPropertyState:
		return TableProperties
	default:
		return TableListings
	}
}

func (f Field) ChangeType() string {
	return string(f) + "_change"
}

// ListingChange is one append-only audit row for a single field.
type ListingChange struct {
	ID         uuid.UUID
	ListingID  uuid.UUID
	RawDataID  *uuid.UUID
	ChangeType string
	Field      Field
	OldValue   *string
	NewValue   *string
	ChangedAt  time.Time
}

// AppliedValue is the value written back onto the owning table. A missing
// price is stored as the -1 sentinel.
func (c ListingChange) AppliedValue() any {
	if c.Field == FieldPrice {
		if c.NewValue == nil || *c.NewValue == "" || *c.NewValue == "0" {
			return PriceUnknownText
		}
		return *c.NewValue
	}
	if c.NewValue == nil {
		return nil
	}
	return *c.NewValue
}

// PartitionChanges splits changes by the table that owns each field.
func PartitionChanges(changes []ListingChange) (listing, property []ListingChange) {
	for _, c := range changes {
		if c.Field.Table() == TableProperties {
			property = append(property, c)
		} else {
			listing = append(listing, c)
		}
	}
	return listing, property
}

const (
	PriceUnknown     float64 = -1
	PriceUnknownText         = "-1"
)
