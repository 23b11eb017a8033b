package normalize

import (
	"time"

	"github.com/google/uuid"

	"estate_tracker/internal/domain"
)

// Listing builds the stored listing row for one observation of item.
func Listing(item *domain.ScrapedListing, id, sourceID uuid.UUID, sellerID *uuid.UUID, seenAt time.Time) domain.Listing {
	return domain.Listing{
		ID:                id,
		SourceID:          sourceID,
		SellerID:          sellerID,
		URL:               item.URL,
		Title:             item.Title,
		ShortDescription:  Text(item.ShortDescription),
		DetailDescription: Text(item.DetailDescription),
		Price:             Price(item.Price),
		PriceCurrency:     Text(item.PriceCurrency),
		Status:            item.Status,
		ValidFrom:         Timestamp(item.ValidFrom),
		ValidTo:           Timestamp(item.ValidTo),
		TotalViews:        Int(item.TotalViews),
		City:              Text(item.Address.City),
		Municipality:      Text(item.Address.Municipality),
		MicroLocation:     Text(item.Address.MicroLocation),
		Latitude:          item.Address.Latitude,
		Longitude:         item.Address.Longitude,
		FirstSeenAt:       seenAt,
		LastSeenAt:        seenAt,
	}
}

// Property builds the physical attributes row for item.
func Property(item *domain.ScrapedListing, id, listingID uuid.UUID) domain.Property {
	p := item.Property
	return domain.Property{
		ID:            id,
		ListingID:     listingID,
		PropertyType:  Text(p.PropertyType),
		BuildingType:  Text(p.BuildingType),
		SizeM2:        Float(p.SizeM2),
		FloorNumber:   FlexText(p.FloorNumber),
		TotalFloors:   Int(p.TotalFloors),
		Rooms:         Float(p.Rooms),
		PropertyState: Text(p.PropertyState),
	}
}
