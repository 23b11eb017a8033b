package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	StatusActive  ListingStatus = "active"
	StatusRemoved ListingStatus = "removed"
)

func (s ListingStatus) Valid() bool {
	return s == StatusActive || s == StatusRemoved
}

type SellerType string

const (
	SellerPerson SellerType = "person"
	SellerAgency SellerType = "agency"
	SellerOther  SellerType = "other"
)

// ParseSellerType maps a scraped seller type onto the stored set.
// An empty value means a private person.
func ParseSellerType(v string) SellerType {
	switch SellerType(v) {
	case "", SellerPerson:
		return SellerPerson
	case SellerAgency:
		return SellerAgency
	default:
		return SellerOther
	}
}

type Source struct {
	ID      uuid.UUID `db:"id"`
	Name    string    `db:"name"`
	BaseURL string    `db:"base_url"`
}

type Seller struct {
	ID             uuid.UUID  `db:"id"`
	SourceSellerID string     `db:"source_seller_id"`
	Name           string     `db:"name"`
	SellerType     SellerType `db:"seller_type"`
	PrimaryPhone   *string    `db:"primary_phone"`
	PrimaryEmail   *string    `db:"primary_email"`
	Website        *string    `db:"website"`
	AgentID        *uuid.UUID `db:"agent_id"`
}

type Agent struct {
	ID             uuid.UUID `db:"id"`
	RegistryNumber string    `db:"registry_number"`
	Name           *string   `db:"name"`
}

type Listing struct {
	ID                uuid.UUID
	SourceID          uuid.UUID
	SellerID          *uuid.UUID
	URL               string
	Title             string
	ShortDescription  *string
	DetailDescription *string
	Price             float64
	PriceCurrency     *string
	Status            ListingStatus
	ValidFrom         *time.Time
	ValidTo           *time.Time
	TotalViews        *int64
	City              *string
	Municipality      *string
	MicroLocation     *string
	Latitude          *float64
	Longitude         *float64
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
}

type Property struct {
	ID            uuid.UUID
	ListingID     uuid.UUID
	PropertyType  *string
	BuildingType  *string
	SizeM2        *float64
	FloorNumber   *string
	TotalFloors   *int64
	Rooms         *float64
	PropertyState *string
}

type RawData struct {
	ID        uuid.UUID
	ListingID uuid.UUID
	HTML      string
	Data      json.RawMessage
}

// Snapshot is the stored state of a listing as it was before the current
// observation overwrote it.
type Snapshot struct {
	Listing   Listing
	Property  *Property
	RawDataID *uuid.UUID
}

// ListingRef identifies a listing without loading its attributes.
type ListingRef struct {
	ID  uuid.UUID `db:"id"`
	URL string    `db:"url"`
}

// Candidate is the flattened listing view used for preference matching
// and notification rendering.
type Candidate struct {
	ID            uuid.UUID `db:"id"`
	URL           string    `db:"url"`
	City          *string   `db:"city"`
	Municipality  *string   `db:"municipality"`
	MicroLocation *string   `db:"micro_location"`
	Price         float64   `db:"price"`
	SizeM2        *float64  `db:"size_m2"`
	Rooms         *float64  `db:"rooms"`
	Status        string    `db:"status"`
	FirstSeenAt   time.Time `db:"first_seen_at"`
}

// HasMissing reports whether any attribute a notification needs is absent.
func (c Candidate) HasMissing() bool {
	return c.City == nil || *c.City == "" ||
		c.Price <= 0 ||
		c.SizeM2 == nil || *c.SizeM2 <= 0 ||
		c.Rooms == nil || *c.Rooms <= 0
}
